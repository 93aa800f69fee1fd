package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/tomasdev42/crypto-portfolio/internal/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers messages as HTML email.
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

// NewSMTPNotifier builds a notifier from SMTP settings.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPNotifier{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: from,
		auth: auth,
		send: smtp.SendMail,
	}
}

// Send delivers the message. smtp.SendMail does not honour the context, so a
// cancelled context is only checked before dialing.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.Destination == "" {
		return errors.New("notification: destination is required")
	}
	if strings.ContainsAny(message.Destination+message.Subject, "\r\n") {
		return errors.New("notification: invalid header value")
	}
	if err := n.send(n.addr, n.auth, n.from, []string{message.Destination}, n.render(message)); err != nil {
		return fmt.Errorf("send %s email: %w", message.Kind, err)
	}
	return nil
}

func (n *SMTPNotifier) render(message Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.from)
	fmt.Fprintf(&b, "To: %s\r\n", message.Destination)
	fmt.Fprintf(&b, "Subject: %s\r\n", message.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(message.Body)
	return []byte(b.String())
}
