package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

const (
	// KindPasswordReset indicates a password reset link email.
	KindPasswordReset = "password_reset"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// PasswordReset builds the reset email pointing the user at the client's
// reset page.
func PasswordReset(originURL, email, token string) Message {
	link := fmt.Sprintf("%s/reset-password?token=%s", originURL, url.QueryEscape(token))
	return Message{
		Kind:        KindPasswordReset,
		Destination: email,
		Subject:     "Password Reset",
		Body: fmt.Sprintf(`<p>To reset your password, please click <a href="%s">this link</a>. `+
			`If you don't want to reset your password you can ignore this message.</p>`, link),
	}
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
// It is used when no mail server is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "subject", message.Subject)
	return nil
}
