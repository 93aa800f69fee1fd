// Package apperr defines the error kinds shared by services and handlers and
// how each kind is reported over HTTP.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a duplicate resource.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an absent user or holding.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a missing or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks a request made without the required session.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidToken marks a token that failed signature, expiry or kind checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCoin marks a coin identifier unknown to the quote provider.
	ErrInvalidCoin = errors.New("invalid coin")
	// ErrUpstream marks a failure of the price or email provider.
	ErrUpstream = errors.New("upstream failure")
)

// Error pairs a kind with the message shown to the caller.
type Error struct {
	Kind error
	Msg  string
}

// New returns an error of the given kind carrying a user facing message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Status maps an error to the HTTP status code reported for it.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidCoin):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show to a client. Internal failures are
// collapsed to a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
