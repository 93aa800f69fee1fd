package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(ErrValidation, "bad"), http.StatusBadRequest},
		{New(ErrInvalidCoin, "Invalid coin ID"), http.StatusBadRequest},
		{New(ErrConflict, "dup"), http.StatusConflict},
		{fmt.Errorf("lookup: %w", New(ErrNotFound, "User not found")), http.StatusNotFound},
		{ErrInvalidToken, http.StatusUnauthorized},
		{New(ErrForbidden, "User not logged in."), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMessageHidesInternals(t *testing.T) {
	if got := Message(errors.New("pq: connection refused")); got != "Internal server error" {
		t.Fatalf("expected generic message, got %q", got)
	}
	if got := Message(New(ErrValidation, "Passwords do not match")); got != "Passwords do not match" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(New(ErrConflict, "x"), ErrConflict) {
		t.Fatal("expected kind to match")
	}
}
