package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrInternalServer, cause)

	if !errors.Is(err, ErrInternalServer) {
		t.Error("wrapped error should match its sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if err.Message != ErrInternalServer.Message {
		t.Errorf("message should not leak the cause, got %q", err.Message)
	}
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidInput, "El monto debe ser mayor a 0")

	if err.Code != "INVALID_INPUT" || err.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected code/status: %s %d", err.Code, err.StatusCode)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("re-messaged error should match its sentinel")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("different codes must not match")
	}
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(42)
	if err.Message != "For security purposes, you can only request this after 42 seconds" {
		t.Errorf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != http.StatusTooManyRequests {
		t.Errorf("unexpected status: %d", err.StatusCode)
	}
}
