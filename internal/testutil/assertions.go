package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"solconta/internal/calendar"
	apperrors "solconta/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	case !errors.As(err, &appErr):
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	case appErr.Code != expectedCode:
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertAmount compares amounts by value, so "150.50" matches 150.5.
func AssertAmount(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected amount %s, got %s", want, got)
	}
}

// AssertDate checks a calendar date against its YYYY-MM-DD form.
func AssertDate(t *testing.T, got calendar.Date, want string) {
	t.Helper()
	if got.String() != want {
		t.Errorf("expected date %s, got %s", want, got)
	}
}
