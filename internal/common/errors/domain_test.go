package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDomainError_WithCauseStillMatchesSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrDatabaseError.WithCause(cause)

	if !errors.Is(err, ErrDatabaseError) {
		t.Error("derived error should match its sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("derived error should unwrap to its cause")
	}
	if errors.Is(err, ErrInternalError) {
		t.Error("derived error should not match a different code")
	}
	if err.Error() != "database operation failed: connection reset" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	details := FieldErrors{}
	details.Add("email", "This field is required.")
	details.Add("email", "Enter a valid email address.")

	err := ErrValidation.WithDetails(details)

	if len(err.Details()["email"]) != 2 {
		t.Errorf("expected two email messages, got %v", err.Details())
	}
	if ErrValidation.Details() != nil {
		t.Error("sentinel must not be mutated")
	}
	if err.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.HTTPStatus())
	}
}

func TestAsDomainError_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrUnauthorized.WithTraceID("abc"))

	de, ok := AsDomainError(wrapped)
	if !ok {
		t.Fatal("expected domain error")
	}
	if de.Code() != "UNAUTHORIZED" || de.TraceID() != "abc" {
		t.Errorf("unexpected domain error %s/%s", de.Code(), de.TraceID())
	}
	if IsDomainError(errors.New("plain")) {
		t.Error("plain error is not a domain error")
	}
}
