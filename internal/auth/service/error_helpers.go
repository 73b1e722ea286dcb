package service

import (
	"errors"

	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
)

// handleStoreError converts a store failure into the error surfaced to
// clients. Domain errors pass through untouched.
func handleStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return ErrServiceUnavailable.WithCause(err)
	}
	if commonerrors.IsDomainError(err) {
		return err
	}
	return commonerrors.ErrDatabaseError.WithCause(err)
}

func fieldError(field, message string) commonerrors.FieldErrors {
	details := commonerrors.FieldErrors{}
	details.Add(field, message)
	return details
}

func validationError(field, message string) error {
	return commonerrors.ErrValidation.WithDetails(fieldError(field, message))
}
