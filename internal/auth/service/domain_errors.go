package service

import (
	"errors"
	"net/http"

	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
)

// ErrSigningKeyMissing means the service cannot mint or check tokens at all.
var ErrSigningKeyMissing = errors.New("token signing key is missing or too short")

var (
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"no active account found with the given credentials",
	)

	ErrEmailTaken = commonerrors.NewDomainError(
		"EMAIL_TAKEN",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"user with this email already exists",
	)

	ErrOldPasswordIncorrect = commonerrors.NewDomainError(
		"OLD_PASSWORD_INCORRECT",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"old password is incorrect",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)
