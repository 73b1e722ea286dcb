package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mentis-project/accounts/internal/common/config"
	"github.com/mentis-project/accounts/internal/common/constants"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
)

const (
	msgPasswordMismatch = "The two password fields didn't match."
	msgFieldRequired    = "This field is required."
)

// ValidatePasswordPair checks that a new password and its confirmation were
// both supplied and are identical.
func ValidatePasswordPair(password1, password2 string) error {
	details := commonerrors.FieldErrors{}
	if password1 == "" {
		details.Add("password1", msgFieldRequired)
	}
	if password2 == "" {
		details.Add("password2", msgFieldRequired)
	}
	if len(details) == 0 && password1 != password2 {
		details.Add("password2", msgPasswordMismatch)
	}
	if len(details) > 0 {
		return commonerrors.ErrValidation.WithDetails(details)
	}
	return nil
}

type PasswordValidator struct {
	policy config.PasswordPolicy
}

func NewPasswordValidator(policy config.PasswordPolicy) PasswordValidator {
	if policy.MinLength < 1 {
		policy.MinLength = constants.DefaultPasswordMinLength
	}
	return PasswordValidator{policy: policy}
}

// Validate applies the password policy. Failures are reported under field,
// every violated rule contributing one message.
func (pv PasswordValidator) Validate(field, password, email string) error {
	messages := pv.violations(password, email)
	if len(messages) == 0 {
		return nil
	}
	details := commonerrors.FieldErrors{}
	for _, m := range messages {
		details.Add(field, m)
	}
	return commonerrors.ErrValidation.WithDetails(details)
}

func (pv PasswordValidator) violations(password, email string) []string {
	var out []string
	p := pv.policy

	if len([]rune(password)) < p.MinLength {
		out = append(out, fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if len(password) > constants.PasswordMaxLength {
		out = append(out, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", constants.PasswordMaxLength))
	}

	var hasLetter, hasDigit, hasUpper, hasSymbol bool
	allDigits := password != ""
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
			allDigits = false
			if unicode.IsUpper(r) {
				hasUpper = true
			}
		default:
			hasSymbol = true
			allDigits = false
		}
	}

	if p.RejectNumeric && allDigits {
		out = append(out, "This password is entirely numeric.")
	}
	if p.RequireLetter && !hasLetter {
		out = append(out, "This password must contain at least one letter.")
	}
	if p.RequireDigit && !hasDigit {
		out = append(out, "This password must contain at least one digit.")
	}
	if p.RequireUpper && !hasUpper {
		out = append(out, "This password must contain at least one uppercase letter.")
	}
	if p.RequireSymbol && !hasSymbol {
		out = append(out, "This password must contain at least one symbol.")
	}
	if p.RejectEmailTag && tooSimilarToEmail(password, email) {
		out = append(out, "The password is too similar to the email.")
	}
	return out
}

func tooSimilarToEmail(password, email string) bool {
	if email == "" || password == "" {
		return false
	}
	lowered := strings.ToLower(password)
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	return lowered == strings.ToLower(email) || (local != "" && lowered == local)
}
