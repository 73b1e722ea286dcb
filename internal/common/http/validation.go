package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateRequest runs struct tag validation on a decoded request body and
// returns ErrValidation carrying one message list per offending field.
func ValidateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return commonerrors.ErrInternalError.WithCause(err)
	}

	details := commonerrors.FieldErrors{}
	for _, fe := range validationErrs {
		details.Add(fe.Field(), fieldMessage(fe))
	}
	return commonerrors.ErrValidation.WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "e164", "phone":
		return "Enter a valid phone number."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
