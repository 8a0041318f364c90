package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs the `validate` tags on v and converts the first failure
// into a KindValidation error with a readable message.
func ValidateStruct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return Wrap(KindValidation, "invalid request payload", err)
	}

	return New(KindValidation, describe(validationErrors[0]))
}

// ValidateVar checks a single value against a tag, e.g. "required,email".
func ValidateVar(field string, value any, tag string) error {
	err := structValidator.Var(value, tag)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return Wrap(KindValidation, "invalid "+field, err)
	}

	fe := validationErrors[0]
	return New(KindValidation, describeTag(field, fe.Tag(), fe.Param()))
}

func describe(fe validator.FieldError) string {
	return describeTag(fe.Field(), fe.Tag(), fe.Param())
}

func describeTag(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, param)
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", field)
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}
