package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

// validate is shared by every service; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so messages match the payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// Blank enum values are "absent" and get defaulted later.
	must(v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		s := model.Status(strings.TrimSpace(fl.Field().String()))
		return s == "" || s.Valid()
	}))
	must(v.RegisterValidation("itemtype", func(fl validator.FieldLevel) bool {
		t := model.ItemType(strings.TrimSpace(fl.Field().String()))
		return t == "" || t.Valid()
	}))

	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidateDraft rejects malformed values in a draft. Missing values are not
// errors: Materialize defaults them.
func ValidateDraft(d model.Draft) error {
	return validateStruct(d)
}

// validateStruct runs the struct's validate tags and converts the first
// failure into an apperror.ValidationFailed naming the offending field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := verrs[0]
	return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), strings.ToLower(fe.Param()))
	case "status":
		return fmt.Sprintf("status must be one of %s", joinQuoted(model.Statuses))
	case "itemtype":
		return fmt.Sprintf("type must be one of %s", joinQuoted(model.ItemTypes))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func joinQuoted[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(parts, ", ")
}
