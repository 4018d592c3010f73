// Package validator runs go-playground/validator struct validation on bound
// request DTOs and reports failures per JSON field.
package validator

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// ErrValidation is matched by every *Errors value.
var ErrValidation = errors.New("validation failed")

// Errors maps JSON field paths to human readable messages.
type Errors map[string][]string

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msgs := range e {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) Is(target error) bool { return target == ErrValidation }

// FieldErrors exposes the per-field messages to the HTTP error handler.
func (e Errors) FieldErrors() map[string][]string { return e }

// Validator wraps a configured *validator.Validate.
type Validator struct {
	v *playground.Validate
}

// New returns a Validator that reports fields by their json tag names.
func New() *Validator {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. It returns Errors for rule violations and the raw
// validator error for anything else (for example a non-struct argument).
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out[field] = append(out[field], message(fe))
	}
	return out
}

// Bind returns a binder step for handler.WithBinders that validates the
// already decoded request.
func (val *Validator) Bind() func(r *http.Request, v any) error {
	return func(_ *http.Request, v any) error {
		return val.Struct(v)
	}
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
