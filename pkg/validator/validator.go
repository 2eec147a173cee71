// Package validator wraps go-playground/validator with the tags the media API
// needs and reports failures keyed by JSON field name.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// folderPattern admits a single storage path segment.
var folderPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("folder", func(fl validator.FieldLevel) bool {
		return folderPattern.MatchString(fl.Field().String())
	})
	return v
}()

// Var validates a single value against a tag expression, e.g. Var(name, "folder").
func Var(field any, tag string) error {
	if err := validate.Var(field, tag); err != nil {
		return wrap(err)
	}
	return nil
}

// Validate checks the validate tags of struct s.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		return wrap(err)
	}
	return nil
}

func wrap(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		return &ValidationError{Errors: errs}
	}
	return err
}

// ValidationError lists every failed field with a readable reason.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field() == "" {
			msgs = append(msgs, "value "+reason(fe))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), reason(fe)))
	}
	return strings.Join(msgs, "; ")
}

// Fields maps JSON field names to reasons, for the error response body.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field()] = reason(fe)
	}
	return fields
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "folder":
		return "may only contain letters, digits, '_' and '-'"
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}
