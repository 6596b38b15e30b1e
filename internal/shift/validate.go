package shift

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single failed validation rule, addressed by the wire
// (json) name of the offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// "required" treats "   " as present; shifts need a real event name.
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}

	// Report wire names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateNewShift checks the rules for logging a shift. An empty result
// means the candidate is valid.
func ValidateNewShift(ns *NewShift) []FieldError {
	return runValidation(ns)
}

// ValidateUpdatedShift checks the rules for replacing a shift.
func ValidateUpdatedShift(us *UpdatedShift) []FieldError {
	return runValidation(us)
}

// ValidateNewJob checks the rules for logging a job.
func ValidateNewJob(nj *NewJob) []FieldError {
	return runValidation(nj)
}

func runValidation(candidate any) []FieldError {
	err := validate.Struct(candidate)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: ruleMessage(fe)})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
