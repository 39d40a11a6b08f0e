// Package validate checks submitted student forms with go-playground/validator
// and turns its field errors into the ValidationError list the views render.
package validate

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/aanand-mishra/students-web/internal/types"
	"github.com/go-playground/validator/v10"
)

// messages maps a form field (the form:"..." tag) to the message shown when
// any of its rules fail.
var messages = map[string]string{
	"name":  "Name is required",
	"age":   "Age must be greater than 0",
	"email": "Email must be valid",
	"bio":   "Bio must be at least 10 characters",
}

// Validator wraps a configured *validator.Validate. It is safe for
// concurrent use; build one at startup and share it.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the "posint" rule registered and field names
// reported by their form tag.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// posint: the string is a base-10 integer strictly greater than zero.
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("posint", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n > 0
	})

	return &Validator{v: v}
}

// Student validates form and returns one error per failing field, in field
// declaration order (name, age, email, bio). An empty result means valid.
func (val *Validator) Student(form types.StudentForm) []types.ValidationError {
	err := val.v.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError only happens for non-struct input.
		return []types.ValidationError{{Message: err.Error(), Field: ""}}
	}

	out := make([]types.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = "field " + fe.Field() + " is invalid"
		}
		out = append(out, types.ValidationError{Message: msg, Field: fe.Field()})
	}
	return out
}
