// Package validator wraps go-playground/validator with the custom tags the
// request DTOs use.
package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

type Validator struct {
	v *validator.Validate
}

// New registers:
//
//	clock   HH:MM or HH:MM:SS wall-clock time
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockTime.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}
