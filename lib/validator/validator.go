package validator

import (
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{validator: v}
}

// Validate satisfies echo.Validator. All field errors are joined into one line.
func (val *Validator) Validate(i interface{}) error {
	err := val.validator.Struct(i)
	if err == nil {
		return nil
	}

	return errors.New(strings.ReplaceAll(err.Error(), "\n", ", "))
}

// First returns the first failing field in struct declaration order.
func (val *Validator) First(i interface{}) (validator.FieldError, error) {
	err := val.validator.Struct(i)
	if err == nil {
		return nil, nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return nil, err
	}

	return fields[0], nil
}
