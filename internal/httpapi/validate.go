package httpapi

import (
	"github.com/go-playground/validator/v10"
)

// validate is a single shared validator instance; request bodies carry
// struct tags instead of hand-rolled field checks.
var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return validationErrorf("validation failed: %v", err)
	}
	return nil
}
