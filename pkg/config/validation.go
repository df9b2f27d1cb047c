package config

import (
	"reflect"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// Validator is implemented by settings structs that need checks beyond
// `required:"true"`. Load calls Validate after the required check passes.
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, typed := agerr.AsError(err); typed {
			return err
		}
		return agerr.Wrap(err, agerr.CodeValidation, "config: validation failed")
	}
	return nil
}

// validateRequired reports the first zero field tagged required, using its
// dotted path ("Redis.Addr") in the message.
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field, sf := rv.Field(i), rt.Field(i)
		if !field.CanSet() {
			continue
		}
		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}
		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}
		if sf.Tag.Get("required") == "true" && field.IsZero() {
			return agerr.Newf(agerr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}
