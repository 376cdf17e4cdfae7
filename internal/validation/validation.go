package validation

import "github.com/go-playground/validator/v10"

// validate is shared: validator caches struct metadata per instance.
var validate = validator.New()

// Struct runs the tag based validation of v.
func Struct(v interface{}) error {
	return validate.Struct(v)
}
