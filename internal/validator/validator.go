package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// phonePattern accepts Uzbek mobile and landline numbers in +998 form.
var phonePattern = regexp.MustCompile(`^\+998([378]{2}|(9[013-57-9]))\d{7}$`)

// New returns a validator that reports fields by their json name and knows
// the uzphone tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	configure(v)
	return v
}

// ConfigureGin applies the same configuration to gin's binding validator.
func ConfigureGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	_ = v.RegisterValidation("uzphone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
}

// IsPhone reports whether s matches the accepted phone format.
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// FieldErrors converts validator errors into a map keyed by field path,
// e.g. {"phoneNumber": "...", "address.city": "..."}. ok is false when err
// is not a validation error.
func FieldErrors(err error) (map[string]string, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		key := fieldKey(fe)
		if _, seen := fields[key]; !seen {
			fields[key] = message(key, fe)
		}
	}
	return fields, true
}

// fieldKey drops the root struct name from the namespace.
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "uzphone":
		return fmt.Sprintf("%s must look like +998901234567", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
