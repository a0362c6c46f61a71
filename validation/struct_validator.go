package validation

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/util"
)

// FieldError is one failed rule, reported under the field's config key.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validatorInstance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(configKey)
	_ = v.RegisterValidation("size", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		n, err := util.ParseSizeStrict(s)
		return err == nil && n > 0
	})
	return v
})

// Validate checks s against its `validate` tags. Failures come back as a
// single INVALID_CONFIG AppError whose message lists every field and whose
// "fields" detail holds the []FieldError.
func Validate(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.InvalidConfig("", err.Error())
	}

	fields := make([]FieldError, len(verrs))
	msgs := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = FieldError{Field: trimRoot(e.Namespace()), Message: describe(e)}
		msgs[i] = fields[i].Field + ": " + fields[i].Message
	}
	return errors.InvalidConfig(fields[0].Field, strings.Join(msgs, "; ")).
		WithDetail("fields", fields)
}

// configKey names a field by its mapstructure key so errors read like the
// YAML the operator wrote.
func configKey(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
	if name == "" || name == "-" {
		return snake(f.Name)
	}
	return name
}

func trimRoot(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return rest
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "size":
		return "must be a size such as 64KB"
	case "hostname_port":
		return "must be host:port"
	}
	return "is invalid"
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
