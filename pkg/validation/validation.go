// Package validation builds request validators whose errors read as plain
// English and name fields by their JSON or query key.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	translatorOnce sync.Once
	translator     ut.Translator
)

func english() ut.Translator {
	translatorOnce.Do(func() {
		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
	})
	return translator
}

// New returns a validator with English messages registered.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	if err := en_translations.RegisterDefaultTranslations(v, english()); err != nil {
		// Only fails on a broken locale table; messages fall back to the
		// validator defaults.
		return v
	}
	return v
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// Details turns validator errors into a field to message map suitable for
// an error payload. It returns nil for any other error.
func Details(err error) map[string]interface{} {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}
	trans := english()
	fields := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		key := strings.TrimPrefix(fe.Namespace(), rootName(fe.Namespace()))
		if key == "" {
			key = fe.Field()
		}
		fields[key] = fe.Translate(trans)
	}
	return map[string]interface{}{"fields": fields}
}

// rootName is the struct name that prefixes every namespace, dot included.
func rootName(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[:i+1]
	}
	return ""
}
