// Package bind decodes request input into structs and validates it with
// go-playground/validator, reporting failures as project errors
package bind

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type checker struct {
	v     *validator.Validate
	trans ut.Translator
}

// short forms replace the stock english messages
var shortMessages = map[string]string{
	"min":   "{0} must be at least {1}",
	"max":   "{0} must be at most {1}",
	"oneof": "{0} must be one of [{1}]",
}

var get = sync.OnceValue(func() checker {
	loc := en.New()
	trans, _ := ut.New(loc, loc).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		logger.Named("bind").Warn().Err(err).Msg("validator translations unavailable")
	}
	for tag, text := range shortMessages {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(fe.Tag(), fe.Field(), fe.Param())
				return msg
			},
		)
	}
	return checker{v: v, trans: trans}
})

// fieldName reports a field by its query tag, then its json tag
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"query", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Validate checks v against its validate tags. The first failing field is
// reported as ErrorCodeValidation with that field attached
func Validate(v any) error {
	c := get()
	err := c.v.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "bind: cannot validate")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return perr.WithField(perr.New(perr.ErrorCodeValidation, fe.Translate(c.trans)), fe.Field())
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "validation failed")
}
