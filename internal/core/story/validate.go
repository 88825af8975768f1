package story

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	perr "reddcrawl/internal/platform/errors"

	"github.com/go-playground/validator/v10"
)

// Drop reasons for records that never reach the pipeline
const (
	ReasonDecode    = "decode"
	ReasonMissingID = "missing_id"
	ReasonInvalid   = "invalid"
)

var (
	vOnce sync.Once
	vInst *validator.Validate
)

func validate() *validator.Validate {
	vOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		v.RegisterStructValidation(historyAligned, History{})
		vInst = v
	})
	return vInst
}

// historyAligned reports misaligned series on the first offending field
func historyAligned(sl validator.StructLevel) {
	h := sl.Current().Interface().(History)
	n := len(h.Timestamp)
	if len(h.Score) != n {
		sl.ReportError(h.Score, "score", "Score", "aligned", fmt.Sprint(n))
	}
	if len(h.Comments) != n {
		sl.ReportError(h.Comments, "comments", "Comments", "aligned", fmt.Sprint(n))
	}
	if len(h.Gilded) != n {
		sl.ReportError(h.Gilded, "gilded", "Gilded", "aligned", fmt.Sprint(n))
	}
	if len(h.Hotness) != 0 && len(h.Hotness) != n {
		sl.ReportError(h.Hotness, "hotness", "Hotness", "aligned", fmt.Sprint(n))
	}
}

// Validate checks the structural requirements a record must meet before any transform.
// It returns a validation error naming the first offending field, or ErrMissingID
func Validate(s Story) error {
	if strings.TrimSpace(s.Summary.ID) == "" {
		return ErrMissingID
	}
	err := validate().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Story.")
		msg := fmt.Sprintf("story %s: %s failed %s", s.Summary.ID, field, fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return perr.WithField(perr.New(perr.ErrorCodeValidation, msg), field)
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "story: validation failed")
}

// Reason maps a Validate or Annotate error to a drop reason
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingID):
		return ReasonMissingID
	default:
		return ReasonInvalid
	}
}
