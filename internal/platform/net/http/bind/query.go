package bind

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	perr "reddcrawl/internal/platform/errors"
)

// Query decodes URL query parameters into T using `query` struct tags, then validates it.
// Supported kinds are string, bool, signed and unsigned ints, floats and time.Duration
func Query[T any](r *http.Request) (T, error) {
	var dst T
	rv := reflect.ValueOf(&dst).Elem()
	if rv.Kind() != reflect.Struct {
		return dst, perr.Newf(perr.ErrorCodeUnknown, "bind: Query wants a struct, got %s", rv.Kind())
	}
	vals := r.URL.Query()
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("query"), ",")
		if name == "" || name == "-" || !f.IsExported() {
			continue
		}
		raw := strings.TrimSpace(vals.Get(name))
		if raw == "" {
			continue
		}
		if err := setField(rv.Field(i), raw); err != nil {
			return dst, perr.WithField(perr.Newf(perr.ErrorCodeInvalidArgument, "%s: %v", name, err), name)
		}
	}
	if err := Validate(dst); err != nil {
		return dst, err
	}
	return dst, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(v reflect.Value, raw string) error {
	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return perr.Newf(perr.ErrorCodeUnknown, "unsupported kind %s", v.Kind())
	}
	return nil
}
