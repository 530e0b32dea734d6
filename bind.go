package modkit

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// Bind shallow-copies request parameters onto the exported struct fields
// of dst. Fields are matched by their `param` tag first, then by
// case-insensitive field name. Unknown parameters are ignored; a value
// that cannot be converted produces a *BindError. dst must be a non-nil
// pointer to a struct.
func Bind(dst any, params url.Values) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bind target must be a non-nil pointer, got %T", dst)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("bind target must point to a struct, got %T", dst)
	}

	// Case-insensitive parameter index.
	lower := make(map[string][]string, len(params))
	for k, vs := range params {
		lower[strings.ToLower(k)] = vs
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Tag.Get("param")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		vals, ok := lower[strings.ToLower(name)]
		if !ok || len(vals) == 0 {
			continue
		}

		if err := setField(rv.Field(i), vals); err != nil {
			return &BindError{Field: field.Name, Value: vals[0], Err: err}
		}
	}

	return nil
}

// setField converts parameter values onto a single struct field.
func setField(fv reflect.Value, vals []string) error {
	ft := fv.Type()

	if ft == timeType {
		t, err := time.Parse(time.RFC3339, vals[0])
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	if ft.Kind() == reflect.Slice && ft != reflect.TypeOf([]byte(nil)) {
		slice := reflect.MakeSlice(ft, len(vals), len(vals))
		for i, v := range vals {
			if err := setScalar(slice.Index(i), v); err != nil {
				return err
			}
		}
		fv.Set(slice)
		return nil
	}

	return setScalar(fv, vals[0])
}

// setScalar converts a single string onto a scalar field.
func setScalar(fv reflect.Value, val string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}
	if fv.Type() == timeType {
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(val)
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(val, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(val, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
