package apischema

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

const (
	msgRequired = "This field is required."
	msgNull     = "This field may not be null."
)

// bindValues binds query values to the fields of target, recording one
// message per field that fails to parse or is required but missing.
func bindValues(target any, values url.Values, errs fieldErrors) {
	v := reflect.ValueOf(target).Elem()
	if v.Kind() != reflect.Struct {
		return
	}

	for _, f := range promotedFields(v.Type()) {
		name := queryFieldName(f)
		if name == "-" {
			continue
		}

		raw, present := values[name]
		if !present || len(raw) == 0 || (len(raw) == 1 && raw[0] == "") {
			def, hasDefault := f.Tag.Lookup("default")
			if !hasDefault {
				if f.Tag.Get("required") == "true" {
					errs.add(name, msgRequired)
				}
				continue
			}
			raw = []string{def}
		}

		field, ok := fieldForSet(v, f.Index)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			errs.add(name, err.Error())
		}
	}
}

// fieldForSet returns the field at index, allocating nil embedded pointers on
// the way. It reports false when a pointer cannot be allocated.
func fieldForSet(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, v.CanSet()
}

// queryFieldName returns the query parameter name of a struct field.
func queryFieldName(f reflect.StructField) string {
	if name := f.Tag.Get("query"); name != "" {
		return name
	}
	return jsonFieldName(f)
}

// setField sets a field from one or more string values, allocating pointers
// and filling slices element by element.
func setField(field reflect.Value, raw []string) error {
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), raw); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
		out := reflect.MakeSlice(field.Type(), len(raw), len(raw))
		for i, s := range raw {
			if err := setFieldValue(out.Index(i), s); err != nil {
				return err
			}
		}
		field.Set(out)
		return nil
	}

	return setFieldValue(field, raw[len(raw)-1])
}

var errUnsupportedType = errors.New("unsupported type")

// setFieldValue sets a reflect.Value from a string, supporting common types.
// Parse failures return the message shown to the client.
func setFieldValue(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.New("Duration has wrong format.")
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}
	if field.Type() == reflect.TypeFor[time.Time]() {
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return errors.New("Datetime has wrong format.")
		}
		field.Set(reflect.ValueOf(ts))
		return nil
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return errors.New("A valid integer is required.")
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return errors.New("A valid integer is required.")
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return errors.New("A valid number is required.")
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.New("Must be a valid boolean.")
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedType, field.Type())
	}
	return nil
}
