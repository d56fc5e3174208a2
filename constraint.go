package apischema

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// constraint is one validation tag. check receives the tag value and the
// dereferenced field value and returns a message when the value fails.
type constraint struct {
	tag   string
	kinds func(reflect.Kind) bool
	check func(tag string, f reflect.StructField, v reflect.Value) (string, bool)
}

// constraints run in declaration order; every failing one is reported.
var constraints = []constraint{
	{tag: "minLength", kinds: isString, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		n, err := strconv.Atoi(tag)
		if err != nil || utf8.RuneCountInString(v.String()) >= n {
			return "", false
		}
		return fmt.Sprintf("Ensure this field has at least %d characters.", n), true
	}},
	{tag: "maxLength", kinds: isString, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		n, err := strconv.Atoi(tag)
		if err != nil || utf8.RuneCountInString(v.String()) <= n {
			return "", false
		}
		return fmt.Sprintf("Ensure this field has no more than %d characters.", n), true
	}},
	{tag: "pattern", kinds: isString, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		re, err := compilePattern(tag)
		if err != nil || re.MatchString(v.String()) {
			return "", false
		}
		return "This value does not match the required pattern.", true
	}},
	{tag: "enum", kinds: isString, check: func(tag string, f reflect.StructField, v reflect.Value) (string, bool) {
		val := v.String()
		// Optional enums may be left empty.
		if val == "" && f.Tag.Get("required") != "true" {
			return "", false
		}
		if slices.Contains(strings.Split(tag, ","), val) {
			return "", false
		}
		return fmt.Sprintf("%q is not a valid choice.", val), true
	}},
	{tag: "minimum", kinds: isNumericKind, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		lower, err := strconv.ParseFloat(tag, 64)
		if err != nil || toFloat64(v) >= lower {
			return "", false
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", tag), true
	}},
	{tag: "maximum", kinds: isNumericKind, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		upper, err := strconv.ParseFloat(tag, 64)
		if err != nil || toFloat64(v) <= upper {
			return "", false
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", tag), true
	}},
	{tag: "minItems", kinds: isList, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		n, err := strconv.Atoi(tag)
		if err != nil || v.Len() >= n {
			return "", false
		}
		return fmt.Sprintf("Ensure this field has at least %d elements.", n), true
	}},
	{tag: "maxItems", kinds: isList, check: func(tag string, _ reflect.StructField, v reflect.Value) (string, bool) {
		n, err := strconv.Atoi(tag)
		if err != nil || v.Len() <= n {
			return "", false
		}
		return fmt.Sprintf("Ensure this field has no more than %d elements.", n), true
	}},
}

var patterns sync.Map // map[string]*regexp.Regexp

func compilePattern(expr string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}

// checkConstraints checks the constraint tags of every field of v. Nested
// structs report under dotted paths such as "address.zip".
func checkConstraints(v any, errs fieldErrors) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() == reflect.Struct {
		walkFields(rv, "", errs)
	}
}

func walkFields(rv reflect.Value, prefix string, errs fieldErrors) {
	for _, f := range promotedFields(rv.Type()) {
		name := queryFieldName(f)
		if name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		fv, err := rv.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		for _, c := range constraints {
			tag, ok := f.Tag.Lookup(c.tag)
			if !ok || !c.kinds(fv.Kind()) {
				continue
			}
			if msg, failed := c.check(tag, f, fv); failed {
				errs.add(name, msg)
			}
		}

		if fv.Kind() == reflect.Struct && !isWellKnown(fv.Type()) {
			walkFields(fv, name, errs)
		}
	}
}

// checkRequired reports required body fields the input left out. keys holds
// the top-level keys of the body, lower cased; when it is nil the decoder
// could not map the body and a field counts as present when it is non-zero.
func checkRequired(v any, keys map[string]any, errs fieldErrors) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return
	}
	for _, f := range promotedFields(rv.Type()) {
		if f.Tag.Get("required") != "true" {
			continue
		}
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		if keys == nil {
			if fv, err := rv.FieldByIndexErr(f.Index); err != nil || fv.IsZero() {
				errs.add(name, msgRequired)
			}
			continue
		}

		val, ok := keys[strings.ToLower(name)]
		switch {
		case !ok:
			errs.add(name, msgRequired)
		case val == nil && !nullable(f.Type):
			errs.add(name, msgNull)
		}
	}
}

// nullable reports whether a JSON null decodes into t as a distinct value.
func nullable(t reflect.Type) bool {
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		return true
	}
	return false
}

func isString(k reflect.Kind) bool { return k == reflect.String }

func isList(k reflect.Kind) bool { return k == reflect.Slice || k == reflect.Array }

func isNumericKind(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}

func isInt(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isUint(k reflect.Kind) bool { return k >= reflect.Uint && k <= reflect.Uintptr }

func toFloat64(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
