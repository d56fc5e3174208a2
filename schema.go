package apischema

import (
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

const componentsPrefix = "#/components/schemas/"

// schemaRegistry converts Go types to OpenAPI schemas, collecting named
// struct types under components/schemas and referencing them by $ref.
type schemaRegistry struct {
	defs  openapi3.Schemas
	names map[reflect.Type]string
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		defs:  make(openapi3.Schemas),
		names: make(map[reflect.Type]string),
	}
}

var unsafeSchemaChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// schemaName returns the component name of a named type, qualifying it with
// its package when another type already took the plain name.
func (sr *schemaRegistry) schemaName(t reflect.Type) string {
	if name, ok := sr.names[t]; ok {
		return name
	}
	name := unsafeSchemaChars.ReplaceAllString(t.Name(), "_")
	name = strings.Trim(name, "_")
	if _, taken := sr.defs[name]; taken {
		pkg := t.PkgPath()
		if i := strings.LastIndex(pkg, "/"); i >= 0 {
			pkg = pkg[i+1:]
		}
		name = pkg + "." + name
	}
	sr.names[t] = name
	return name
}

// typeToSchema converts a reflect.Type to a schema reference.
func (sr *schemaRegistry) typeToSchema(t reflect.Type) *openapi3.SchemaRef {
	if t == nil {
		return openapi3.NewSchemaRef("", &openapi3.Schema{})
	}
	if t.Kind() == reflect.Pointer {
		return sr.typeToSchema(t.Elem())
	}

	if s := wellKnownSchema(t); s != nil {
		return openapi3.NewSchemaRef("", s)
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return openapi3.NewSchemaRef("", openapi3.NewStringSchema())
	case reflect.Bool:
		return openapi3.NewSchemaRef("", openapi3.NewBoolSchema())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewSchemaRef("", openapi3.NewIntegerSchema())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewSchemaRef("", openapi3.NewIntegerSchema().WithMin(0))
	case reflect.Float32, reflect.Float64:
		return openapi3.NewSchemaRef("", openapi3.NewFloat64Schema())
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return openapi3.NewSchemaRef("", openapi3.NewStringSchema().WithFormat("byte"))
		}
		arr := openapi3.NewArraySchema()
		arr.Items = sr.typeToSchema(t.Elem())
		return openapi3.NewSchemaRef("", arr)
	case reflect.Map:
		obj := openapi3.NewObjectSchema()
		if t.Key().Kind() == reflect.String {
			obj.AdditionalProperties = openapi3.AdditionalProperties{Schema: sr.typeToSchema(t.Elem())}
		}
		return openapi3.NewSchemaRef("", obj)
	case reflect.Struct:
		if t.Name() == "" {
			return openapi3.NewSchemaRef("", sr.structToSchema(t))
		}
		name := sr.schemaName(t)
		if _, ok := sr.defs[name]; !ok {
			// Placeholder first so recursive types terminate.
			sr.defs[name] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema())
			sr.defs[name] = openapi3.NewSchemaRef("", sr.structToSchema(t))
		}
		return openapi3.NewSchemaRef(componentsPrefix+name, sr.defs[name].Value)
	default:
		return openapi3.NewSchemaRef("", &openapi3.Schema{})
	}
}

// structToSchema converts a struct type to an object schema with properties.
func (sr *schemaRegistry) structToSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	if schema.Properties == nil {
		schema.Properties = make(openapi3.Schemas)
	}

	for _, f := range promotedFields(t) {
		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := sr.typeToSchema(f.Type)
		if prop.Ref == "" {
			applyFieldTags(prop.Value, f)
		}
		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// applyFieldTags copies doc, default and constraint tags onto an inline schema.
func applyFieldTags(s *openapi3.Schema, f reflect.StructField) {
	if doc := f.Tag.Get("doc"); doc != "" {
		s.Description = doc
	}
	if tag := f.Tag.Get("minimum"); tag != "" {
		if v, err := strconv.ParseFloat(tag, 64); err == nil {
			s.Min = &v
		}
	}
	if tag := f.Tag.Get("maximum"); tag != "" {
		if v, err := strconv.ParseFloat(tag, 64); err == nil {
			s.Max = &v
		}
	}
	if tag := f.Tag.Get("minLength"); tag != "" {
		if n, err := strconv.ParseUint(tag, 10, 64); err == nil {
			s.MinLength = n
		}
	}
	if tag := f.Tag.Get("maxLength"); tag != "" {
		if n, err := strconv.ParseUint(tag, 10, 64); err == nil {
			s.MaxLength = &n
		}
	}
	if tag := f.Tag.Get("pattern"); tag != "" {
		s.Pattern = tag
	}
	if tag := f.Tag.Get("enum"); tag != "" {
		for v := range strings.SplitSeq(tag, ",") {
			s.Enum = append(s.Enum, v)
		}
	}
	if tag := f.Tag.Get("minItems"); tag != "" {
		if n, err := strconv.ParseUint(tag, 10, 64); err == nil {
			s.MinItems = n
		}
	}
	if tag := f.Tag.Get("maxItems"); tag != "" {
		if n, err := strconv.ParseUint(tag, 10, 64); err == nil {
			s.MaxItems = &n
		}
	}
	if def, ok := f.Tag.Lookup("default"); ok {
		s.Default = parseDefault(f.Type, def)
	}
}

// parseDefault converts a default tag to the field's JSON type.
func parseDefault(t reflect.Type, def string) any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		// Numbers are float64 as in decoded JSON.
		if n, err := strconv.ParseFloat(def, 64); err == nil {
			return n
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(def); err == nil {
			return b
		}
	}
	return def
}

func wellKnownSchema(t reflect.Type) *openapi3.Schema {
	switch t {
	case reflect.TypeFor[time.Time]():
		return openapi3.NewDateTimeSchema()
	case reflect.TypeFor[time.Duration]():
		return openapi3.NewStringSchema().WithFormat("duration")
	}
	return nil
}

func isWellKnown(t reflect.Type) bool {
	return wellKnownSchema(t) != nil
}

// promotedFields returns the exported fields of struct type t as
// encoding/json sees them: an untagged embedded struct contributes its own
// fields in its place, and a shallower field hides a deeper one of the same
// name. Index is relative to t.
func promotedFields(t reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	depth := make(map[string]int)
	collectFields(t, nil, map[reflect.Type]bool{}, func(f reflect.StructField) {
		name := jsonFieldName(f)
		if name == "-" {
			out = append(out, f)
			return
		}
		if d, ok := depth[name]; ok && d <= len(f.Index) {
			return
		}
		depth[name] = len(f.Index)
		out = slices.DeleteFunc(out, func(o reflect.StructField) bool { return jsonFieldName(o) == name })
		out = append(out, f)
	})
	return out
}

func collectFields(t reflect.Type, index []int, seen map[reflect.Type]bool, yield func(reflect.StructField)) {
	if seen[t] {
		return
	}
	seen[t] = true
	defer delete(seen, t)

	for i := range t.NumField() {
		f := t.Field(i)
		f.Index = append(slices.Clone(index), i)
		if et, ok := embeddedStruct(f); ok {
			collectFields(et, f.Index, seen, yield)
			continue
		}
		if f.IsExported() {
			yield(f)
		}
	}
}

// embeddedStruct reports whether f is an anonymous struct field whose fields
// are promoted into the parent's JSON object.
func embeddedStruct(f reflect.StructField) (reflect.Type, bool) {
	if !f.Anonymous {
		return nil, false
	}
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" {
		return nil, false
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || isWellKnown(t) {
		return nil, false
	}
	return t, true
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// listOf documents an array of the element schema.
type listOf struct {
	elem Schema
}

func (l listOf) Serializer() Serializer { return l.elem.Serializer() }
func (l listOf) Type() reflect.Type     { return reflect.SliceOf(l.elem.Type()) }
