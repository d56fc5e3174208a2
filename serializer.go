package apischema

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

// In identifies where a serializer's input comes from.
type In string

const (
	InQuery In = "query"
	InBody  In = "body"
)

// Data is the raw input handed to a serializer.
type Data struct {
	In          In
	Values      url.Values
	Body        []byte
	ContentType string

	codecs *codecRegistry
}

// Decode decodes the body into v using the decoder for the content type.
func (d Data) Decode(v any) error {
	codecs := d.codecs
	if codecs == nil {
		codecs = defaultCodecs
	}
	dec, ok := codecs.decoderFor(d.ContentType)
	if !ok {
		return Errorf(http.StatusUnsupportedMediaType, "Unsupported media type %q in request.", d.ContentType)
	}
	if len(d.Body) == 0 {
		return nil
	}
	return dec.Decode(bytes.NewReader(d.Body), v)
}

// keys decodes the body as an object and returns its top-level keys, lower
// cased to match the case-insensitive field matching of encoding/json. It
// returns nil when the body does not decode into a map.
func (d Data) keys() map[string]any {
	if len(d.Body) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := d.Decode(&m); err != nil || m == nil {
		return nil
	}
	keys := make(map[string]any, len(m))
	for k, v := range m {
		keys[strings.ToLower(k)] = v
	}
	return keys
}

// Serializer validates one call's input.
type Serializer interface {
	// SetInstance sets the object the input applies to (nil for non-detail calls).
	SetInstance(obj any)
	// SetInitialData sets the raw input.
	SetInitialData(data Data)
	// IsValid validates the input. It returns nil, a *ValidationError, or
	// any other error, which is treated as unexpected.
	IsValid() error
	// ValidatedData returns the validated input after IsValid succeeded.
	ValidatedData() any
}

// Schema produces serializers and describes their type for documentation.
type Schema interface {
	Serializer() Serializer
	Type() reflect.Type
}

// Of returns a schema that builds a new StructSerializer[T] for every call.
func Of[T any]() Schema {
	return typeSchema[T]{}
}

type typeSchema[T any] struct{}

func (typeSchema[T]) Serializer() Serializer { return NewSerializer[T]() }
func (typeSchema[T]) Type() reflect.Type     { return reflect.TypeFor[T]() }

// Instance returns a schema that reuses s for every call. Reuse means calls
// share its state, so s must be safe for concurrent use if the endpoint is.
func Instance(s Serializer) Schema {
	return instanceSchema{s: s}
}

type instanceSchema struct {
	s Serializer
}

func (i instanceSchema) Serializer() Serializer { return i.s }

func (i instanceSchema) Type() reflect.Type {
	if t, ok := i.s.(interface{ Type() reflect.Type }); ok {
		return t.Type()
	}
	return reflect.TypeOf(i.s)
}

// SelfValidator is implemented by input types that validate themselves after
// binding and constraint checks pass.
type SelfValidator interface {
	Validate() error
}

// StructSerializer binds and validates input into a T using struct tags.
//
// Query input binds fields by their `query` tag (or JSON name) and falls back
// to the `default` tag. Body input decodes by content type. Both then check
// the constraint tags: required, minimum, maximum, minLength, maxLength,
// pattern, enum, minItems, maxItems.
type StructSerializer[T any] struct {
	instance  any
	data      Data
	validated *T
}

// NewSerializer returns an empty StructSerializer.
func NewSerializer[T any]() *StructSerializer[T] {
	return &StructSerializer[T]{}
}

// SetInstance sets the object the input applies to.
func (s *StructSerializer[T]) SetInstance(obj any) { s.instance = obj }

// Instance returns the object the input applies to.
func (s *StructSerializer[T]) Instance() any { return s.instance }

// SetInitialData sets the raw input.
func (s *StructSerializer[T]) SetInitialData(data Data) {
	s.data = data
	s.validated = nil
}

// Type returns the reflected T.
func (s *StructSerializer[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

// ValidatedData returns *T after a successful IsValid, otherwise nil.
func (s *StructSerializer[T]) ValidatedData() any {
	if s.validated == nil {
		return nil
	}
	return s.validated
}

// IsValid binds the input and checks every constraint, collecting all
// failures into one ValidationError.
func (s *StructSerializer[T]) IsValid() error {
	s.validated = nil
	out := new(T)
	fields := fieldErrors{}

	switch s.data.In {
	case InQuery:
		bindValues(out, s.data.Values, fields)
	default:
		if err := s.data.Decode(out); err != nil {
			var he *HTTPError
			if errors.As(err, &he) {
				return err
			}
			return &ValidationError{Detail: map[string][]string{
				nonFieldErrors: {fmt.Sprintf("JSON parse error - %v", err)},
			}}
		}
		checkRequired(out, s.data.keys(), fields)
	}

	checkConstraints(out, fields)

	if len(fields) == 0 {
		if sv, ok := any(out).(SelfValidator); ok {
			if err := sv.Validate(); err != nil {
				var ve *ValidationError
				if errors.As(err, &ve) {
					return ve
				}
				fields.add(nonFieldErrors, err.Error())
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Detail: map[string][]string(fields)}
	}

	s.validated = out
	return nil
}

const nonFieldErrors = "non_field_errors"

type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}
