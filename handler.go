package apischema

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
)

// HandlerFunc is the endpoint-specific business logic wrapped by a Decorator.
//
// It returns one of: nil (204 No Content), a *Response or http.Handler
// (passed through unchanged), or a plain value (wrapped in a 200 response).
type HandlerFunc func(ctx context.Context, ev *Event) (any, error)

// Event is the per-call context of a decorated handler. A fresh Event is
// created for every invocation and never shared across calls.
type Event struct {
	// Request is the incoming request. Its context carries the active
	// transaction and query log when those layers are enabled.
	Request *http.Request

	// View is the view-set context for method-style calls, nil for
	// function-style handlers.
	View *View

	// Args holds the path values named in the route pattern.
	Args map[string]string

	codecs *codecRegistry

	body     []byte
	bodyRead bool

	serializer Serializer
	validated  any
	hasData    bool
}

func newEvent(r *http.Request, view *View, codecs *codecRegistry) *Event {
	return &Event{
		Request: r,
		View:    view,
		Args:    pathArgs(r, view),
		codecs:  codecs,
	}
}

// Detail reports whether the call targets a single object.
func (e *Event) Detail() bool {
	return e.View != nil && e.View.Detail
}

// Object returns the object a detail endpoint operates on, fetched through
// the view set's lookup. It returns nil for non-detail calls.
func (e *Event) Object(ctx context.Context) (any, error) {
	if !e.Detail() {
		return nil, nil
	}
	return e.View.GetObject(ctx, e.Request)
}

// QueryData returns the parsed query string.
func (e *Event) QueryData() url.Values {
	return e.Request.URL.Query()
}

// BodyData returns the request body. The body is read once and cached; the
// request body is replaced so later readers still see the bytes.
func (e *Event) BodyData() ([]byte, error) {
	if e.bodyRead {
		return e.body, nil
	}
	e.bodyRead = true
	if e.Request.Body == nil || e.Request.Body == http.NoBody {
		return nil, nil
	}
	b, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return nil, bodyReadError(err)
	}
	e.body = b
	e.Request.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

// Serializer returns the serializer that validated the input, or nil.
func (e *Event) Serializer() Serializer { return e.serializer }

// ValidatedData returns the validated input and whether validation ran.
func (e *Event) ValidatedData() (any, bool) { return e.validated, e.hasData }

// PathValue returns the named path value.
func (e *Event) PathValue(name string) string { return e.Args[name] }

func (e *Event) attach(s Serializer) {
	e.serializer = s
	e.validated = s.ValidatedData()
	e.hasData = true
}

// Validated returns the validated input as *T. The second result is false
// when no schema validated the call or the data has a different type.
func Validated[T any](ev *Event) (*T, bool) {
	switch v := ev.validated.(type) {
	case *T:
		return v, v != nil
	case T:
		return &v, true
	default:
		return nil, false
	}
}

func pathArgs(r *http.Request, view *View) map[string]string {
	args := make(map[string]string)
	if view != nil && view.Detail {
		args[view.lookupField()] = r.PathValue(view.lookupField())
	}
	for _, name := range patternNames(r.Pattern) {
		args[name] = r.PathValue(name)
	}
	return args
}
