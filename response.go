package apischema

import (
	"net/http"
	"reflect"
)

// Kind identifies the shape of a normalized response envelope.
type Kind int

const (
	// KindWrapped is a plain handler value wrapped in a 200 response.
	KindWrapped Kind = iota
	// KindNoContent is the 204 envelope for handlers that return nothing.
	KindNoContent
	// KindPassthrough is a native response returned unchanged.
	KindPassthrough
)

// Response is the normalized response envelope. Handlers may return one
// directly to control status and headers.
type Response struct {
	Status int
	Header http.Header
	Body   any

	kind    Kind
	handler http.Handler
}

// Kind returns the envelope shape.
func (r *Response) Kind() Kind { return r.kind }

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int { return r.Status }

// NewResponse returns a native response with the given status and body.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Body: body, kind: KindPassthrough}
}

// NoContent returns the 204 envelope.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent, kind: KindNoContent}
}

// Redirect is returned from a handler to issue an HTTP redirect.
type Redirect struct {
	URL    string
	Status int
}

// ServeHTTP issues the redirect, defaulting to 302.
func (rd *Redirect) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := rd.Status
	if status == 0 {
		status = http.StatusFound
	}
	http.Redirect(w, r, rd.URL, status)
}

// normalize coerces a handler result into exactly one envelope shape.
func normalize(v any) *Response {
	switch resp := v.(type) {
	case nil:
		return NoContent()
	case *Response:
		if resp == nil {
			return NoContent()
		}
		if resp.kind == KindPassthrough && resp.Status != 0 {
			return resp
		}
		// Handlers may return a shared value; never write through it.
		return passthrough(*resp)
	case Response:
		return passthrough(resp)
	case http.Handler:
		if isNilPointer(resp) {
			return NoContent()
		}
		return &Response{kind: KindPassthrough, handler: resp}
	}
	if isNilPointer(v) {
		return NoContent()
	}
	return &Response{Status: http.StatusOK, Body: v, kind: KindWrapped}
}

func passthrough(resp Response) *Response {
	resp.kind = KindPassthrough
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	return &resp
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// detail builds the {"detail": ...} error envelope.
func detail(status int, msg any) *Response {
	return &Response{Status: status, Body: map[string]any{"detail": msg}, kind: KindPassthrough}
}

// writeResponse writes the envelope, negotiating the encoder from Accept.
func writeResponse(w http.ResponseWriter, r *http.Request, resp *Response, codecs *codecRegistry) {
	if resp.handler != nil {
		resp.handler.ServeHTTP(w, r)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if resp.Status == http.StatusNoContent || resp.Body == nil {
		w.WriteHeader(resp.Status)
		return
	}

	enc, ok := codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		enc = codecs.defaultEncoder()
		resp = detail(http.StatusNotAcceptable, "Could not satisfy the request Accept header.")
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(resp.Status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, resp.Body)
}
