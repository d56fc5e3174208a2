package apischema

import (
	"errors"
	"net/http"
)

// MessageBodyTooLarge is the detail of a request whose body exceeds the limit.
const MessageBodyTooLarge = "Request body too large."

// BodyLimit returns middleware that caps request bodies at maxBytes. A
// decorated endpoint reading a larger body answers 413 with a detail body.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// bodyReadError converts a body read failure into a domain error.
func bodyReadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return Error(http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
	}
	return Errorf(http.StatusBadRequest, "read body: %v", err)
}
