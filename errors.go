package apischema

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is the framework-native not-found condition. It is never
// translated into an error envelope; the router's not-found handler answers it.
var ErrNotFound = errors.New("not found")

// Detail messages used by the built-in error responses.
const (
	MessageForbidden   = "You do not have permission to perform this action."
	MessageServerError = "Server error."
	MessageNotFound    = "Not found."
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is a domain error carrying an explicit status and response content.
type HTTPError struct {
	Status  int
	Content map[string]any
}

// Error returns the detail message, or the status text when there is none.
func (e *HTTPError) Error() string {
	if d, ok := e.Content["detail"]; ok {
		return fmt.Sprint(d)
	}
	return http.StatusText(e.Status)
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns a domain error with the given status. A map content is used
// as the response body as is; anything else becomes {"detail": content}.
// A zero status defaults to 400.
func Error(status int, content any) error {
	if status == 0 {
		status = http.StatusBadRequest
	}
	if m, ok := content.(map[string]any); ok {
		return &HTTPError{Status: status, Content: m}
	}
	return &HTTPError{Status: status, Content: map[string]any{"detail": content}}
}

// Errorf returns a domain error whose detail is a formatted message.
func Errorf(status int, format string, args ...any) error {
	return Error(status, fmt.Sprintf(format, args...))
}

// ValidationError reports input that failed schema validation. Detail is
// usually a map of field name to messages.
type ValidationError struct {
	Detail any
}

// Error summarizes the validation failure.
func (e *ValidationError) Error() string {
	if m, ok := e.Detail.(map[string][]string); ok {
		parts := make([]string, 0, len(m))
		for _, field := range sortedKeys(m) {
			parts = append(parts, field+": "+strings.Join(m[field], " "))
		}
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("validation failed: %v", e.Detail)
}

// StatusCode returns 422.
func (e *ValidationError) StatusCode() int { return http.StatusUnprocessableEntity }

// errForbidden is raised by the permission layer when no predicate grants access.
func errForbidden() error {
	return Error(http.StatusForbidden, MessageForbidden)
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// IsAcceptJSON reports whether the first media type of the Accept header is
// exactly application/json.
func IsAcceptJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	mediaType, _, _ := strings.Cut(accept, ";")
	return mediaType == "application/json"
}

// ObjectOr422 converts a not-found lookup into a 422 domain error.
//
//	user, err := apischema.ObjectOr422(store.Get(ctx, id))
func ObjectOr422[T any](v T, err error) (T, error) {
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, Error(http.StatusUnprocessableEntity, MessageNotFound)
	}
	return v, err
}

// CheckExists returns a 422 domain error when exists is false.
func CheckExists(exists bool, err error) error {
	if err != nil {
		return err
	}
	if !exists {
		return Error(http.StatusUnprocessableEntity, MessageNotFound)
	}
	return nil
}
