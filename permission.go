package apischema

import (
	"context"
	"net/http"
	"reflect"
)

// Permission is a predicate evaluated against the request and view.
type Permission interface {
	HasPermission(r *http.Request, view *View) bool
}

// Principal is the authenticated caller as seen by the built-in permissions.
type Principal interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

type principalKey struct{}

// WithPrincipal stores the caller in the request context. For use in
// authentication middleware.
func WithPrincipal(r *http.Request, p Principal) *http.Request {
	ctx := context.WithValue(r.Context(), principalKey{}, p)
	return r.WithContext(ctx)
}

// PrincipalFrom retrieves the caller from the context.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p != nil
}

// AllowAny grants every request. It is omitted from documented permissions.
type AllowAny struct{}

// HasPermission always returns true.
func (AllowAny) HasPermission(*http.Request, *View) bool { return true }

// IsAuthenticated grants authenticated callers.
type IsAuthenticated struct{}

// HasPermission reports whether the caller is authenticated.
func (IsAuthenticated) HasPermission(r *http.Request, _ *View) bool {
	p, ok := PrincipalFrom(r.Context())
	return ok && p.IsAuthenticated()
}

// IsAdminUser grants administrators.
type IsAdminUser struct{}

// HasPermission reports whether the caller is an administrator.
func (IsAdminUser) HasPermission(r *http.Request, _ *View) bool {
	p, ok := PrincipalFrom(r.Context())
	return ok && p.IsAdmin()
}

// IsAuthenticatedOrReadOnly grants safe methods to everyone and the rest to
// authenticated callers.
type IsAuthenticatedOrReadOnly struct{}

// HasPermission implements Permission.
func (IsAuthenticatedOrReadOnly) HasPermission(r *http.Request, v *View) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return IsAuthenticated{}.HasPermission(r, v)
}

// PermissionFunc adapts a function into a named Permission.
func PermissionFunc(name string, fn func(r *http.Request, view *View) bool) Permission {
	return funcPermission{name: name, fn: fn}
}

type funcPermission struct {
	name string
	fn   func(*http.Request, *View) bool
}

func (p funcPermission) HasPermission(r *http.Request, v *View) bool { return p.fn(r, v) }
func (p funcPermission) Name() string                                 { return p.name }

// PermissionName returns the documented name of a permission: its Name
// method when it has one, otherwise its Go type name.
func PermissionName(p Permission) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	t := reflect.TypeOf(p)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// anyPermission reports whether any predicate grants access, in order.
func anyPermission(perms []Permission, r *http.Request, view *View) bool {
	for _, p := range perms {
		if p.HasPermission(r, view) {
			return true
		}
	}
	return false
}

// allPermissions reports whether every predicate grants access.
func allPermissions(perms []Permission, r *http.Request, view *View) bool {
	for _, p := range perms {
		if !p.HasPermission(r, view) {
			return false
		}
	}
	return true
}

// hostPermissions returns the permissions the host checks before an endpoint
// runs: the view set's own, or the default permissions when it declares none.
func hostPermissions(vs ViewSet, s *Settings) []Permission {
	if perms := viewPermissions(vs); len(perms) > 0 {
		return perms
	}
	return s.DefaultPermissions
}
