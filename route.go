package apischema

import (
	"net/http"
	"strings"
)

// routeInfo holds metadata for a registered route, used for both
// request dispatch and OpenAPI spec generation.
type routeInfo struct {
	method  string
	pattern string
	doc     OperationDoc

	// tags and operationID are host defaults; the endpoint's own
	// documentation takes precedence.
	tags        []string
	operationID string

	handler http.Handler
}

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	addRoute(ri routeInfo)
	env() buildEnv
	routeMiddleware() []Middleware
}

// register decorates h with opts and registers it.
func register(reg Registrar, method, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	env := reg.env()
	ep := New(opts...).build(h, env)

	handler := guard(ep, env)
	routeMW := reg.routeMiddleware()
	for i := len(routeMW) - 1; i >= 0; i-- {
		handler = routeMW[i](handler)
	}

	reg.addRoute(routeInfo{
		method:  method,
		pattern: pattern,
		doc:     ep.Doc(),
		handler: handler,
	})
	return ep
}

// Get registers a decorated GET handler.
func Get(reg Registrar, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	return register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a decorated POST handler.
func Post(reg Registrar, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	return register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a decorated PUT handler.
func Put(reg Registrar, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	return register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a decorated PATCH handler.
func Patch(reg Registrar, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	return register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a decorated DELETE handler.
func Delete(reg Registrar, pattern string, h HandlerFunc, opts ...Option) *Endpoint {
	return register(reg, http.MethodDelete, pattern, h, opts...)
}

// RegisterOption configures a view set registration.
type RegisterOption func(*registration)

type registration struct {
	basename string
	tags     []string
}

// WithBasename sets the name used in operation IDs. Defaults to the last
// segment of the prefix.
func WithBasename(name string) RegisterOption {
	return func(r *registration) {
		r.basename = name
	}
}

// WithViewTags sets the tags of every action. Defaults to the basename.
func WithViewTags(tags ...string) RegisterOption {
	return func(r *registration) {
		r.tags = append(r.tags, tags...)
	}
}

// Register routes every declared action of vs under prefix:
//
//	list, create            prefix/
//	retrieve, update, ...   prefix/{pk}/
//	extra actions           prefix/[{pk}/]name/
//
// A view set that was not decorated with DecorateView gets the default
// decorator on every action. View-level permissions must all pass before the
// action's endpoint runs; a view set without any is held to the default
// permissions instead.
func (r *Router) Register(prefix string, vs ViewSet, opts ...RegisterOption) {
	registerViewSet(r, prefix, vs, opts...)
}

func registerViewSet(reg Registrar, prefix string, vs ViewSet, opts ...RegisterOption) {
	dv, ok := vs.(*DecoratedView)
	if !ok {
		dv = DecorateView(vs, nil)
	}

	base := strings.TrimSuffix(prefix, "/")
	cfg := registration{basename: lastSegment(base)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.tags) == 0 && cfg.basename != "" {
		cfg.tags = []string{cfg.basename}
	}

	env := reg.env()
	endpoints := dv.endpoints(env)
	lookup := lookupField(dv.set)
	routeMW := reg.routeMiddleware()

	for _, a := range dv.Actions() {
		view := View{Set: dv.set, Basename: cfg.basename, Action: a.Name, Detail: a.Detail}
		ep := endpoints[a.Name]

		settings := env.resolvedSettings()
		if ep != nil {
			settings = ep.settings
		}
		perms := hostPermissions(dv.set, &settings)

		var handler http.Handler = viewHandler(view, perms, ep, a.Handler, env)
		for i := len(routeMW) - 1; i >= 0; i-- {
			handler = routeMW[i](handler)
		}

		var doc OperationDoc
		if ep != nil {
			doc = ep.Doc()
		} else {
			doc.Summary, doc.Description = splitDocstring(a.Doc)
			doc.Responses = []ResponseDoc{{Status: http.StatusOK, Description: "OK"}}
		}

		reg.addRoute(routeInfo{
			method:      a.Method,
			pattern:     actionPattern(base, a, lookup),
			doc:         doc,
			tags:        cfg.tags,
			operationID: cfg.basename + "_" + a.Name,
			handler:     handler,
		})
	}
}

// viewHandler checks the view-level permissions and dispatches to the
// decorated endpoint, or straight to the handler for undecorated actions.
func viewHandler(view View, perms []Permission, ep *Endpoint, h HandlerFunc, env buildEnv) http.Handler {
	codecs := env.codecs
	if codecs == nil {
		codecs = defaultCodecs
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := view
		if !allPermissions(perms, r, &v) {
			writeResponse(w, r, detail(http.StatusForbidden, MessageForbidden), codecs)
			return
		}
		if ep != nil {
			ep.Serve(w, r, &v)
			return
		}

		out, err := h(r.Context(), newEvent(r, &v, codecs))
		if err != nil {
			if env.errorHandler != nil {
				env.errorHandler(w, r, err)
				return
			}
			defaultErrorHandler(w, r, err)
			return
		}
		writeResponse(w, r, normalize(out), codecs)
	})
}

// guard checks the default permissions before a function-style endpoint runs.
func guard(ep *Endpoint, env buildEnv) http.Handler {
	perms := hostPermissions(nil, &ep.settings)
	if len(perms) == 0 {
		return ep
	}
	codecs := env.codecs
	if codecs == nil {
		codecs = defaultCodecs
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allPermissions(perms, r, nil) {
			writeResponse(w, r, detail(http.StatusForbidden, MessageForbidden), codecs)
			return
		}
		ep.ServeHTTP(w, r)
	})
}

// actionPattern returns the ServeMux pattern of an action. Patterns end in
// "{$}" so "prefix/" matches exactly.
func actionPattern(base string, a Action, lookup string) string {
	p := base
	if a.Detail {
		p += "/{" + lookup + "}"
	}
	if a.Extra {
		seg := a.URLPath
		if seg == "" {
			seg = a.Name
		}
		p += "/" + seg
	}
	return p + "/{$}"
}

func lastSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// patternNames returns the wildcard names of a ServeMux pattern.
func patternNames(pattern string) []string {
	var names []string
	for {
		start := strings.IndexByte(pattern, '{')
		if start < 0 {
			return names
		}
		end := strings.IndexByte(pattern[start:], '}')
		if end < 0 {
			return names
		}
		name := strings.TrimSuffix(pattern[start+1:start+end], "...")
		if name != "" && name != "$" {
			names = append(names, name)
		}
		pattern = pattern[start+end+1:]
	}
}
