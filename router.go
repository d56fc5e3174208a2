package apischema

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// Router hosts decorated endpoints and view sets, and generates their
// OpenAPI document. It implements http.Handler.
type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
	routes     []routeInfo

	title       string
	version     string
	description string
	servers     []string
	tagDescs    map[string]string
	security    openapi3.SecuritySchemes

	settings *Settings

	encoders []Encoder
	decoders []Decoder
	codecs   *codecRegistry

	notFound     http.Handler
	errorHandler ErrorHandler

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title (used in OpenAPI spec).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in OpenAPI spec).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithAPIDescription sets the API description (used in OpenAPI spec).
func WithAPIDescription(desc string) RouterOption {
	return func(r *Router) {
		r.description = desc
	}
}

// WithServers sets the OpenAPI server URLs.
func WithServers(urls ...string) RouterOption {
	return func(r *Router) {
		r.servers = append(r.servers, urls...)
	}
}

// WithTagDescriptions sets tag descriptions for the OpenAPI spec.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(r *Router) {
		r.tagDescs = descs
	}
}

// WithSecurityScheme documents a security scheme and lists it as a global
// requirement of the API.
func WithSecurityScheme(name string, scheme *openapi3.SecurityScheme) RouterOption {
	return func(r *Router) {
		if r.security == nil {
			r.security = make(openapi3.SecuritySchemes)
		}
		r.security[name] = &openapi3.SecuritySchemeRef{Value: scheme}
	}
}

// WithRouterSettings sets the settings endpoints registered on the router
// inherit. Without it they use the process-wide defaults.
func WithRouterSettings(s Settings) RouterOption {
	return func(r *Router) {
		r.settings = &s
	}
}

// WithErrorHandler sets the writer for errors endpoints propagate.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithNotFound sets the handler answering ErrNotFound.
func WithNotFound(h http.Handler) RouterOption {
	return func(r *Router) {
		r.notFound = h
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(r *Router) {
		r.encoders = append(r.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(r *Router) {
		r.decoders = append(r.decoders, dec)
	}
}

// NewRouter creates a new Router with the given options.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.codecs = newCodecRegistry(r.encoders, r.decoders)
	return r
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handle registers a pre-built endpoint. Endpoints built with Wrap keep the
// settings and codecs they were built with.
func (r *Router) Handle(method, pattern string, ep *Endpoint, tags ...string) {
	r.addRoute(routeInfo{
		method:  method,
		pattern: pattern,
		doc:     ep.Doc(),
		tags:    tags,
		handler: guard(ep, r.env()),
	})
}

// env returns the build environment endpoints registered on r inherit.
func (r *Router) env() buildEnv {
	return buildEnv{
		settings:     r.settings,
		codecs:       r.codecs,
		notFound:     r.notFound,
		errorHandler: r.errorHandler,
	}
}

// addRoute registers a routeInfo with the router's mux and stores it
// for OpenAPI generation. Global middleware is applied in ServeHTTP;
// only group middleware is baked into ri.handler.
func (r *Router) addRoute(ri routeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mux.Handle(ri.method+" "+ri.pattern, ri.handler)
	r.routes = append(r.routes, ri)
}

func (r *Router) routeMiddleware() []Middleware { return nil }
