package apischema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// endpoint is one stage of the decorated call.
type endpoint func(ctx context.Context, ev *Event) (*Response, error)

// layer wraps the next stage with one concern.
type layer func(next endpoint) endpoint

// ErrorHandler writes the response for errors the endpoint does not
// translate: unexpected errors from clients that do not accept JSON.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Decorator captures one Options record and wraps handlers with it.
type Decorator struct {
	opts Options
}

// New returns a Decorator configured by opts.
func New(opts ...Option) *Decorator {
	d := &Decorator{}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Options returns a copy of the decorator's configuration.
func (d *Decorator) Options() Options {
	return d.opts.clone()
}

// Wrap decorates a function-style handler using the process-wide settings.
func (d *Decorator) Wrap(h HandlerFunc) *Endpoint {
	return d.build(h, buildEnv{})
}

// buildEnv is what the host contributes when an endpoint is built: the view
// set and action it belongs to, and router-level configuration.
type buildEnv struct {
	viewSet      ViewSet
	action       *Action
	settings     *Settings
	codecs       *codecRegistry
	notFound     http.Handler
	errorHandler ErrorHandler
}

// resolvedSettings returns the host settings, or the process-wide ones.
func (env buildEnv) resolvedSettings() Settings {
	if env.settings != nil {
		return *env.settings
	}
	return Default()
}

// Endpoint is a decorated handler. It serves function-style calls through
// ServeHTTP and method-style calls through Serve.
type Endpoint struct {
	opts     Options
	settings Settings
	handler  HandlerFunc
	chain    endpoint
	doc      OperationDoc

	codecs       *codecRegistry
	notFound     http.Handler
	errorHandler ErrorHandler
}

func (d *Decorator) build(h HandlerFunc, env buildEnv) *Endpoint {
	if h == nil {
		panic("apischema: nil handler")
	}

	opts := d.opts.clone()

	settings := env.resolvedSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	e := &Endpoint{
		opts:         opts,
		settings:     settings,
		handler:      h,
		codecs:       env.codecs,
		notFound:     env.notFound,
		errorHandler: env.errorHandler,
	}
	if e.codecs == nil {
		e.codecs = defaultCodecs
	}
	if e.notFound == nil {
		e.notFound = http.NotFoundHandler()
	}
	if e.errorHandler == nil {
		e.errorHandler = defaultErrorHandler
	}

	// Outermost first; error translation wraps the whole chain in Invoke.
	var layers []layer
	if len(opts.Permissions) > 0 {
		layers = append(layers, permissionLayer(opts.Permissions))
	}
	if resolve(opts.SQLLogging, settings.SQLLogging) && settings.Debug {
		layers = append(layers, sqlLoggingLayer(&settings, opts.SQLLoggingCallback))
	}
	if resolve(opts.Transaction, settings.Transaction) {
		layers = append(layers, transactionLayer(settings.transactor()))
	}
	if opts.hasSchema() {
		layers = append(layers, validationLayer(&opts))
	}

	e.chain = fold(layers, normalizeLayer(h))
	e.doc = buildDoc(&opts, &settings, env.viewSet, env.action)
	return e
}

// fold composes layers right to left so layers[0] runs first.
func fold(layers []layer, inner endpoint) endpoint {
	chain := inner
	for i := len(layers) - 1; i >= 0; i-- {
		chain = layers[i](chain)
	}
	return chain
}

// Doc returns the documentation metadata derived at decoration time.
func (e *Endpoint) Doc() OperationDoc { return e.doc }

// Options returns a copy of the endpoint's configuration.
func (e *Endpoint) Options() Options { return e.opts.clone() }

// ServeHTTP serves a function-style call.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Serve(w, r, nil)
}

// Serve serves a call on behalf of view. A nil view is a function-style call.
func (e *Endpoint) Serve(w http.ResponseWriter, r *http.Request, view *View) {
	resp, err := e.Invoke(r, view)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.notFound.ServeHTTP(w, r)
			return
		}
		e.errorHandler(w, r, err)
		return
	}
	writeResponse(w, r, resp, e.codecs)
}

// Invoke runs the decorated chain and translates its errors into responses.
// A non-nil error is one the endpoint propagates instead of translating:
// ErrNotFound, or an unexpected error when the client does not accept JSON.
// Panics are translated the same way, and re-raised when not translated.
func (e *Endpoint) Invoke(r *http.Request, view *View) (resp *Response, err error) {
	ev := newEvent(r, view, e.codecs)

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				panic(rec)
			}
			e.logUnexpected(r, fmt.Errorf("panic: %v", rec))
			if !IsAcceptJSON(r) {
				panic(rec)
			}
			resp, err = detail(http.StatusInternalServerError, MessageServerError), nil
		}
	}()

	resp, err = e.chain(r.Context(), ev)
	if err != nil {
		return e.translate(r, err)
	}
	return resp, nil
}

// translate maps the error taxonomy onto responses.
func (e *Endpoint) translate(r *http.Request, err error) (*Response, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return detail(http.StatusUnprocessableEntity, ve.Detail), nil
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return &Response{Status: validStatus(he.Status, http.StatusBadRequest), Body: he.Content, kind: KindPassthrough}, nil
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return detail(validStatus(sc.StatusCode(), http.StatusInternalServerError), err.Error()), nil
	}

	e.logUnexpected(r, err)
	if IsAcceptJSON(r) {
		return detail(http.StatusInternalServerError, MessageServerError), nil
	}
	return nil, err
}

// validStatus returns status, or def when status cannot be written.
func validStatus(status, def int) int {
	if status < 100 || status > 999 {
		return def
	}
	return status
}

func (e *Endpoint) logUnexpected(r *http.Request, err error) {
	attrs := []slog.Attr{
		slog.String("err", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	}
	if id := RequestIDFrom(r.Context()); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	e.settings.logger().LogAttrs(r.Context(), slog.LevelError, "unhandled error", attrs...)
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// normalizeLayer calls the handler and coerces its result into an envelope.
func normalizeLayer(h HandlerFunc) endpoint {
	return func(ctx context.Context, ev *Event) (*Response, error) {
		v, err := h(ctx, ev)
		if err != nil {
			return nil, err
		}
		return normalize(v), nil
	}
}

// validationLayer validates the query or body before calling inward. The
// query schema takes precedence when both are configured.
func validationLayer(o *Options) layer {
	schema, in := o.Query, InQuery
	if schema == nil {
		schema, in = o.Body, InBody
	}

	return func(next endpoint) endpoint {
		return func(ctx context.Context, ev *Event) (*Response, error) {
			s := schema.Serializer()

			obj, err := ev.Object(ctx)
			if err != nil {
				return nil, err
			}
			s.SetInstance(obj)

			data, err := ev.data(in)
			if err != nil {
				return nil, err
			}
			s.SetInitialData(data)

			if err := s.IsValid(); err != nil {
				return nil, err
			}

			ev.attach(s)
			return next(ctx, ev)
		}
	}
}

func (e *Event) data(in In) (Data, error) {
	if in == InQuery {
		return Data{In: InQuery, Values: e.QueryData(), codecs: e.codecs}, nil
	}
	body, err := e.BodyData()
	if err != nil {
		return Data{}, err
	}
	return Data{
		In:          InBody,
		Body:        body,
		ContentType: e.Request.Header.Get("Content-Type"),
		codecs:      e.codecs,
	}, nil
}

// transactionLayer runs the inner call inside tx.Atomic. Any error raised
// inward rolls the transaction back.
func transactionLayer(tx Transactor) layer {
	return func(next endpoint) endpoint {
		return func(ctx context.Context, ev *Event) (*Response, error) {
			var resp *Response
			err := tx.Atomic(ctx, func(ctx context.Context) error {
				ev.Request = ev.Request.WithContext(ctx)
				var err error
				resp, err = next(ctx, ev)
				return err
			})
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}
}

// permissionLayer lets the call through when any predicate grants access.
func permissionLayer(perms []Permission) layer {
	return func(next endpoint) endpoint {
		return func(ctx context.Context, ev *Event) (*Response, error) {
			if !anyPermission(perms, ev.Request, ev.View) {
				return nil, errForbidden()
			}
			return next(ctx, ev)
		}
	}
}
