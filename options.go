package apischema

import "slices"

// Options is the per-endpoint configuration captured by a Decorator.
type Options struct {
	Permissions []Permission
	Query       Schema
	Body        Schema

	// Response documents the success response. Its status is 200 unless
	// it was set with WithStatusResponse.
	Response *ResponseSpec

	// Responses documents responses by status code. A nil Schema documents
	// an empty response.
	Responses map[int]Schema

	// Summary and Description override the docstring-derived texts.
	Summary     *string
	Description *string

	// Doc is the handler docstring: a one-line summary, optionally followed
	// by the description.
	Doc string

	Tags        []string
	OperationID string
	Deprecated  bool

	// Transaction and SQLLogging are tri-state: nil inherits the settings.
	Transaction *bool
	SQLLogging  *bool

	// SQLLoggingCallback is called once per captured query.
	SQLLoggingCallback func(Query)

	// Settings overrides the process-wide defaults for this endpoint.
	Settings *Settings
}

// ResponseSpec documents one response.
type ResponseSpec struct {
	Status      int
	Description string
	Schema      Schema
}

// Option configures a Decorator.
type Option func(*Options)

// WithPermissions sets the permission predicates; any one granting access
// lets the call through.
func WithPermissions(perms ...Permission) Option {
	return func(o *Options) {
		o.Permissions = append(o.Permissions, perms...)
	}
}

// WithQuery validates the query string with the schema.
func WithQuery(s Schema) Option {
	return func(o *Options) {
		o.Query = s
	}
}

// WithBody validates the request body with the schema.
func WithBody(s Schema) Option {
	return func(o *Options) {
		o.Body = s
	}
}

// WithResponse documents the 200 response schema.
func WithResponse(s Schema) Option {
	return func(o *Options) {
		o.Response = &ResponseSpec{Schema: s}
	}
}

// WithStatusResponse documents the success response under a specific status.
func WithStatusResponse(status int, s Schema) Option {
	return func(o *Options) {
		o.Response = &ResponseSpec{Status: status, Schema: s}
	}
}

// WithResponses documents responses by status code.
func WithResponses(responses map[int]Schema) Option {
	return func(o *Options) {
		if o.Responses == nil {
			o.Responses = make(map[int]Schema, len(responses))
		}
		for code, s := range responses {
			o.Responses[code] = s
		}
	}
}

// WithSummary overrides the docstring summary.
func WithSummary(s string) Option {
	return func(o *Options) {
		o.Summary = &s
	}
}

// WithDescription overrides the docstring description.
func WithDescription(d string) Option {
	return func(o *Options) {
		o.Description = &d
	}
}

// WithDoc sets the handler docstring.
func WithDoc(doc string) Option {
	return func(o *Options) {
		o.Doc = doc
	}
}

// WithTags adds OpenAPI tags.
func WithTags(tags ...string) Option {
	return func(o *Options) {
		o.Tags = append(o.Tags, tags...)
	}
}

// WithOperationID sets a custom OpenAPI operationId.
func WithOperationID(id string) Option {
	return func(o *Options) {
		o.OperationID = id
	}
}

// WithDeprecated marks the endpoint as deprecated.
func WithDeprecated() Option {
	return func(o *Options) {
		o.Deprecated = true
	}
}

// WithTransaction enables or disables the transaction layer.
func WithTransaction(enabled bool) Option {
	return func(o *Options) {
		o.Transaction = &enabled
	}
}

// WithSQLLogging enables or disables SQL logging.
func WithSQLLogging(enabled bool) Option {
	return func(o *Options) {
		o.SQLLogging = &enabled
	}
}

// WithSQLLoggingCallback registers a callback invoked once per captured query.
func WithSQLLoggingCallback(fn func(Query)) Option {
	return func(o *Options) {
		o.SQLLoggingCallback = fn
	}
}

// WithSettings overrides the process-wide settings for this endpoint.
func WithSettings(s Settings) Option {
	return func(o *Options) {
		o.Settings = &s
	}
}

// clone returns a deep copy so the endpoint closure owns its record.
func (o Options) clone() Options {
	o.Permissions = slices.Clone(o.Permissions)
	o.Tags = slices.Clone(o.Tags)
	if o.Responses != nil {
		m := make(map[int]Schema, len(o.Responses))
		for k, v := range o.Responses {
			m[k] = v
		}
		o.Responses = m
	}
	if o.Response != nil {
		r := *o.Response
		o.Response = &r
	}
	return o
}

func (o *Options) hasSchema() bool {
	return o.Query != nil || o.Body != nil
}
