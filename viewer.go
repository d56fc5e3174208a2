package apischema

import (
	"html/template"
	"net/http"
	"strings"
)

// DocsOption configures the docs UI.
type DocsOption func(*docsConfig)

type docsConfig struct {
	title   string
	specURL string
}

// WithDocsTitle sets the page title for the docs UI.
func WithDocsTitle(title string) DocsOption {
	return func(c *docsConfig) {
		c.title = title
	}
}

// Title returns the docs config title (used in the templates).
func (c *docsConfig) Title() string { return c.title }

// SpecURL returns the URL of the JSON document (used in the templates).
func (c *docsConfig) SpecURL() string { return c.specURL }

// Viewer templates keyed by the path segment they are mounted at.
var viewers = map[string]*template.Template{
	"swagger-ui": template.Must(template.New("swagger-ui").Parse(swaggerUIHTML)),
	"redoc":      template.Must(template.New("redoc").Parse(redocHTML)),
	"scalar":     template.Must(template.New("scalar").Parse(scalarHTML)),
	"elements":   template.Must(template.New("elements").Parse(elementsHTML)),
}

// MountDocs serves the OpenAPI document and the documentation viewers under
// prefix. An empty prefix uses Settings.DocsPrefix. With the defaults:
//
//	/api-docs/openapi/      JSON document
//	/api-docs/openapi.yaml  YAML document
//	/api-docs/swagger-ui/   Swagger UI
//	/api-docs/redoc/        ReDoc
//	/api-docs/scalar/       Scalar
//	/api-docs/elements/     Stoplight Elements
func (r *Router) MountDocs(prefix string, opts ...DocsOption) {
	s := r.docsSettings()
	if prefix == "" {
		prefix = s.DocsPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	name := s.OpenAPIURLName
	if name == "" {
		name = "openapi"
	}

	cfg := &docsConfig{
		title:   r.title,
		specURL: prefix + name + "/",
	}
	if cfg.title == "" {
		cfg.title = "API"
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r.ServeSpec(prefix + name + "/{$}")
	r.ServeSpecYAML(prefix + name + ".yaml")

	for seg, tmpl := range viewers {
		r.mux.HandleFunc("GET "+prefix+seg+"/{$}", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			//nolint:errcheck,gosec // best-effort template render
			tmpl.Execute(w, cfg)
		})
	}
}

func (r *Router) docsSettings() Settings {
	if r.settings != nil {
		return *r.settings
	}
	return Default()
}

const swaggerUIHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({url: "{{.SpecURL}}", dom_id: "#swagger-ui"});
  </script>
</body>
</html>`

const redocHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
</head>
<body>
  <redoc spec-url="{{.SpecURL}}"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>`

const scalarHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
</head>
<body>
  <script id="api-reference" data-url="{{.SpecURL}}"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`

const elementsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <elements-api
    apiDescriptionUrl="{{.SpecURL}}"
    router="hash"
    layout="sidebar"
  />
</body>
</html>`
