package apischema

import (
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIVersion is the version of the generated documents.
const OpenAPIVersion = "3.0.3"

// Spec generates the OpenAPI document of every registered route.
func (r *Router) Spec() *openapi3.T {
	r.mu.Lock()
	routes := slices.Clone(r.routes)
	r.mu.Unlock()

	sr := newSchemaRegistry()
	title := r.title
	if title == "" {
		title = "API"
	}
	version := r.version
	if version == "" {
		version = "0.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       title,
			Version:     version,
			Description: r.description,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{},
	}
	for _, u := range r.servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: u})
	}

	seen := make(map[string]bool)
	var tags []string
	for i := range routes {
		ri := &routes[i]
		path := toOpenAPIPath(ri.pattern)

		op := buildOperation(ri, sr, r.codecs.contentTypes())
		for _, t := range op.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}

		item := doc.Paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(path, item)
		}
		item.SetOperation(ri.method, op)
	}

	for _, t := range tags {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: t, Description: r.tagDescs[t]})
	}
	if len(sr.defs) > 0 {
		doc.Components.Schemas = sr.defs
	}
	if len(r.security) > 0 {
		doc.Components.SecuritySchemes = r.security
		for _, name := range sortedKeys(r.security) {
			doc.Security.With(openapi3.NewSecurityRequirement().Authenticate(name))
		}
	}
	return doc
}

// buildOperation creates an operation from a route's documentation.
func buildOperation(ri *routeInfo, sr *schemaRegistry, contentTypes []string) *openapi3.Operation {
	d := ri.doc

	op := openapi3.NewOperation()
	op.Summary = d.Summary
	op.Description = d.Description
	op.Deprecated = d.Deprecated

	op.Tags = d.Tags
	if len(op.Tags) == 0 {
		op.Tags = ri.tags
	}

	op.OperationID = d.OperationID
	if op.OperationID == "" {
		op.OperationID = ri.operationID
	}
	if op.OperationID == "" {
		op.OperationID = generateOperationID(ri.method, ri.pattern)
	}

	for _, name := range patternNames(ri.pattern) {
		p := openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema())
		op.AddParameter(p)
	}
	if d.Query != nil {
		for _, p := range queryParameters(d.Query.Type(), sr) {
			op.AddParameter(p)
		}
	}

	if d.Body != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithContent(openapi3.NewContentWithSchemaRef(sr.typeToSchema(d.Body.Type()), contentTypes)),
		}
	}

	op.Responses = openapi3.NewResponsesWithCapacity(len(d.Responses))
	for _, rd := range d.Responses {
		resp := openapi3.NewResponse().WithDescription(rd.Description)
		if rd.Schema != nil && rd.Status != http.StatusNoContent {
			resp.WithContent(openapi3.NewContentWithSchemaRef(sr.typeToSchema(rd.Schema.Type()), contentTypes))
		}
		op.Responses.Set(strconv.Itoa(rd.Status), &openapi3.ResponseRef{Value: resp})
	}
	if op.Responses.Len() == 0 {
		op.Responses.Set(strconv.Itoa(http.StatusOK), &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription("OK"),
		})
	}

	return op
}

// queryParameters documents each field of a query schema as a parameter.
func queryParameters(t reflect.Type, sr *schemaRegistry) []*openapi3.Parameter {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var params []*openapi3.Parameter
	for _, f := range promotedFields(t) {
		name := queryFieldName(f)
		if name == "-" {
			continue
		}

		schema := sr.typeToSchema(f.Type)
		if schema.Ref == "" {
			applyFieldTags(schema.Value, f)
		}

		p := openapi3.NewQueryParameter(name).WithSchema(schema.Value)
		if schema.Ref != "" {
			p.Schema = schema
		}
		p.Description = f.Tag.Get("doc")
		if f.Tag.Get("required") == "true" {
			p.WithRequired(true)
		}
		params = append(params, p)
	}
	return params
}

// toOpenAPIPath converts a ServeMux pattern like "/users/{pk}/{$}" to an
// OpenAPI path. Strips the method prefix, the end anchor and wildcard suffixes.
func toOpenAPIPath(pattern string) string {
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		pattern = rest
	}
	pattern = strings.ReplaceAll(pattern, "{$}", "")
	return strings.ReplaceAll(pattern, "...}", "}")
}

// generateOperationID derives an ID like "get_items_by_id" from a route.
func generateOperationID(method, pattern string) string {
	parts := []string{strings.ToLower(method)}
	for seg := range strings.SplitSeq(toOpenAPIPath(pattern), "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			seg = "by_" + strings.Trim(seg, "{}")
		}
		parts = append(parts, strings.ReplaceAll(seg, "-", "_"))
	}
	return strings.Join(parts, "_")
}
