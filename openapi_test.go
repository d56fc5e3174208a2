package apischema_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/apischema"
)

func newSpecRouter(t *testing.T) *apischema.Router {
	t.Helper()

	r := apischema.NewRouter(
		apischema.WithRouterSettings(quietSettings()),
		apischema.WithTitle("Items API"),
		apischema.WithVersion("1.2.0"),
		apischema.WithAPIDescription("Manages items."),
		apischema.WithServers("https://api.example.com"),
		apischema.WithTagDescriptions(map[string]string{"items": "Item operations"}),
	)
	r.Register("/items/", apischema.DecorateView(newItemViews(), apischema.ViewDecorators{
		apischema.ActionList:   apischema.New(apischema.WithPermissions(apischema.IsAdminUser{})),
		apischema.ActionCreate: apischema.New(apischema.WithBody(apischema.Of[item]())),
		"square":               apischema.New(apischema.WithQuery(apischema.Of[squareQuery]())),
	}))
	apischema.Get(r, "/health/{$}", func(context.Context, *apischema.Event) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}, apischema.WithDoc("Health check"))
	return r
}

func TestRouter_Spec(t *testing.T) {
	t.Parallel()

	doc := newSpecRouter(t).Spec()
	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, apischema.OpenAPIVersion, doc.OpenAPI)
	assert.Equal(t, "Items API", doc.Info.Title)
	assert.Equal(t, "1.2.0", doc.Info.Version)
	assert.Equal(t, "Manages items.", doc.Info.Description)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "https://api.example.com", doc.Servers[0].URL)

	require.Len(t, doc.Tags, 1)
	assert.Equal(t, "items", doc.Tags[0].Name)
	assert.Equal(t, "Item operations", doc.Tags[0].Description)

	assert.ElementsMatch(t,
		[]string{"/items/", "/items/{pk}/", "/items/{pk}/echo/", "/items/square/", "/health/"},
		doc.Paths.InMatchingOrder(),
	)
	assert.Contains(t, doc.Components.Schemas, "item")
}

func TestRouter_Spec_operations(t *testing.T) {
	t.Parallel()

	doc := newSpecRouter(t).Spec()

	collection := doc.Paths.Value("/items/")
	require.NotNil(t, collection)

	list := collection.Get
	require.NotNil(t, list)
	assert.Equal(t, "items_list", list.OperationID)
	assert.Equal(t, "List items", list.Summary)
	assert.Equal(t, []string{"items"}, list.Tags)
	assert.Equal(t, "**Permissions:** `IsAdminUser`", list.Description)
	require.NotNil(t, list.Responses.Status(http.StatusOK))
	require.NotNil(t, list.Responses.Status(http.StatusForbidden))
	okSchema := list.Responses.Status(http.StatusOK).Value.Content.Get("application/json").Schema
	assert.True(t, okSchema.Value.Type.Is(openapi3.TypeArray))
	assert.Equal(t, "#/components/schemas/item", okSchema.Value.Items.Ref)

	create := collection.Post
	require.NotNil(t, create)
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Value.Required)
	body := create.RequestBody.Value.Content.Get("application/json")
	require.NotNil(t, body)
	assert.Equal(t, "#/components/schemas/item", body.Schema.Ref)
	require.NotNil(t, create.Responses.Status(http.StatusCreated))
	require.NotNil(t, create.Responses.Status(http.StatusUnprocessableEntity))

	options := collection.Options
	require.NotNil(t, options)
	assert.Equal(t, "items_options", options.OperationID)
	require.NotNil(t, options.Responses.Status(http.StatusOK))

	detail := doc.Paths.Value("/items/{pk}/")
	require.NotNil(t, detail)
	require.NotNil(t, detail.Get)
	require.NotNil(t, detail.Delete)
	require.Len(t, detail.Get.Parameters, 1)
	pk := detail.Get.Parameters[0].Value
	assert.Equal(t, "pk", pk.Name)
	assert.Equal(t, openapi3.ParameterInPath, pk.In)
	assert.True(t, pk.Required)

	noContent := detail.Delete.Responses.Status(http.StatusNoContent)
	require.NotNil(t, noContent)
	assert.Nil(t, noContent.Value.Content)

	square := doc.Paths.Value("/items/square/").Get
	require.NotNil(t, square)
	n := square.Parameters.GetByInAndName(openapi3.ParameterInQuery, "n")
	require.NotNil(t, n)
	assert.False(t, n.Required)
	assert.InDelta(t, 2.0, n.Schema.Value.Default, 0)

	health := doc.Paths.Value("/health/").Get
	require.NotNil(t, health)
	assert.Equal(t, "get_health", health.OperationID)
	assert.Equal(t, "Health check", health.Summary)
}

func TestRouter_Spec_groupTags(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	v1 := r.Group("/v1", apischema.WithGroupTags("v1"))
	v1.Register("/things", newItemViews(), apischema.WithBasename("thing"), apischema.WithViewTags("things"))

	doc := r.Spec()
	require.NoError(t, doc.Validate(context.Background()))

	op := doc.Paths.Value("/v1/things/{pk}/echo/").Get
	require.NotNil(t, op)
	assert.Equal(t, "thing_echo", op.OperationID)
	assert.Equal(t, []string{"v1", "things"}, op.Tags)

	var names []string
	for _, tag := range doc.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"v1", "things"}, names)
}

func TestRouter_Spec_embeddedFields(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	apischema.Post(r, "/tagged/{$}", func(context.Context, *apischema.Event) (any, error) {
		return nil, nil
	}, apischema.WithBody(apischema.Of[taggedItem]()), apischema.WithQuery(apischema.Of[pagedQuery]()))

	doc := r.Spec()
	require.NoError(t, doc.Validate(context.Background()))

	ref := doc.Components.Schemas["taggedItem"]
	require.NotNil(t, ref)
	var props []string
	for name := range ref.Value.Properties {
		props = append(props, name)
	}
	assert.ElementsMatch(t, []string{"created_by", "color", "name"}, props)
	assert.ElementsMatch(t, []string{"created_by", "name"}, ref.Value.Required)
	assert.NotContains(t, doc.Components.Schemas, "Palette")

	op := doc.Paths.Value("/tagged/").Post
	require.NotNil(t, op)
	var params []string
	for _, p := range op.Parameters {
		params = append(params, p.Value.Name)
	}
	assert.ElementsMatch(t, []string{"page", "q"}, params)
}

func TestRouter_Spec_security(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter(
		apischema.WithRouterSettings(quietSettings()),
		apischema.WithSecurityScheme("token", &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "Authorization",
		}),
	)
	apischema.Get(r, "/me/{$}", func(context.Context, *apischema.Event) (any, error) { return nil, nil })

	doc := r.Spec()
	require.NoError(t, doc.Validate(context.Background()))
	require.Contains(t, doc.Components.SecuritySchemes, "token")
	assert.Equal(t, "Authorization", doc.Components.SecuritySchemes["token"].Value.Name)
	require.Len(t, doc.Security, 1)
	assert.Contains(t, doc.Security[0], "token")
}

func TestRouter_ServeSpec(t *testing.T) {
	t.Parallel()

	r := newSpecRouter(t)
	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var fromJSON openapi3.T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fromJSON))
	assert.Equal(t, "Items API", fromJSON.Info.Title)
	assert.NotNil(t, fromJSON.Paths.Value("/items/{pk}/"))

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &fromYAML))
	assert.Equal(t, apischema.OpenAPIVersion, fromYAML["openapi"])
	assert.Contains(t, fromYAML["paths"], "/health/")
}

func TestRouter_WriteSpec(t *testing.T) {
	t.Parallel()

	r := newSpecRouter(t)

	var buf bytes.Buffer
	require.NoError(t, r.WriteSpec(&buf))

	loaded, err := openapi3.NewLoader().LoadFromData(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, loaded.Validate(context.Background()))

	buf.Reset()
	require.NoError(t, r.WriteSpecYAML(&buf))
	loaded, err = openapi3.NewLoader().LoadFromData(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Items API", loaded.Info.Title)
}

func TestRouter_MountDocs(t *testing.T) {
	t.Parallel()

	r := newSpecRouter(t)
	r.MountDocs("", apischema.WithDocsTitle("Item Docs"))

	tests := map[string]struct {
		path     string
		wantType string
		contains string
	}{
		"json":       {path: "/api-docs/openapi/", wantType: "application/json", contains: `"openapi":"3.0.3"`},
		"yaml":       {path: "/api-docs/openapi.yaml", wantType: "application/yaml", contains: "openapi: 3.0.3"},
		"swagger-ui": {path: "/api-docs/swagger-ui/", wantType: "text/html; charset=utf-8", contains: "SwaggerUIBundle"},
		"redoc":      {path: "/api-docs/redoc/", wantType: "text/html; charset=utf-8", contains: "<redoc"},
		"scalar":     {path: "/api-docs/scalar/", wantType: "text/html; charset=utf-8", contains: "api-reference"},
		"elements":   {path: "/api-docs/elements/", wantType: "text/html; charset=utf-8", contains: "elements-api"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := serve(r, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.wantType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.contains)
			if tc.wantType == "text/html; charset=utf-8" {
				assert.Contains(t, rec.Body.String(), "<title>Item Docs</title>")
				assert.Contains(t, rec.Body.String(), "/api-docs/openapi/")
			}
		})
	}
}

func TestPatternNames(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    []string
	}{
		"none":     {pattern: "/items/{$}", want: nil},
		"one":      {pattern: "/items/{pk}/{$}", want: []string{"pk"}},
		"two":      {pattern: "/orgs/{org}/users/{id}", want: []string{"org", "id"}},
		"wildcard": {pattern: "/files/{path...}", want: []string{"path"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, apischema.PatternNames(tc.pattern))
		})
	}
}

func TestToOpenAPIPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    string
	}{
		"anchored":    {pattern: "/items/{pk}/{$}", want: "/items/{pk}/"},
		"with method": {pattern: "GET /items/{$}", want: "/items/"},
		"wildcard":    {pattern: "/files/{path...}", want: "/files/{path}"},
		"plain":       {pattern: "/health", want: "/health"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, apischema.ToOpenAPIPath(tc.pattern))
		})
	}
}

func TestGenerateOperationID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		method  string
		pattern string
		want    string
	}{
		"collection": {method: http.MethodGet, pattern: "/items/{$}", want: "get_items"},
		"detail":     {method: http.MethodGet, pattern: "/items/{id}/{$}", want: "get_items_by_id"},
		"dashes":     {method: http.MethodPost, pattern: "/user-groups/{$}", want: "post_user_groups"},
		"root":       {method: http.MethodGet, pattern: "/", want: "get"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, apischema.GenerateOperationID(tc.method, tc.pattern))
		})
	}
}
