package apischema_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apischema"
	"github.com/bjaus/apischema/apitest"
)

// roleAuth sets an admin or member principal from the X-Role header.
func roleAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Role") {
		case "admin":
			r = apischema.WithPrincipal(r, testUser{admin: true})
		case "member":
			r = apischema.WithPrincipal(r, testUser{})
		}
		next.ServeHTTP(w, r)
	})
}

func newItemRouter(t *testing.T, vs apischema.ViewSet, opts ...apischema.RouterOption) *apischema.Router {
	t.Helper()

	opts = append([]apischema.RouterOption{apischema.WithRouterSettings(quietSettings())}, opts...)
	r := apischema.NewRouter(opts...)
	r.Use(roleAuth)
	r.Register("/items/", apischema.DecorateView(vs, apischema.ViewDecorators{
		apischema.ActionList: apischema.New(
			apischema.WithPermissions(apischema.IsAdminUser{}),
			apischema.WithResponse(apischema.Of[[]item]()),
		),
		apischema.ActionCreate: apischema.New(apischema.WithBody(apischema.Of[item]())),
		"echo":                 apischema.New(apischema.WithResponse(apischema.Of[item]())),
		"square":               apischema.New(apischema.WithQuery(apischema.Of[squareQuery]())),
	}))
	return r
}

func TestRouter_Register_list(t *testing.T) {
	t.Parallel()

	r := newItemRouter(t, newItemViews())

	member := apitest.NewClient(t, r, apitest.WithHeader("X-Role", "member"))
	resp := apitest.Get[apitest.Detail](t, member, "/items/")
	assert.Equal(t, http.StatusForbidden, resp.Status)
	require.NotNil(t, resp.Body)
	assert.Equal(t, apischema.MessageForbidden, resp.Body.Detail)

	admin := apitest.NewClient(t, r, apitest.WithHeader("X-Role", "admin"))
	list := apitest.Get[[]item](t, admin, "/items/")
	assert.Equal(t, http.StatusOK, list.Status)
	require.NotNil(t, list.Body)
	assert.Equal(t, []item{{ID: 1, Name: "one"}, {ID: 7, Name: "seven"}}, *list.Body)
}

func TestRouter_Register_actions(t *testing.T) {
	t.Parallel()

	c := apitest.NewClient(t, newItemRouter(t, newItemViews()))

	t.Run("square with n", func(t *testing.T) {
		resp := apitest.Get[int](t, c, "/items/square/?n=5")
		assert.Equal(t, http.StatusOK, resp.Status)
		require.NotNil(t, resp.Body)
		assert.Equal(t, 25, *resp.Body)
	})

	t.Run("square default", func(t *testing.T) {
		resp := apitest.Get[int](t, c, "/items/square/")
		assert.Equal(t, http.StatusOK, resp.Status)
		require.NotNil(t, resp.Body)
		assert.Equal(t, 4, *resp.Body)
	})

	t.Run("echo returns the object", func(t *testing.T) {
		resp := apitest.Get[item](t, c, "/items/7/echo/")
		assert.Equal(t, http.StatusOK, resp.Status)
		require.NotNil(t, resp.Body)
		assert.Equal(t, item{ID: 7, Name: "seven"}, *resp.Body)
	})

	t.Run("retrieve", func(t *testing.T) {
		resp := apitest.Get[item](t, c, "/items/1/")
		assert.Equal(t, http.StatusOK, resp.Status)
		require.NotNil(t, resp.Body)
		assert.Equal(t, "one", resp.Body.Name)
	})

	t.Run("missing object is 404", func(t *testing.T) {
		resp := apitest.Get[apitest.Detail](t, c, "/items/99/")
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	t.Run("create", func(t *testing.T) {
		resp := apitest.Post[item, item](t, c, "/items/", &item{ID: 3, Name: "three"})
		assert.Equal(t, http.StatusCreated, resp.Status)
		require.NotNil(t, resp.Body)
		assert.Equal(t, item{ID: 3, Name: "three"}, *resp.Body)
	})

	t.Run("create invalid", func(t *testing.T) {
		resp := apitest.Post[item, apitest.Detail](t, c, "/items/", &item{ID: 3})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
		assert.JSONEq(t, `{"detail":{"name":["This field is required."]}}`, string(resp.Raw))
	})

	t.Run("destroy", func(t *testing.T) {
		resp := apitest.Delete[apitest.Detail](t, c, "/items/1/")
		assert.Equal(t, http.StatusNoContent, resp.Status)
		assert.Empty(t, resp.Raw)
	})
}

func TestRouter_Register_undecoratedOptions(t *testing.T) {
	t.Parallel()

	r := newItemRouter(t, newItemViews())

	req := httptest.NewRequest(http.MethodOptions, "/items/", nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(r, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Items"}`, rec.Body.String())
}

func TestRouter_Register_viewPermissions(t *testing.T) {
	t.Parallel()

	never := apischema.PermissionFunc("Never", func(*http.Request, *apischema.View) bool { return false })

	tests := map[string]struct {
		perms      []apischema.Permission
		role       string
		wantStatus int
	}{
		"all pass": {
			perms:      []apischema.Permission{apischema.IsAuthenticated{}},
			role:       "member",
			wantStatus: http.StatusOK,
		},
		"one fails": {
			perms:      []apischema.Permission{apischema.IsAuthenticated{}, never},
			role:       "member",
			wantStatus: http.StatusForbidden,
		},
		"anonymous": {
			perms:      []apischema.Permission{apischema.IsAuthenticated{}},
			wantStatus: http.StatusForbidden,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := newItemRouter(t, newItemViews(tc.perms...))
			req := jsonRequest(http.MethodGet, "/items/1/", "")
			if tc.role != "" {
				req.Header.Set("X-Role", tc.role)
			}
			rec := serve(r, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestRouter_Register_viewSeesAction(t *testing.T) {
	t.Parallel()

	var got apischema.View
	spy := apischema.PermissionFunc("Spy", func(_ *http.Request, v *apischema.View) bool {
		got = *v
		return true
	})

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	r.Register("/things", newItemViews(spy), apischema.WithBasename("thing"))

	rec := serve(r, jsonRequest(http.MethodGet, "/things/7/echo/", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thing", got.Basename)
	assert.Equal(t, "echo", got.Action)
	assert.True(t, got.Detail)
}

func TestRouter_WithNotFound(t *testing.T) {
	t.Parallel()

	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not found."}`))
	})

	r := newItemRouter(t, newItemViews(), apischema.WithNotFound(notFound))
	rec := serve(r, jsonRequest(http.MethodGet, "/items/99/echo/", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())
}

func TestRouter_WithErrorHandler(t *testing.T) {
	t.Parallel()

	var got error
	r := apischema.NewRouter(
		apischema.WithRouterSettings(quietSettings()),
		apischema.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			http.Error(w, "custom", http.StatusBadGateway)
		}),
	)
	apischema.Get(r, "/fail/{$}", func(context.Context, *apischema.Event) (any, error) {
		return nil, errors.New("upstream down")
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/fail/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.Error(t, got)
	assert.Equal(t, "upstream down", got.Error())

	rec = serve(r, jsonRequest(http.MethodGet, "/fail/", ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Server error."}`, rec.Body.String())
}

func TestRouter_functionStyle(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	api := r.Group("/v1", apischema.WithGroupTags("v1"))

	apischema.Get(api, "/hello/{name}/{$}", func(_ context.Context, ev *apischema.Event) (any, error) {
		return map[string]string{"greeting": "hello " + ev.PathValue("name")}, nil
	})
	apischema.Post(api, "/echo/{$}", func(_ context.Context, ev *apischema.Event) (any, error) {
		in, _ := apischema.Validated[createWidget](ev)
		return in, nil
	}, apischema.WithBody(apischema.Of[createWidget]()))
	apischema.Put(api, "/noop/{$}", func(context.Context, *apischema.Event) (any, error) { return nil, nil })
	apischema.Patch(api, "/noop/{$}", func(context.Context, *apischema.Event) (any, error) { return nil, nil })
	apischema.Delete(api, "/noop/{$}", func(context.Context, *apischema.Event) (any, error) { return nil, nil })

	rec := serve(r, jsonRequest(http.MethodGet, "/v1/hello/ann/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"greeting":"hello ann"}`, rec.Body.String())

	rec = serve(r, jsonRequest(http.MethodPost, "/v1/echo/", `{"name":"bolt"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"bolt"}`, rec.Body.String())

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rec = serve(r, jsonRequest(method, "/v1/noop/", ""))
		assert.Equal(t, http.StatusNoContent, rec.Code, method)
	}
}

func TestRouter_defaultPermissions(t *testing.T) {
	t.Parallel()

	defaults := quietSettings()
	defaults.DefaultPermissions = []apischema.Permission{apischema.IsAuthenticated{}}

	tests := map[string]struct {
		views      *itemViews
		role       string
		wantStatus int
	}{
		"anonymous held to defaults": {
			views:      newItemViews(),
			wantStatus: http.StatusForbidden,
		},
		"member passes defaults": {
			views:      newItemViews(),
			role:       "member",
			wantStatus: http.StatusOK,
		},
		"view permissions replace defaults": {
			views:      newItemViews(apischema.AllowAny{}),
			wantStatus: http.StatusOK,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := newItemRouter(t, tc.views, apischema.WithRouterSettings(defaults))
			req := jsonRequest(http.MethodGet, "/items/1/", "")
			if tc.role != "" {
				req.Header.Set("X-Role", tc.role)
			}
			rec := serve(r, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusForbidden {
				assert.JSONEq(t, `{"detail":"`+apischema.MessageForbidden+`"}`, rec.Body.String())
			}
		})
	}
}

func TestRouter_defaultPermissionsFunctionStyle(t *testing.T) {
	t.Parallel()

	defaults := quietSettings()
	defaults.DefaultPermissions = []apischema.Permission{apischema.IsAuthenticated{}}

	r := apischema.NewRouter(apischema.WithRouterSettings(defaults))
	r.Use(roleAuth)
	apischema.Get(r, "/ping/{$}", func(context.Context, *apischema.Event) (any, error) {
		return "pong", nil
	})
	r.Handle(http.MethodGet, "/open/{$}", apischema.New(apischema.WithSettings(quietSettings())).Wrap(
		func(context.Context, *apischema.Event) (any, error) { return "open", nil },
	))

	rec := serve(r, jsonRequest(http.MethodGet, "/ping/", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := jsonRequest(http.MethodGet, "/ping/", "")
	req.Header.Set("X-Role", "member")
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"pong"`, rec.Body.String())

	rec = serve(r, jsonRequest(http.MethodGet, "/open/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_groupMiddleware(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	g := r.Group("/admin", apischema.WithGroupMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Group", "admin")
			next.ServeHTTP(w, req)
		})
	}))
	g.Register("/items", newItemViews())
	apischema.Get(r, "/public/{$}", func(context.Context, *apischema.Event) (any, error) { return "ok", nil })

	rec := serve(r, jsonRequest(http.MethodGet, "/admin/items/1/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", rec.Header().Get("X-Group"))

	rec = serve(r, jsonRequest(http.MethodGet, "/public/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Group"))
}

func TestRouter_settingsInherited(t *testing.T) {
	t.Parallel()

	tx := &recordingTx{}
	s := quietSettings()
	s.Transactor = tx

	r := apischema.NewRouter(apischema.WithRouterSettings(s))
	apischema.Get(r, "/tx/{$}", func(ctx context.Context, _ *apischema.Event) (any, error) {
		return ctx.Value(txKey{}), nil
	})

	rec := serve(r, jsonRequest(http.MethodGet, "/tx/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"in-tx"`, rec.Body.String())
	assert.Equal(t, 1, tx.calls)
}

func TestRouter_Handle(t *testing.T) {
	t.Parallel()

	ep := apischema.New(apischema.WithSettings(quietSettings()), apischema.WithDoc("Ping")).
		Wrap(func(context.Context, *apischema.Event) (any, error) { return "pong", nil })

	r := apischema.NewRouter()
	r.Handle(http.MethodGet, "/ping", ep, "ops")

	rec := serve(r, jsonRequest(http.MethodGet, "/ping", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"pong"`, rec.Body.String())

	spec := r.Spec()
	op := spec.Paths.Value("/ping").Get
	require.NotNil(t, op)
	assert.Equal(t, "Ping", op.Summary)
	assert.Equal(t, []string{"ops"}, op.Tags)
}

func TestRouter_ListenAndServe_shutdown(t *testing.T) {
	t.Parallel()

	r := apischema.NewRouter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	err := <-done
	if err != nil {
		assert.True(t, errors.Is(err, http.ErrServerClosed) || strings.Contains(err.Error(), "closed"), err.Error())
	}
}

func TestGroup_nested(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) apischema.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := apischema.NewRouter(apischema.WithRouterSettings(quietSettings()))
	api := r.Group("/api", apischema.WithGroupTags("api"), apischema.WithGroupMiddleware(mark("api")))
	v2 := api.Group("/v2", apischema.WithGroupTags("v2"), apischema.WithGroupMiddleware(mark("v2")))
	apischema.Get(v2, "/ping/{$}", func(context.Context, *apischema.Event) (any, error) { return "pong", nil })

	rec := serve(r, jsonRequest(http.MethodGet, "/api/v2/ping/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"api", "v2"}, order)

	op := r.Spec().Paths.Value("/api/v2/ping/").Get
	require.NotNil(t, op)
	assert.Equal(t, []string{"api", "v2"}, op.Tags)
	assert.Equal(t, "get_api_v2_ping", op.OperationID)
}

func TestGroup_settings(t *testing.T) {
	t.Parallel()

	routerTx, groupTx := &recordingTx{}, &recordingTx{}

	rs := quietSettings()
	rs.Transactor = routerTx
	gs := quietSettings()
	gs.Transactor = groupTx

	r := apischema.NewRouter(apischema.WithRouterSettings(rs))
	g := r.Group("/admin", apischema.WithGroupSettings(gs))

	h := func(context.Context, *apischema.Event) (any, error) { return "ok", nil }
	apischema.Get(r, "/public/{$}", h)
	apischema.Get(g, "/private/{$}", h)

	serve(r, jsonRequest(http.MethodGet, "/public/", ""))
	serve(r, jsonRequest(http.MethodGet, "/admin/private/", ""))
	serve(r, jsonRequest(http.MethodGet, "/admin/private/", ""))

	assert.Equal(t, 1, routerTx.calls)
	assert.Equal(t, 2, groupTx.calls)
}
