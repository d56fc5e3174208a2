// Package apischema decorates HTTP endpoint handlers with the cross-cutting
// behavior every API endpoint repeats: request validation, permission checks,
// transactional execution, SQL query logging, structured error responses, and
// OpenAPI documentation metadata.
//
// A handler receives the per-request Event and returns a plain value, a
// *Response, an http.Handler, or nothing:
//
//	type HandlerFunc func(ctx context.Context, ev *Event) (any, error)
//
// A Decorator captures the per-endpoint configuration once and wraps a
// handler into an Endpoint:
//
//	ep := apischema.New(
//	    apischema.WithPermissions(apischema.IsAdminUser{}),
//	    apischema.WithQuery(apischema.Of[SquareQuery]()),
//	    apischema.WithResponse(apischema.Of[SquareOut]()),
//	).Wrap(square)
//
// The layers run in a fixed order, outermost first: error translation,
// permission, SQL logging, transaction, validation, response normalization.
//
// View sets declare their actions explicitly and are decorated as a whole:
//
//	users := apischema.DecorateView(&UserViewSet{}, apischema.ViewDecorators{
//	    "list":   apischema.New(apischema.WithPermissions(apischema.IsAdminUser{})),
//	    "square": apischema.New(apischema.WithQuery(apischema.Of[SquareQuery]())),
//	})
//	r := apischema.NewRouter(apischema.WithTitle("Users"))
//	r.Register("/users", users)
//	r.MountDocs("/api-docs/")
package apischema
