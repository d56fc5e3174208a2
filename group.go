package apischema

import "slices"

// Group registers routes under a shared prefix. Its middleware wraps only its
// own routes, its tags lead theirs, and its settings, when set, replace the
// router's for endpoints registered through it. Groups nest.
type Group struct {
	parent     Registrar
	prefix     string
	middleware []Middleware
	tags       []string
	settings   *Settings
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags adds default tags to all routes registered on the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(g *Group) {
		g.tags = append(g.tags, tags...)
	}
}

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// WithGroupSettings sets the settings inherited by the group's endpoints.
func WithGroupSettings(s Settings) GroupOption {
	return func(g *Group) {
		g.settings = &s
	}
}

// Group creates a route group under prefix.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(r, prefix, opts)
}

// Group creates a nested group; prefixes, tags and middleware accumulate.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	return newGroup(g, prefix, opts)
}

func newGroup(parent Registrar, prefix string, opts []GroupOption) *Group {
	g := &Group{parent: parent, prefix: prefix}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register routes a view set under the group's prefix.
func (g *Group) Register(prefix string, vs ViewSet, opts ...RegisterOption) {
	registerViewSet(g, prefix, vs, opts...)
}

func (g *Group) addRoute(ri routeInfo) {
	ri.pattern = g.prefix + ri.pattern
	ri.tags = slices.Concat(g.tags, ri.tags)
	g.parent.addRoute(ri)
}

func (g *Group) env() buildEnv {
	env := g.parent.env()
	if g.settings != nil {
		env.settings = g.settings
	}
	return env
}

// routeMiddleware lists outer groups' middleware first.
func (g *Group) routeMiddleware() []Middleware {
	return slices.Concat(g.parent.routeMiddleware(), g.middleware)
}
