package apischema

import (
	"context"
	"fmt"
	"maps"
	"net/http"
)

// ViewSet groups related actions over one resource. Actions declares the
// action surface explicitly; nothing is discovered by reflection.
//
// A view set may also implement:
//
//	GetObject(ctx context.Context, pk string) (any, error) // detail lookup
//	Permissions() []Permission                            // view-level permissions, all must pass
//	DefaultSchema() Schema                                // documented request body of standard writes
//	LookupField() string                                  // path parameter name, default "pk"
type ViewSet interface {
	Actions() []Action
}

// ObjectGetter looks up the object of a detail call. Returning ErrNotFound
// answers the call with 404.
type ObjectGetter interface {
	GetObject(ctx context.Context, pk string) (any, error)
}

// Standard action names.
const (
	ActionList          = "list"
	ActionCreate        = "create"
	ActionRetrieve      = "retrieve"
	ActionUpdate        = "update"
	ActionPartialUpdate = "partial_update"
	ActionDestroy       = "destroy"

	// ActionOptions is the reserved introspection action the view composer
	// never decorates by default.
	ActionOptions = "options"
)

// Action is one declared entry of a view set.
type Action struct {
	Name   string
	Method string
	Detail bool

	// Extra marks actions declared with ExtraAction. They are documented as
	// action-style endpoints.
	Extra bool

	// URLPath is the path segment of an extra action. Defaults to Name.
	URLPath string

	// Doc is the handler docstring.
	Doc string

	Handler HandlerFunc
}

// WithDoc returns a copy of the action with its docstring set.
func (a Action) WithDoc(doc string) Action {
	a.Doc = doc
	return a
}

// ListAction declares GET prefix/.
func ListAction(h HandlerFunc) Action {
	return Action{Name: ActionList, Method: http.MethodGet, Handler: h}
}

// CreateAction declares POST prefix/.
func CreateAction(h HandlerFunc) Action {
	return Action{Name: ActionCreate, Method: http.MethodPost, Handler: h}
}

// RetrieveAction declares GET prefix/{pk}/.
func RetrieveAction(h HandlerFunc) Action {
	return Action{Name: ActionRetrieve, Method: http.MethodGet, Detail: true, Handler: h}
}

// UpdateAction declares PUT prefix/{pk}/.
func UpdateAction(h HandlerFunc) Action {
	return Action{Name: ActionUpdate, Method: http.MethodPut, Detail: true, Handler: h}
}

// PartialUpdateAction declares PATCH prefix/{pk}/.
func PartialUpdateAction(h HandlerFunc) Action {
	return Action{Name: ActionPartialUpdate, Method: http.MethodPatch, Detail: true, Handler: h}
}

// DestroyAction declares DELETE prefix/{pk}/.
func DestroyAction(h HandlerFunc) Action {
	return Action{Name: ActionDestroy, Method: http.MethodDelete, Detail: true, Handler: h}
}

// ExtraAction declares a custom action at prefix/[{pk}/]name/.
func ExtraAction(name, method string, detail bool, h HandlerFunc) Action {
	return Action{Name: name, Method: method, Detail: detail, Extra: true, URLPath: name, Handler: h}
}

// View is the view-set context of one method-style call.
type View struct {
	Set      ViewSet
	Basename string
	Action   string
	Detail   bool
}

// GetObject fetches the object of a detail call through the view set.
func (v *View) GetObject(ctx context.Context, r *http.Request) (any, error) {
	g, ok := v.Set.(ObjectGetter)
	if !ok {
		return nil, fmt.Errorf("view set %T has no object lookup", v.Set)
	}
	return g.GetObject(ctx, r.PathValue(v.lookupField()))
}

func (v *View) lookupField() string {
	return lookupField(v.Set)
}

func lookupField(vs ViewSet) string {
	if lf, ok := vs.(interface{ LookupField() string }); ok {
		if f := lf.LookupField(); f != "" {
			return f
		}
	}
	return "pk"
}

func viewPermissions(vs ViewSet) []Permission {
	if p, ok := vs.(interface{ Permissions() []Permission }); ok {
		return p.Permissions()
	}
	return nil
}

// ViewDecorators maps action names to the decorator applied to them.
type ViewDecorators map[string]*Decorator

// DecoratedView is a view set whose actions have decorators assigned.
type DecoratedView struct {
	set        ViewSet
	custom     ViewDecorators
	decorators map[string]*Decorator
}

// DecorateView assigns custom[name] to each declared action of that name and
// the default decorator to every other action except ActionOptions. Names
// that are not declared are ignored. Decorating a DecoratedView again starts
// from its original view set, so repeated application yields the same result.
func DecorateView(vs ViewSet, custom ViewDecorators) *DecoratedView {
	merged := make(ViewDecorators)
	if dv, ok := vs.(*DecoratedView); ok {
		vs = dv.set
		maps.Copy(merged, dv.custom)
	}
	maps.Copy(merged, custom)

	d := &DecoratedView{
		set:        vs,
		custom:     merged,
		decorators: make(map[string]*Decorator),
	}

	for _, a := range vs.Actions() {
		if dec, ok := merged[a.Name]; ok && dec != nil {
			d.decorators[a.Name] = dec
			continue
		}
		if a.Name == ActionOptions {
			continue
		}
		d.decorators[a.Name] = New()
	}
	return d
}

// Actions returns the declared actions of the underlying view set.
func (d *DecoratedView) Actions() []Action { return d.set.Actions() }

// ViewSet returns the underlying view set.
func (d *DecoratedView) ViewSet() ViewSet { return d.set }

// Decorator returns the decorator assigned to the named action. The result
// is false for undeclared names and an undecorated options action.
func (d *DecoratedView) Decorator(name string) (*Decorator, bool) {
	dec, ok := d.decorators[name]
	return dec, ok
}

// Endpoints builds the decorated endpoint of every decorated action using
// the process-wide settings.
func (d *DecoratedView) Endpoints() map[string]*Endpoint {
	return d.endpoints(buildEnv{})
}

func (d *DecoratedView) endpoints(env buildEnv) map[string]*Endpoint {
	out := make(map[string]*Endpoint)
	for _, a := range d.set.Actions() {
		dec, ok := d.decorators[a.Name]
		if !ok {
			continue
		}
		action := a
		env.viewSet = d.set
		env.action = &action
		out[a.Name] = dec.build(a.Handler, env)
	}
	return out
}
