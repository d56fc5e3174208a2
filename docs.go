package apischema

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
)

// OperationDoc is the documentation metadata of one endpoint, derived once
// when the endpoint is decorated.
type OperationDoc struct {
	Summary     string
	Description string
	Query       Schema
	Body        Schema

	// Responses is sorted by ascending status code.
	Responses []ResponseDoc

	Tags        []string
	OperationID string
	Deprecated  bool

	// Action reports an action-style endpoint (a view set extra action).
	Action bool
}

// ResponseDoc documents one response. A nil Schema is an empty body.
type ResponseDoc struct {
	Status      int
	Description string
	Schema      Schema
}

// ErrorDetail documents the {"detail": ...} error body.
type ErrorDetail struct {
	Detail any `json:"detail" doc:"Error message or field errors"`
}

func buildDoc(o *Options, s *Settings, vs ViewSet, action *Action) OperationDoc {
	doc := OperationDoc{
		Query:       o.Query,
		Body:        o.Body,
		Tags:        slices.Clone(o.Tags),
		OperationID: o.OperationID,
		Deprecated:  o.Deprecated,
		Action:      action != nil && action.Extra,
	}

	docstring := o.Doc
	if docstring == "" && action != nil {
		docstring = action.Doc
	}
	doc.Summary, doc.Description = splitDocstring(docstring)
	if o.Summary != nil {
		doc.Summary = *o.Summary
	}
	if o.Description != nil {
		doc.Description = *o.Description
	}

	if s.ShowPermissions {
		names := permissionNames(hostPermissions(vs, s), o.Permissions)
		if len(names) > 0 {
			prefix := "**Permissions:** `" + strings.Join(names, "` `") + "`"
			if doc.Description != "" {
				prefix += "\n\n" + doc.Description
			}
			doc.Description = prefix
		}
	}

	if doc.Body == nil && !doc.Action && action != nil && isWriteAction(action.Name) {
		doc.Body = defaultSchema(vs)
	}

	doc.Responses = buildResponses(o, s, vs, action, doc.Action)
	return doc
}

// splitDocstring returns the first line as the summary and the remaining
// lines, dedented, as the description.
func splitDocstring(docstring string) (string, string) {
	docstring = strings.Trim(docstring, "\n")
	if strings.TrimSpace(docstring) == "" {
		return "", ""
	}
	lines := strings.Split(docstring, "\n")
	summary := strings.TrimSpace(lines[0])
	return summary, strings.Trim(dedent(lines[1:]), "\n")
}

// dedent removes the common leading indentation of the non-blank lines.
func dedent(lines []string) string {
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			out[i] = l[indent:]
		} else {
			out[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(out, "\n")
}

// permissionNames lists the names of every permission in order, without
// duplicates and without AllowAny.
func permissionNames(groups ...[]Permission) []string {
	allowAny := PermissionName(AllowAny{})
	var names []string
	for _, g := range groups {
		for _, p := range g {
			name := PermissionName(p)
			if name == allowAny || slices.Contains(names, name) {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}

func buildResponses(o *Options, s *Settings, vs ViewSet, action *Action, isAction bool) []ResponseDoc {
	m := make(map[int]ResponseDoc)
	for code, schema := range o.Responses {
		m[code] = ResponseDoc{Status: code, Schema: schema}
	}

	if o.Response != nil {
		code := o.Response.Status
		if code == 0 {
			if sc, ok := o.Response.Schema.(StatusCoder); ok {
				code = sc.StatusCode()
			} else {
				code = http.StatusOK
			}
		}
		if _, ok := m[code]; !ok {
			m[code] = ResponseDoc{Status: code, Description: o.Response.Description, Schema: o.Response.Schema}
		}
	}

	if !anySuccess(m) {
		switch {
		case isAction && s.ActionDefaultsEmpty:
			m[http.StatusNoContent] = ResponseDoc{Status: http.StatusNoContent}
		case action != nil && !isAction:
			if r, ok := inferredResponse(vs, action.Name); ok {
				m[r.Status] = r
			}
		}
	}

	if len(o.Permissions) > 0 {
		if _, ok := m[http.StatusForbidden]; !ok {
			m[http.StatusForbidden] = ResponseDoc{Status: http.StatusForbidden, Schema: Of[ErrorDetail]()}
		}
	}
	if o.hasSchema() {
		if _, ok := m[http.StatusUnprocessableEntity]; !ok {
			m[http.StatusUnprocessableEntity] = ResponseDoc{Status: http.StatusUnprocessableEntity, Schema: Of[ErrorDetail]()}
		}
	}

	out := make([]ResponseDoc, 0, len(m))
	for _, r := range m {
		if r.Description == "" {
			r.Description = responseDescription(r.Status, r.Schema)
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b ResponseDoc) int { return cmp.Compare(a.Status, b.Status) })
	return out
}

// inferredResponse documents a standard action from the view set's default
// schema when the decorator declares no success response.
func inferredResponse(vs ViewSet, name string) (ResponseDoc, bool) {
	if name == ActionDestroy {
		return ResponseDoc{Status: http.StatusNoContent}, true
	}
	schema := defaultSchema(vs)
	if schema == nil {
		return ResponseDoc{}, false
	}
	switch name {
	case ActionList:
		return ResponseDoc{Status: http.StatusOK, Schema: listOf{schema}}, true
	case ActionCreate:
		return ResponseDoc{Status: http.StatusCreated, Schema: schema}, true
	default:
		return ResponseDoc{Status: http.StatusOK, Schema: schema}, true
	}
}

func anySuccess(m map[int]ResponseDoc) bool {
	for code := range m {
		if code >= 200 && code < 300 {
			return true
		}
	}
	return false
}

func responseDescription(status int, schema Schema) string {
	if schema == nil || status == http.StatusNoContent {
		return "No response body"
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Response"
}

func isWriteAction(name string) bool {
	return name == ActionCreate || name == ActionUpdate || name == ActionPartialUpdate
}

func defaultSchema(vs ViewSet) Schema {
	if ds, ok := vs.(interface{ DefaultSchema() Schema }); ok {
		return ds.DefaultSchema()
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
