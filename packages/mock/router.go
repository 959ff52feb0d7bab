package mock

import (
	"net/http"
	"strings"
)

// HandlerFunc serves a matched route. params holds the named path segments.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params map[string]string)

// Route is one registered method and path pattern.
type Route struct {
	Method  string
	Pattern string
	Handler HandlerFunc

	segments []string
}

// Router matches requests segment by segment. A {{name}} segment matches
// any single non-empty segment and is returned under name.
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{}
}

// Handle registers a route. Routes are tried in registration order.
func (r *Router) Handle(method, pattern string, h HandlerFunc) {
	segments := splitPath(pattern)
	r.routes = append(r.routes, &Route{
		Method:   strings.ToUpper(method),
		Pattern:  "/" + strings.Join(segments, "/"),
		Handler:  h,
		segments: segments,
	})
}

// Match finds the route for method and path. When only other methods
// match the path, they are returned in allowed so the caller can answer
// 405 instead of 404.
func (r *Router) Match(method, path string) (route *Route, params map[string]string, allowed []string) {
	segments := splitPath(path)

	for _, rt := range r.routes {
		p, ok := rt.match(segments)
		if !ok {
			continue
		}
		if strings.EqualFold(rt.Method, method) {
			return rt, p, nil
		}
		allowed = append(allowed, rt.Method)
	}
	return nil, nil, allowed
}

func (r *Router) Routes() []*Route {
	return r.routes
}

func (rt *Route) match(segments []string) (map[string]string, bool) {
	if len(segments) != len(rt.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, want := range rt.segments {
		if name, ok := paramName(want); ok {
			params[name] = segments[i]
			continue
		}
		if want != segments[i] {
			return nil, false
		}
	}
	return params, true
}

func paramName(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{{") && strings.HasSuffix(segment, "}}") && len(segment) > 4 {
		return segment[2 : len(segment)-2], true
	}
	return "", false
}

// splitPath drops empty segments, so leading, trailing and doubled slashes
// do not matter.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
