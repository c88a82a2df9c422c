package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Registry resolves (method, path) pairs to exactly one route. It is
// built once before serving starts and is read-only afterwards, so it
// may be shared by any number of concurrent request goroutines.
type Registry struct {
	dispatch map[string]*Route
	router   *mux.Router
	log      *zap.Logger
}

// routeEntry carries a route through the mux match machinery. It is
// never served directly.
type routeEntry struct {
	route *Route
}

func (routeEntry) ServeHTTP(http.ResponseWriter, *http.Request) {}

// NewRegistry builds a registry from the loaded route list. ANY methods
// are expanded, and registering the same path+method twice fails with
// ErrDuplicateRoute. Default routes additionally register a catch-all
// pattern for their methods plus implicit HEAD and OPTIONS.
func NewRegistry(routes []*Route, log *zap.Logger) (*Registry, error) {
	registry := &Registry{
		dispatch: make(map[string]*Route),
		router:   mux.NewRouter(),
		log:      log.Named("registry"),
	}

	var defaults []*Route

	for _, route := range routes {
		if route.IsDefaultRoute {
			defaults = append(defaults, route)
			continue
		}

		methods := NormalizeMethods(route.Methods)

		for _, method := range methods {
			key := route.Path + ":" + method
			if existing, ok := registry.dispatch[key]; ok && !existing.Equal(route) {
				return nil, errDuplicate(route.Path, method)
			}
			registry.dispatch[key] = route
		}

		registry.router.
			Handle(muxTemplate(route.Path), routeEntry{route: route}).
			Methods(methods...)

		registry.log.Debug("registered route",
			zap.String("path", route.Path),
			zap.Strings("methods", methods),
			zap.String("function", route.FunctionID),
		)
	}

	// catch-all patterns are registered last so that declared routes
	// always win the match
	for _, route := range defaults {
		methods := withImplicitMethods(NormalizeMethods(route.Methods))
		registry.router.
			PathPrefix("/").
			Handler(routeEntry{route: route}).
			Methods(methods...)

		registry.log.Debug("registered default route",
			zap.Strings("methods", methods),
			zap.String("function", route.FunctionID),
		)
	}

	return registry, nil
}

// Match resolves a method and path to a route. Path parameters parsed
// by the underlying router are passed through verbatim.
func (r *Registry) Match(method, path string) (*Route, map[string]string, error) {
	if route, ok := r.dispatch[path+":"+strings.ToUpper(method)]; ok {
		return route, nil, nil
	}

	req := &http.Request{
		Method: strings.ToUpper(method),
		URL:    &url.URL{Path: path},
	}

	var match mux.RouteMatch
	if r.router.Match(req, &match) && match.MatchErr == nil {
		if entry, ok := match.Handler.(routeEntry); ok {
			return entry.route, match.Vars, nil
		}
	}

	return nil, nil, ErrRouteNotFound
}

func errDuplicate(path, method string) error {
	return &duplicateRouteError{path: path, method: method}
}

type duplicateRouteError struct {
	path   string
	method string
}

func (e *duplicateRouteError) Error() string {
	return "duplicate route for " + e.method + " " + e.path
}

func (e *duplicateRouteError) Unwrap() error {
	return ErrDuplicateRoute
}

// muxTemplate converts a gateway path template into a mux template. The
// only special form is the greedy proxy segment, which captures the full
// remaining path.
func muxTemplate(path string) string {
	if open := strings.Index(path, "{"); open >= 0 {
		if close := strings.Index(path[open:], "+}"); close >= 0 {
			name := path[open+1 : open+close]
			return path[:open] + "{" + name + ":.*}"
		}
	}
	return path
}

func withImplicitMethods(methods []string) []string {
	seen := make(map[string]bool, len(methods)+2)
	for _, m := range methods {
		seen[m] = true
	}

	out := make([]string, len(methods))
	copy(out, methods)

	for _, implicit := range []string{"HEAD", "OPTIONS"} {
		if !seen[implicit] {
			out = append(out, implicit)
		}
	}
	return out
}
