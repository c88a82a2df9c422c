package gateway

import (
	"sort"
	"strings"
)

// APIStyle distinguishes the two gateway API flavors, which differ in
// event shape and response parsing strictness.
type APIStyle string

const (
	APIStyleREST APIStyle = "REST"
	APIStyleHTTP APIStyle = "HTTP"
)

// Payload format versions for HTTP-style routes and authorizers.
const (
	PayloadV1 = "1.0"
	PayloadV2 = "2.0"
)

// anyMethods is the fixed expansion of the ANY pseudo-verb.
var anyMethods = []string{"GET", "DELETE", "PUT", "POST", "HEAD", "OPTIONS", "PATCH"}

// Route identifies one HTTP-method x path combination and the function
// it dispatches to. Routes are immutable once the registry is built.
type Route struct {
	FunctionID           string
	Path                 string
	Methods              []string
	APIStyle             APIStyle
	PayloadFormatVersion string
	IsDefaultRoute       bool
	OperationName        string
	StackPath            string
	AuthorizerName       string
	Authorizer           *Authorizer
	UseDefaultAuthorizer bool
}

// NormalizeMethods uppercases methods and expands the ANY pseudo-verb
// into its fixed method set.
func NormalizeMethods(methods []string) []string {
	normalized := make([]string, 0, len(methods))
	for _, method := range methods {
		method = strings.ToUpper(method)
		if method == "ANY" {
			normalized = append(normalized, anyMethods...)
			continue
		}
		normalized = append(normalized, method)
	}
	return normalized
}

// Key returns the identity tuple of the route. Two routes with equal
// keys are interchangeable for dispatch purposes.
func (r *Route) Key() string {
	methods := NormalizeMethods(r.Methods)
	sorted := make([]string, len(methods))
	copy(sorted, methods)
	sort.Strings(sorted)

	return strings.Join([]string{r.StackPath, r.FunctionID, r.Path, strings.Join(sorted, ",")}, "|")
}

// Equal reports whether two routes are interchangeable for dispatch.
func (r *Route) Equal(other *Route) bool {
	if other == nil {
		return false
	}
	return r.Key() == other.Key()
}

// EventVersion resolves the proxy event payload version used for this
// route. REST-style routes always use the v1 envelope; HTTP-style routes
// default to "2.0" when no version is declared.
func (r *Route) EventVersion() string {
	if r.APIStyle == APIStyleREST {
		return PayloadV1
	}
	if r.PayloadFormatVersion == PayloadV1 {
		return PayloadV1
	}
	return PayloadV2
}

// RouteKey returns the HTTP-style route key, e.g. "GET /hello", or
// "$default" for the catch-all route.
func (r *Route) RouteKey(method string) string {
	if r.IsDefaultRoute {
		return "$default"
	}
	return strings.ToUpper(method) + " " + r.Path
}
