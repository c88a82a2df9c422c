package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/gateway"
)

func TestRegistry_Match_ExactPath(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	matched, params, err := registry.Match("GET", "/hello")
	require.NoError(t, err)
	assert.Same(t, route, matched)
	assert.Empty(t, params)
}

func TestRegistry_Match_MethodNotRegistered(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = registry.Match("DELETE", "/hello")
	assert.ErrorIs(t, err, gateway.ErrRouteNotFound)
}

func TestRegistry_Match_UnknownPath(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = registry.Match("GET", "/nope")
	assert.ErrorIs(t, err, gateway.ErrRouteNotFound)
}

func TestRegistry_Match_PathParameters(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/users/{id}", Methods: []string{"GET"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	matched, params, err := registry.Match("GET", "/users/42")
	require.NoError(t, err)
	assert.Same(t, route, matched)
	assert.Equal(t, map[string]string{"id": "42"}, params)
}

func TestRegistry_Match_GreedyProxyParameter(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/files/{proxy+}", Methods: []string{"GET"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	matched, params, err := registry.Match("GET", "/files/a/b/c.txt")
	require.NoError(t, err)
	assert.Same(t, route, matched)
	assert.Equal(t, map[string]string{"proxy": "a/b/c.txt"}, params)
}

func TestRegistry_Match_AnyExpansion(t *testing.T) {
	route := &gateway.Route{FunctionID: "fn", Path: "/hello", Methods: []string{"ANY"}}

	registry, err := gateway.NewRegistry([]*gateway.Route{route}, zap.NewNop())
	require.NoError(t, err)

	for _, method := range []string{"GET", "DELETE", "PUT", "POST", "HEAD", "OPTIONS", "PATCH"} {
		matched, _, err := registry.Match(method, "/hello")
		require.NoError(t, err, method)
		assert.Same(t, route, matched)
	}
}

func TestRegistry_DuplicateRouteFails(t *testing.T) {
	routes := []*gateway.Route{
		{FunctionID: "fn-a", Path: "/hello", Methods: []string{"GET"}},
		{FunctionID: "fn-b", Path: "/hello", Methods: []string{"ANY"}},
	}

	_, err := gateway.NewRegistry(routes, zap.NewNop())
	assert.ErrorIs(t, err, gateway.ErrDuplicateRoute)
}

func TestRegistry_IdenticalRoutesTolerated(t *testing.T) {
	routes := []*gateway.Route{
		{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}},
		{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}},
	}

	_, err := gateway.NewRegistry(routes, zap.NewNop())
	assert.NoError(t, err)
}

func TestRegistry_DefaultRoute_CatchesUnmatchedPaths(t *testing.T) {
	declared := &gateway.Route{FunctionID: "fn", Path: "/hello", Methods: []string{"GET"}}
	fallback := &gateway.Route{FunctionID: "fallback", Path: "$default", Methods: []string{"GET"}, IsDefaultRoute: true}

	registry, err := gateway.NewRegistry([]*gateway.Route{fallback, declared}, zap.NewNop())
	require.NoError(t, err)

	matched, _, err := registry.Match("GET", "/hello")
	require.NoError(t, err)
	assert.Same(t, declared, matched)

	matched, _, err = registry.Match("GET", "/anything/else")
	require.NoError(t, err)
	assert.Same(t, fallback, matched)
}

func TestRegistry_DefaultRoute_ImplicitHeadAndOptions(t *testing.T) {
	fallback := &gateway.Route{FunctionID: "fallback", Path: "$default", Methods: []string{"GET"}, IsDefaultRoute: true}

	registry, err := gateway.NewRegistry([]*gateway.Route{fallback}, zap.NewNop())
	require.NoError(t, err)

	for _, method := range []string{"GET", "HEAD", "OPTIONS"} {
		matched, _, err := registry.Match(method, "/whatever")
		require.NoError(t, err, method)
		assert.Same(t, fallback, matched)
	}

	_, _, err = registry.Match("POST", "/whatever")
	assert.ErrorIs(t, err, gateway.ErrRouteNotFound)
}
