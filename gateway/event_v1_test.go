package gateway_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apigate-dev/apigate/gateway"
)

func TestBuildV1Event_Basics(t *testing.T) {
	facts := factsForRequest(t, "POST", "/users/42?a=1", `{"name":"ada"}`)
	facts.Headers.Set("Content-Type", "application/json")
	facts.PathParams = map[string]string{"id": "42"}

	route := &gateway.Route{
		FunctionID:    "fn",
		Path:          "/users/{id}",
		Methods:       []string{"POST"},
		APIStyle:      gateway.APIStyleREST,
		OperationName: "CreateUser",
	}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{
		Stage:          "dev",
		StageVariables: map[string]string{"env": "dev"},
	})

	assert.Empty(t, event.Version)
	assert.Equal(t, "/users/{id}", event.Resource)
	assert.Equal(t, "/users/42", event.Path)
	assert.Equal(t, "POST", event.HTTPMethod)
	assert.Equal(t, map[string]string{"id": "42"}, event.PathParameters)
	assert.Equal(t, map[string]string{"env": "dev"}, event.StageVariables)
	require.NotNil(t, event.Body)
	assert.Equal(t, `{"name":"ada"}`, *event.Body)
	assert.False(t, event.IsBase64Encoded)

	assert.Equal(t, "dev", event.RequestContext.Stage)
	assert.Equal(t, "/users/{id}", event.RequestContext.ResourcePath)
	assert.Equal(t, "CreateUser", event.RequestContext.OperationName)
	assert.NotEmpty(t, event.RequestContext.RequestID)
	assert.Equal(t, "Custom User Agent String", event.RequestContext.Identity.UserAgent)
}

func TestBuildV1Event_HTTPStyleCarriesVersion(t *testing.T) {
	facts := factsForRequest(t, "GET", "/hello", "")
	route := &gateway.Route{Path: "/hello", APIStyle: gateway.APIStyleHTTP, PayloadFormatVersion: "1.0"}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{})

	assert.Equal(t, "1.0", event.Version)
}

func TestBuildV1Event_QueryMaps(t *testing.T) {
	facts := factsForRequest(t, "GET", "/hello?k=a&k=b&k=c&single=x", "")
	route := &gateway.Route{Path: "/hello", APIStyle: gateway.APIStyleREST}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{})

	// single-value map keeps the last occurrence
	assert.Equal(t, "c", event.QueryStringParameters["k"])
	assert.Equal(t, "x", event.QueryStringParameters["single"])

	// multi-value map keeps every occurrence in order
	assert.Equal(t, []string{"a", "b", "c"}, event.MultiValueQueryStringParameters["k"])
	assert.Equal(t, []string{"x"}, event.MultiValueQueryStringParameters["single"])
}

func TestBuildV1Event_NoQueryRendersNull(t *testing.T) {
	facts := factsForRequest(t, "GET", "/hello", "")
	route := &gateway.Route{Path: "/hello", APIStyle: gateway.APIStyleREST}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{})

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Nil(t, decoded["queryStringParameters"])
	assert.Nil(t, decoded["multiValueQueryStringParameters"])
	assert.Nil(t, decoded["pathParameters"])
	assert.Nil(t, decoded["stageVariables"])
	assert.Nil(t, decoded["body"])
}

func TestBuildV1Event_ForwardingHeaders(t *testing.T) {
	facts := factsForRequest(t, "GET", "/hello", "")
	facts.Scheme = "http"
	facts.Port = 3000

	route := &gateway.Route{Path: "/hello", APIStyle: gateway.APIStyleREST}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{})

	assert.Equal(t, "http", event.Headers["X-Forwarded-Proto"])
	assert.Equal(t, "3000", event.Headers["X-Forwarded-Port"])
	assert.Equal(t, []string{"http"}, event.MultiValueHeaders["X-Forwarded-Proto"])
	assert.Equal(t, []string{"3000"}, event.MultiValueHeaders["X-Forwarded-Port"])
}

func TestBuildV1Event_MultiValueHeaders(t *testing.T) {
	facts := factsForRequest(t, "GET", "/hello", "")
	facts.Headers.Add("X-Custom", "first")
	facts.Headers.Add("X-Custom", "second")

	route := &gateway.Route{Path: "/hello", APIStyle: gateway.APIStyleREST}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{})

	assert.Equal(t, "second", event.Headers["X-Custom"])
	assert.Equal(t, []string{"first", "second"}, event.MultiValueHeaders["X-Custom"])
}

func TestBuildV1Event_BinaryBody(t *testing.T) {
	facts := factsForRequest(t, "POST", "/upload", "\x89PNG")
	facts.Headers.Set("Content-Type", "image/png")

	route := &gateway.Route{Path: "/upload", APIStyle: gateway.APIStyleREST}

	event := gateway.BuildV1Event(facts, route, gateway.EventOptions{
		BinaryTypes: []string{"image/png"},
	})

	require.NotNil(t, event.Body)
	assert.True(t, event.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x89PNG")), *event.Body)
}

func TestShouldBase64Encode(t *testing.T) {
	tests := []struct {
		name        string
		binaryTypes []string
		mimeType    string
		want        bool
	}{
		{"exact match", []string{"image/png"}, "image/png", true},
		{"no match", []string{"image/png"}, "text/plain", false},
		{"wildcard matches everything", []string{"*/*"}, "text/plain", true},
		{"wildcard matches absent type", []string{"*/*"}, "", true},
		{"absent type never matches concrete entries", []string{"image/png"}, "", false},
		{"empty list", nil, "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gateway.ShouldBase64Encode(tt.binaryTypes, tt.mimeType))
		})
	}
}
