package gateway_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apigate-dev/apigate/gateway"
)

func TestParseV1Response_Minimal(t *testing.T) {
	raw := []byte(`{"statusCode": 200, "body": "hello"}`)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	require.NoError(t, err)

	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, "hello", string(response.Body))
	assert.Equal(t, "application/json", response.Headers.Get("Content-Type"))
}

func TestParseV1Response_RESTRejectsUnrecognizedKeys(t *testing.T) {
	raw := []byte(`{"statusCode": 200, "body": "hello", "cookies": []}`)

	_, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	require.Error(t, err)

	var parseErr *gateway.ResponseParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseV1Response_HTTPIgnoresUnrecognizedKeys(t *testing.T) {
	raw := []byte(`{"statusCode": 201, "body": "hello", "cookies": []}`)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleHTTP)
	require.NoError(t, err)
	assert.Equal(t, 201, response.StatusCode)
}

func TestParseV1Response_MissingStatusCode(t *testing.T) {
	raw := []byte(`{"body": "hello"}`)

	_, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	assert.Error(t, err)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleHTTP)
	require.NoError(t, err)
	assert.Equal(t, 200, response.StatusCode)
}

func TestParseV1Response_StatusCodeCoercion(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"integer", `{"statusCode": 204}`, 204, false},
		{"string of digits", `{"statusCode": "418"}`, 418, false},
		{"float", `{"statusCode": 200.5}`, 0, true},
		{"negative", `{"statusCode": -1}`, 0, true},
		{"zero", `{"statusCode": 0}`, 0, true},
		{"below writable range", `{"statusCode": 99}`, 0, true},
		{"above writable range", `{"statusCode": 1000}`, 0, true},
		{"range boundaries", `{"statusCode": 100}`, 100, false},
		{"upper boundary", `{"statusCode": 999}`, 999, false},
		{"boolean", `{"statusCode": true}`, 0, true},
		{"non-numeric string", `{"statusCode": "abc"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := gateway.ParseV1Response([]byte(tt.raw), nil, gateway.APIStyleHTTP)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, response.StatusCode)
		})
	}
}

func TestParseV1Response_NotAnObject(t *testing.T) {
	_, err := gateway.ParseV1Response([]byte(`"just text"`), nil, gateway.APIStyleREST)
	assert.Error(t, err)

	_, err = gateway.ParseV1Response([]byte(`not json at all`), nil, gateway.APIStyleREST)
	assert.Error(t, err)
}

func TestParseV1Response_HeaderMergeLaw(t *testing.T) {
	raw := []byte(`{
		"statusCode": 200,
		"headers": {"X-One": "ValueB", "X-Two": "only"},
		"multiValueHeaders": {"X-One": ["ValueA", "ValueB", "ValueC"]}
	}`)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	require.NoError(t, err)

	// multi values first, single value appended only when absent
	assert.Equal(t, []string{"ValueA", "ValueB", "ValueC"}, response.Headers.Values("X-One"))
	assert.Equal(t, []string{"only"}, response.Headers.Values("X-Two"))
}

func TestParseV1Response_SingleValueAppendedWhenAbsent(t *testing.T) {
	raw := []byte(`{
		"statusCode": 200,
		"headers": {"X-One": "ValueD"},
		"multiValueHeaders": {"X-One": ["ValueA", "ValueB"]}
	}`)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	require.NoError(t, err)

	assert.Equal(t, []string{"ValueA", "ValueB", "ValueD"}, response.Headers.Values("X-One"))
}

func TestParseV1Response_ScalarHeaderValues(t *testing.T) {
	raw := []byte(`{
		"statusCode": 200,
		"headers": {"X-Count": 42, "X-Flag": true}
	}`)

	response, err := gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	require.NoError(t, err)

	assert.Equal(t, "42", response.Headers.Get("X-Count"))
	assert.Equal(t, "true", response.Headers.Get("X-Flag"))
}

func TestParseV1Response_Base64Body(t *testing.T) {
	payload := []byte("\x89PNG binary payload")
	encoded := base64.StdEncoding.EncodeToString(payload)

	raw := []byte(`{
		"statusCode": 200,
		"headers": {"Content-Type": "image/png"},
		"isBase64Encoded": true,
		"body": "` + encoded + `"
	}`)

	response, err := gateway.ParseV1Response(raw, []string{"image/png"}, gateway.APIStyleREST)
	require.NoError(t, err)
	assert.Equal(t, payload, response.Body)
}

func TestParseV1Response_Base64FlagIgnoredForNonBinaryType(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("text"))

	raw := []byte(`{
		"statusCode": 200,
		"headers": {"Content-Type": "text/plain"},
		"isBase64Encoded": true,
		"body": "` + encoded + `"
	}`)

	response, err := gateway.ParseV1Response(raw, []string{"image/png"}, gateway.APIStyleREST)
	require.NoError(t, err)

	// content type not declared binary, body passes through untouched
	assert.Equal(t, encoded, string(response.Body))
}

func TestParseV1Response_Base64EncodedTakesPrecedence(t *testing.T) {
	payload := []byte("binary")
	encoded := base64.StdEncoding.EncodeToString(payload)

	raw := []byte(`{
		"statusCode": 200,
		"headers": {"Content-Type": "image/png"},
		"base64Encoded": true,
		"isBase64Encoded": false,
		"body": "` + encoded + `"
	}`)

	response, err := gateway.ParseV1Response(raw, []string{"image/png"}, gateway.APIStyleREST)
	require.NoError(t, err)
	assert.Equal(t, payload, response.Body)
}

func TestParseV1Response_Base64FlagStrings(t *testing.T) {
	payload := []byte("binary")
	encoded := base64.StdEncoding.EncodeToString(payload)

	raw := []byte(`{
		"statusCode": 200,
		"headers": {"Content-Type": "image/png"},
		"isBase64Encoded": "TRUE",
		"body": "` + encoded + `"
	}`)

	response, err := gateway.ParseV1Response(raw, []string{"image/png"}, gateway.APIStyleREST)
	require.NoError(t, err)
	assert.Equal(t, payload, response.Body)

	raw = []byte(`{"statusCode": 200, "isBase64Encoded": "maybe"}`)
	_, err = gateway.ParseV1Response(raw, nil, gateway.APIStyleREST)
	assert.Error(t, err)
}

func TestParseV2Response_Object(t *testing.T) {
	raw := []byte(`{"statusCode": 200, "body": "hello", "extra": "ignored"}`)

	response, err := gateway.ParseV2Response(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, "hello", string(response.Body))
}

func TestParseV2Response_NonObjectWrappedInto200(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		body string
	}{
		{"string", `"hello"`, `"hello"`},
		{"number", `42`, `42`},
		{"list", `[1,2,3]`, `[1,2,3]`},
		{"object without statusCode", `{"message":"hi"}`, `{"message":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := gateway.ParseV2Response([]byte(tt.raw), nil)
			require.NoError(t, err)

			assert.Equal(t, 200, response.StatusCode)
			assert.Equal(t, "application/json", response.Headers.Get("Content-Type"))
			assert.JSONEq(t, tt.body, string(response.Body))
		})
	}
}

func TestParseV2Response_NullStatusCodeFails(t *testing.T) {
	_, err := gateway.ParseV2Response([]byte(`{"statusCode": null}`), nil)
	assert.Error(t, err)
}

func TestParseV2Response_InvalidJSONFails(t *testing.T) {
	_, err := gateway.ParseV2Response([]byte(`{"statusCode":`), nil)
	assert.Error(t, err)
}

func TestParseV2Response_Cookies(t *testing.T) {
	raw := []byte(`{
		"statusCode": 200,
		"headers": {"Set-Cookie": "first=1"},
		"cookies": ["session=abc", "theme=dark", 42]
	}`)

	response, err := gateway.ParseV2Response(raw, nil)
	require.NoError(t, err)

	// string cookies are appended after existing Set-Cookie headers;
	// non-string entries are dropped
	assert.Equal(t, []string{"first=1", "session=abc", "theme=dark"}, response.Headers.Values("Set-Cookie"))
}

func TestParseV2Response_NonListCookiesIgnored(t *testing.T) {
	raw := []byte(`{"statusCode": 200, "cookies": "not-a-list"}`)

	response, err := gateway.ParseV2Response(raw, nil)
	require.NoError(t, err)
	assert.Empty(t, response.Headers.Values("Set-Cookie"))
}

func TestParseV2Response_OutOfRangeStatusCodeFails(t *testing.T) {
	for _, raw := range []string{
		`{"statusCode": -7}`,
		`{"statusCode": 0}`,
		`{"statusCode": 1000}`,
	} {
		_, err := gateway.ParseV2Response([]byte(raw), nil)
		assert.Error(t, err, raw)
	}
}

func TestParseResponse_NonStringBodySerialized(t *testing.T) {
	raw := []byte(`{"statusCode": 200, "body": {"nested": true}}`)

	response, err := gateway.ParseV2Response(raw, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nested": true}`, string(response.Body))
}
