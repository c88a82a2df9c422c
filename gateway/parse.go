package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// ParsedResponse is the HTTP-facing result of parsing function output.
type ParsedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// recognizedV1Keys are the only top-level keys a REST-style function
// response may carry. HTTP-style responses ignore extras instead.
var recognizedV1Keys = map[string]bool{
	"statusCode":        true,
	"body":              true,
	"headers":           true,
	"multiValueHeaders": true,
	"isBase64Encoded":   true,
	"base64Encoded":     true,
}

// ParseV1Response parses v1 (proxy integration) function output. REST
// style rejects unrecognized top-level keys and requires statusCode;
// HTTP style tolerates extras and defaults a missing status to 200.
func ParseV1Response(raw []byte, binaryTypes []string, style APIStyle) (*ParsedResponse, error) {
	output, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if style == APIStyleREST {
		for key := range output {
			if !recognizedV1Keys[key] {
				return nil, newParseError("unrecognized key %q in function response", key)
			}
		}
	}

	statusCode, ok, err := coerceStatusCode(output["statusCode"])
	if err != nil {
		return nil, err
	}
	if !ok {
		if style == APIStyleREST {
			return nil, newParseError("statusCode missing in function response")
		}
		statusCode = http.StatusOK
	}

	headers, err := mergeResponseHeaders(output["headers"], output["multiValueHeaders"])
	if err != nil {
		return nil, err
	}

	body, err := decodeResponseBody(output, binaryTypes, headers)
	if err != nil {
		return nil, err
	}

	return &ParsedResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

// ParseV2Response parses v2 (payload format 2.0) function output.
// Extra keys are always tolerated; output that is not an object with a
// statusCode is wrapped into a 200 response carrying the JSON text.
func ParseV2Response(raw []byte, binaryTypes []string) (*ParsedResponse, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, newParseError("function output is not valid JSON")
	}

	output, isObject := decoded.(map[string]any)

	if !isObject || !hasKey(output, "statusCode") {
		text, err := json.Marshal(decoded)
		if err != nil {
			return nil, newParseError("function output is not valid JSON")
		}

		headers := http.Header{}
		headers.Set("Content-Type", "application/json")

		return &ParsedResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
			Body:       text,
		}, nil
	}

	statusCode, ok, err := coerceStatusCode(output["statusCode"])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newParseError("statusCode is null in function response")
	}

	headers, err := mergeResponseHeaders(output["headers"], output["multiValueHeaders"])
	if err != nil {
		return nil, err
	}

	// a cookies list is appended to any Set-Cookie headers already
	// present; any other cookies value is ignored
	if cookies, ok := output["cookies"].([]any); ok {
		for _, cookie := range cookies {
			if value, ok := cookie.(string); ok {
				headers.Add("Set-Cookie", value)
			}
		}
	}

	body, err := decodeResponseBody(output, binaryTypes, headers)
	if err != nil {
		return nil, err
	}

	return &ParsedResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, newParseError("function output is not valid JSON")
	}

	output, ok := decoded.(map[string]any)
	if !ok {
		return nil, newParseError("function returned %s instead of a JSON object", trimmed(raw))
	}

	return output, nil
}

// coerceStatusCode accepts an integral JSON number or a string of
// digits. Codes outside the 100-999 range http.ResponseWriter can
// write and any other type are fatal parse errors. The second return
// reports whether a usable value was present.
func coerceStatusCode(value any) (int, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		return checkStatusCode(v.String())
	case string:
		return checkStatusCode(v)
	default:
		return 0, false, newParseError("statusCode has invalid type %T", value)
	}
}

func checkStatusCode(text string) (int, bool, error) {
	code, err := strconv.Atoi(text)
	if err != nil {
		return 0, false, newParseError("statusCode %q is not an integer", text)
	}
	if code < 100 || code > 999 {
		return 0, false, newParseError("statusCode %d is outside the writable HTTP range", code)
	}
	return code, true, nil
}

// resolveBase64Flag reads the body encoding flag, giving base64Encoded
// precedence over isBase64Encoded. Booleans and the case-insensitive
// strings "true"/"false" are accepted; anything else is a parse error.
func resolveBase64Flag(output map[string]any) (bool, error) {
	for _, key := range []string{"base64Encoded", "isBase64Encoded"} {
		value, ok := output[key]
		if !ok || value == nil {
			continue
		}

		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return false, newParseError("%s value %q is not a boolean", key, v)
		default:
			return false, newParseError("%s has invalid type %T", key, value)
		}
	}

	return false, nil
}

// decodeResponseBody extracts the body, decoding base64 to raw bytes
// when the flag is set and the response's declared content type is in
// the binary-type list.
func decodeResponseBody(output map[string]any, binaryTypes []string, headers http.Header) ([]byte, error) {
	flag, err := resolveBase64Flag(output)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch v := output["body"].(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return nil, newParseError("body is not serializable")
		}
		body = text
	}

	if flag && ShouldBase64Encode(binaryTypes, mimeTypeOf(headers.Get("Content-Type"))) {
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil {
			return nil, newParseError("body is not valid base64: %v", err)
		}
		body = decoded
	}

	return body, nil
}

// mergeResponseHeaders merges the single and multi-value header maps.
// For every key, the multi-value entries come first and the single
// value is appended only when not already present. A Content-Type of
// application/json is defaulted when neither map supplies one.
func mergeResponseHeaders(singleValue, multiValue any) (http.Header, error) {
	single, err := asHeaderMap(singleValue, "headers")
	if err != nil {
		return nil, err
	}

	multi, err := asMultiHeaderMap(multiValue, "multiValueHeaders")
	if err != nil {
		return nil, err
	}

	merged := http.Header{}

	for name, values := range multi {
		for _, value := range values {
			merged.Add(name, value)
		}
	}

	for name, value := range single {
		if !contains(merged.Values(name), value) {
			merged.Add(name, value)
		}
	}

	if merged.Get("Content-Type") == "" {
		merged.Set("Content-Type", "application/json")
	}

	return merged, nil
}

func asHeaderMap(value any, field string) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}

	raw, ok := value.(map[string]any)
	if !ok {
		return nil, newParseError("%s is not an object", field)
	}

	headers := make(map[string]string, len(raw))
	for name, v := range raw {
		text, ok := stringifyScalar(v)
		if !ok {
			return nil, newParseError("%s value for %q is not a scalar", field, name)
		}
		headers[name] = text
	}
	return headers, nil
}

func asMultiHeaderMap(value any, field string) (map[string][]string, error) {
	if value == nil {
		return nil, nil
	}

	raw, ok := value.(map[string]any)
	if !ok {
		return nil, newParseError("%s is not an object", field)
	}

	headers := make(map[string][]string, len(raw))
	for name, v := range raw {
		list, ok := v.([]any)
		if !ok {
			return nil, newParseError("%s value for %q is not a list", field, name)
		}

		values := make([]string, 0, len(list))
		for _, item := range list {
			text, ok := stringifyScalar(item)
			if !ok {
				return nil, newParseError("%s value for %q is not a scalar", field, name)
			}
			values = append(values, text)
		}
		headers[name] = values
	}
	return headers, nil
}

func stringifyScalar(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func trimmed(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 100 {
		return text[:100] + "..."
	}
	return text
}
