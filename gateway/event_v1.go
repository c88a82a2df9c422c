package gateway

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ProxyEventV1 is the REST-style proxy integration event, also used by
// HTTP-style routes declaring payload format version 1.0. Nil maps and
// nil body render as JSON null, matching the managed gateway's output.
type ProxyEventV1 struct {
	Version                         string              `json:"version,omitempty"`
	Resource                        string              `json:"resource"`
	Path                            string              `json:"path"`
	HTTPMethod                      string              `json:"httpMethod"`
	Headers                         map[string]string   `json:"headers"`
	MultiValueHeaders               map[string][]string `json:"multiValueHeaders"`
	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
	RequestContext                  RequestContextV1    `json:"requestContext"`
	PathParameters                  map[string]string   `json:"pathParameters"`
	StageVariables                  map[string]string   `json:"stageVariables"`
	Body                            *string             `json:"body"`
	IsBase64Encoded                 bool                `json:"isBase64Encoded"`
}

// RequestContextV1 is the requestContext member of the v1 envelope.
type RequestContextV1 struct {
	AccountID         string            `json:"accountId"`
	APIID             string            `json:"apiId"`
	ResourceID        string            `json:"resourceId"`
	Stage             string            `json:"stage"`
	RequestID         string            `json:"requestId"`
	Identity          RequestIdentityV1 `json:"identity"`
	ExtendedRequestID *string           `json:"extendedRequestId"`
	Path              string            `json:"path"`
	ResourcePath      string            `json:"resourcePath"`
	HTTPMethod        string            `json:"httpMethod"`
	Protocol          string            `json:"protocol"`
	DomainName        string            `json:"domainName"`
	RequestTimeEpoch  int64             `json:"requestTimeEpoch"`
	RequestTime       string            `json:"requestTime"`
	OperationName     string            `json:"operationName,omitempty"`
	Authorizer        map[string]any    `json:"authorizer,omitempty"`
}

// RequestIdentityV1 is the caller identity member of the v1 envelope.
// Most fields are unresolvable locally and stay null.
type RequestIdentityV1 struct {
	AccountID                     *string `json:"accountId"`
	APIKey                        *string `json:"apiKey"`
	Caller                        *string `json:"caller"`
	CognitoAuthenticationProvider *string `json:"cognitoAuthenticationProvider"`
	CognitoAuthenticationType     *string `json:"cognitoAuthenticationType"`
	CognitoIdentityPoolID         *string `json:"cognitoIdentityPoolId"`
	SourceIP                      string  `json:"sourceIp"`
	User                          *string `json:"user"`
	UserAgent                     string  `json:"userAgent"`
	UserArn                       *string `json:"userArn"`
}

const (
	defaultResourceID = "123456"
	localUserAgent    = "Custom User Agent String"
	requestTimeLayout = "02/Jan/2006:15:04:05 +0000"
)

// EventOptions carries the per-deployment inputs of event construction.
type EventOptions struct {
	Stage          string
	StageVariables map[string]string
	BinaryTypes    []string
}

// BuildV1Event constructs the v1 proxy event for a request matched to a
// route. It is a pure function of its inputs apart from the generated
// request id and timestamp, and is safe for concurrent use.
func BuildV1Event(facts RequestFacts, route *Route, opts EventOptions) *ProxyEventV1 {
	single, multi := splitQuery(facts.Query)

	headers, multiHeaders := splitHeaders(facts)

	body, encoded := encodeBody(facts.Body, opts.BinaryTypes, facts.MimeType())

	now := time.Now().UTC()

	event := &ProxyEventV1{
		Resource:                        route.Path,
		Path:                            facts.RawPath,
		HTTPMethod:                      facts.Method,
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
		QueryStringParameters:           single,
		MultiValueQueryStringParameters: multi,
		PathParameters:                  emptyToNil(facts.PathParams),
		StageVariables:                  emptyToNil(opts.StageVariables),
		Body:                            body,
		IsBase64Encoded:                 encoded,
		RequestContext: RequestContextV1{
			AccountID:  arnAccountID,
			APIID:      arnAPIID,
			ResourceID: defaultResourceID,
			Stage:      opts.Stage,
			RequestID:  uuid.NewString(),
			Identity: RequestIdentityV1{
				SourceIP:  facts.SourceIP,
				UserAgent: localUserAgent,
			},
			Path:             facts.RawPath,
			ResourcePath:     route.Path,
			HTTPMethod:       facts.Method,
			Protocol:         facts.Protocol,
			DomainName:       facts.Host,
			RequestTimeEpoch: now.Unix(),
			RequestTime:      now.Format(requestTimeLayout),
			OperationName:    route.OperationName,
		},
	}

	if route.APIStyle == APIStyleHTTP {
		event.Version = PayloadV1
	}

	return event
}

// splitQuery derives the two v1 query maps from parsed query values.
// The single-value map keeps the last occurrence of each key while the
// multi-value map keeps every occurrence in arrival order.
func splitQuery(query map[string][]string) (map[string]string, map[string][]string) {
	if len(query) == 0 {
		return nil, nil
	}

	single := make(map[string]string, len(query))
	multi := make(map[string][]string, len(query))

	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		single[key] = values[len(values)-1]
		multi[key] = values
	}

	return single, multi
}

// splitHeaders derives the v1 header maps from the inbound headers,
// keeping the last value in the single-value map and every value in the
// multi-value map, and synthesizes the forwarding headers in both.
func splitHeaders(facts RequestFacts) (map[string]string, map[string][]string) {
	single := make(map[string]string, len(facts.Headers)+2)
	multi := make(map[string][]string, len(facts.Headers)+2)

	for name, values := range facts.Headers {
		if len(values) == 0 {
			continue
		}
		single[name] = values[len(values)-1]
		multi[name] = values
	}

	port := strconv.Itoa(facts.Port)
	single["X-Forwarded-Proto"] = facts.Scheme
	single["X-Forwarded-Port"] = port
	multi["X-Forwarded-Proto"] = []string{facts.Scheme}
	multi["X-Forwarded-Port"] = []string{port}

	return single, multi
}

// encodeBody applies the binary-type rule: the body is base64-encoded
// iff the declared binary types contain the request's media type or the
// */* wildcard. An empty body stays null.
func encodeBody(body []byte, binaryTypes []string, mimeType string) (*string, bool) {
	if len(body) == 0 {
		return nil, false
	}

	if ShouldBase64Encode(binaryTypes, mimeType) {
		encoded := base64.StdEncoding.EncodeToString(body)
		return &encoded, true
	}

	text := string(body)
	return &text, false
}

// ShouldBase64Encode reports whether a payload of the given media type
// must be base64-encoded. The */* wildcard matches regardless of the
// media type, including an absent one.
func ShouldBase64Encode(binaryTypes []string, mimeType string) bool {
	for _, binaryType := range binaryTypes {
		if binaryType == "*/*" || (mimeType != "" && binaryType == mimeType) {
			return true
		}
	}
	return false
}

func emptyToNil(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
