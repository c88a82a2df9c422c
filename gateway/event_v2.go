package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProxyEventV2 is the HTTP-style proxy integration event under payload
// format version 2.0.
type ProxyEventV2 struct {
	Version               string            `json:"version"`
	RouteKey              string            `json:"routeKey"`
	RawPath               string            `json:"rawPath"`
	RawQueryString        string            `json:"rawQueryString"`
	Cookies               []string          `json:"cookies,omitempty"`
	Headers               map[string]string `json:"headers"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	RequestContext        RequestContextV2  `json:"requestContext"`
	Body                  *string           `json:"body"`
	PathParameters        map[string]string `json:"pathParameters"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	StageVariables        map[string]string `json:"stageVariables"`
}

// RequestContextV2 is the requestContext member of the v2 envelope.
type RequestContextV2 struct {
	AccountID    string               `json:"accountId"`
	APIID        string               `json:"apiId"`
	Authorizer   map[string]any       `json:"authorizer,omitempty"`
	DomainName   string               `json:"domainName"`
	DomainPrefix string               `json:"domainPrefix"`
	HTTP         RequestContextHTTPV2 `json:"http"`
	RequestID    string               `json:"requestId"`
	RouteKey     string               `json:"routeKey"`
	Stage        string               `json:"stage"`
	Time         string               `json:"time"`
	TimeEpoch    int64                `json:"timeEpoch"`
}

// RequestContextHTTPV2 describes the HTTP exchange inside the v2
// request context.
type RequestContextHTTPV2 struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Protocol  string `json:"protocol"`
	SourceIP  string `json:"sourceIp"`
	UserAgent string `json:"userAgent"`
}

// BuildV2Event constructs the v2 proxy event for a request matched to a
// route. Like BuildV1Event it is safe for concurrent use.
func BuildV2Event(facts RequestFacts, route *Route, opts EventOptions) *ProxyEventV2 {
	body, encoded := encodeBody(facts.Body, opts.BinaryTypes, facts.MimeType())

	now := time.Now().UTC()

	routeKey := route.RouteKey(facts.Method)

	return &ProxyEventV2{
		Version:               PayloadV2,
		RouteKey:              routeKey,
		RawPath:               facts.RawPath,
		RawQueryString:        facts.RawQuery,
		Cookies:               requestCookies(facts.Headers),
		Headers:               joinedHeaders(facts),
		QueryStringParameters: joinedQuery(facts.Query),
		Body:                  body,
		PathParameters:        emptyToNil(facts.PathParams),
		IsBase64Encoded:       encoded,
		StageVariables:        emptyToNil(opts.StageVariables),
		RequestContext: RequestContextV2{
			AccountID:    arnAccountID,
			APIID:        arnAPIID,
			DomainName:   facts.Host,
			DomainPrefix: domainPrefix(facts.Host),
			RequestID:    uuid.NewString(),
			RouteKey:     routeKey,
			Stage:        stageOrDefault(opts.Stage),
			Time:         now.Format(requestTimeLayout),
			TimeEpoch:    now.Unix(),
			HTTP: RequestContextHTTPV2{
				Method:    facts.Method,
				Path:      facts.RawPath,
				Protocol:  facts.Protocol,
				SourceIP:  facts.SourceIP,
				UserAgent: facts.Headers.Get("User-Agent"),
			},
		},
	}
}

// joinedQuery flattens query values into a single map, joining repeated
// keys with commas in arrival order.
func joinedQuery(query map[string][]string) map[string]string {
	if len(query) == 0 {
		return nil
	}

	joined := make(map[string]string, len(query))
	for key, values := range query {
		joined[key] = strings.Join(values, ",")
	}
	return joined
}

// joinedHeaders flattens headers into a single map, joining repeated
// names with commas, and synthesizes the forwarding headers.
func joinedHeaders(facts RequestFacts) map[string]string {
	joined := make(map[string]string, len(facts.Headers)+2)
	for name, values := range facts.Headers {
		joined[name] = strings.Join(values, ",")
	}

	joined["X-Forwarded-Proto"] = facts.Scheme
	joined["X-Forwarded-Port"] = strconv.Itoa(facts.Port)

	return joined
}

// requestCookies extracts the Cookie header family into a list of
// "name=value" strings.
func requestCookies(headers http.Header) []string {
	r := http.Request{Header: headers}

	parsed := r.Cookies()
	if len(parsed) == 0 {
		return nil
	}

	cookies := make([]string, 0, len(parsed))
	for _, cookie := range parsed {
		cookies = append(cookies, cookie.Name+"="+cookie.Value)
	}
	return cookies
}

func domainPrefix(host string) string {
	if i := strings.IndexAny(host, ".:"); i > 0 {
		return host[:i]
	}
	return host
}

func stageOrDefault(stage string) string {
	if stage == "" {
		return "$default"
	}
	return stage
}
