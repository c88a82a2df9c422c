package gateway

import (
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
)

// RequestFacts captures the primitive facts of an inbound HTTP request.
// Event constructors and identity sources operate on facts only, never
// on the raw *http.Request, which keeps them pure and testable.
type RequestFacts struct {
	Method     string
	RawPath    string
	RawQuery   string
	Query      url.Values
	Headers    http.Header
	Body       []byte
	SourceIP   string
	Scheme     string
	Protocol   string
	Host       string
	Port       int
	PathParams map[string]string

	// Context carries gateway context facts consulted by context
	// identity sources. Stage variables are configured per stage.
	Context        map[string]string
	Stage          string
	StageVariables map[string]string
}

// NewRequestFacts reads the request body and derives facts from r. The
// body is consumed; callers must not read r.Body afterwards.
func NewRequestFacts(r *http.Request, port int) (RequestFacts, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return RequestFacts{}, err
	}

	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		sourceIP = host
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	protocol := r.Proto
	if protocol == "" {
		protocol = "HTTP/1.1"
	}

	return RequestFacts{
		Method:   r.Method,
		RawPath:  r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Query:    r.URL.Query(),
		Headers:  r.Header,
		Body:     body,
		SourceIP: sourceIP,
		Scheme:   scheme,
		Protocol: protocol,
		Host:     r.Host,
		Port:     port,
	}, nil
}

// MimeType returns the request's media type, stripped of parameters.
func (f RequestFacts) MimeType() string {
	return mimeTypeOf(f.Headers.Get("Content-Type"))
}

func mimeTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return contentType
}
