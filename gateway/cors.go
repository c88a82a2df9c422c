package gateway

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig is the static cross-origin configuration of the gateway.
type CORSConfig struct {
	AllowOrigins     []string `conf:"allow_origins"`
	AllowMethods     []string `conf:"allow_methods"`
	AllowHeaders     []string `conf:"allow_headers"`
	AllowCredentials bool     `conf:"allow_credentials"`
	MaxAge           int      `conf:"max_age"`
}

// allowOrigin resolves the Access-Control-Allow-Origin value for the
// caller's origin. An explicit allow-list reflects a matching origin;
// the * wildcard reflects the caller when credentials are enabled and
// stays literal otherwise. An empty return means the header is omitted.
func (c *CORSConfig) allowOrigin(origin string) string {
	for _, allowed := range c.AllowOrigins {
		if allowed == "*" {
			if c.AllowCredentials {
				return origin
			}
			return "*"
		}
		if allowed == origin && origin != "" {
			return origin
		}
	}
	return ""
}

// Apply merges the CORS headers into an outgoing response.
func (c *CORSConfig) Apply(headers http.Header, origin string) {
	if c == nil {
		return
	}

	if allowed := c.allowOrigin(origin); allowed != "" {
		headers.Set("Access-Control-Allow-Origin", allowed)
	}

	if len(c.AllowMethods) > 0 {
		headers.Set("Access-Control-Allow-Methods", strings.Join(c.AllowMethods, ","))
	}
	if len(c.AllowHeaders) > 0 {
		headers.Set("Access-Control-Allow-Headers", strings.Join(c.AllowHeaders, ","))
	}
	if c.AllowCredentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.MaxAge > 0 {
		headers.Set("Access-Control-Max-Age", strconv.Itoa(c.MaxAge))
	}
}
