package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound is returned by the registry when no route matches
	// the incoming method and path. It is fatal for the request only.
	ErrRouteNotFound = errors.New("route not found")

	// ErrDuplicateRoute is returned at build time when two routes would
	// register the same dispatch key.
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrInvalidSecurityDefinition is returned at load time when an
	// identity source string does not match any recognized form.
	ErrInvalidSecurityDefinition = errors.New("invalid security definition")

	// ErrUnauthorized is the expected outcome of a denying authorizer.
	ErrUnauthorized = errors.New("unauthorized request")
)

// ResponseParseError indicates that a function returned output which
// cannot be parsed into a valid proxy response. It is a bug in the
// function, not in the gateway, and is surfaced as a 5xx.
type ResponseParseError struct {
	Reason string
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse function response: %s", e.Reason)
}

func newParseError(format string, args ...any) *ResponseParseError {
	return &ResponseParseError{Reason: fmt.Sprintf(format, args...)}
}

// AuthorizerResponseError indicates that an authorizer function returned
// a body which is not a valid authorizer decision shape.
type AuthorizerResponseError struct {
	Authorizer string
	Reason     string
}

func (e *AuthorizerResponseError) Error() string {
	return fmt.Sprintf("authorizer %q returned an invalid response: %s", e.Authorizer, e.Reason)
}

// PayloadFormatVersionError indicates an unsupported payload format
// version on a route or authorizer definition.
type PayloadFormatVersionError struct {
	Version string
}

func (e *PayloadFormatVersionError) Error() string {
	return fmt.Sprintf("unsupported payload format version %q", e.Version)
}
