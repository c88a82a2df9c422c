package gateway

import (
	"fmt"
	"regexp"
)

// IdentitySource is a declared location from which an authorizer reads a
// credential value. The closed set of variants covers headers, query
// string parameters, gateway context values and stage variables.
type IdentitySource interface {
	// Find returns the credential value for the request, if present.
	Find(facts RequestFacts) (string, bool)

	// IsValid reports whether the source resolves on the request. Only
	// header sources consult the validation expression, which is
	// matched anchored at the start of the found value.
	IsValid(facts RequestFacts, validation *regexp.Regexp) bool
}

var identityPropertyPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

type identitySourceFactory func(property string) IdentitySource

type identityPrefix struct {
	prefix  string
	factory identitySourceFactory
}

// identityPrefixTable maps the recognized identity source prefixes, per
// API style, to their variant constructors. Built once; read-only.
var identityPrefixTable = map[APIStyle][]identityPrefix{
	APIStyleREST: {
		{"method.request.header.", newHeaderIdentitySource},
		{"method.request.querystring.", newQueryIdentitySource},
		{"context.", newContextIdentitySource},
		{"stageVariables.", newStageVariableIdentitySource},
	},
	APIStyleHTTP: {
		{"$request.header.", newHeaderIdentitySource},
		{"$request.querystring.", newQueryIdentitySource},
		{"$context.", newContextIdentitySource},
		{"$stageVariables.", newStageVariableIdentitySource},
	},
}

// ParseIdentitySource validates a raw identity source string against the
// forms recognized for the given API style and returns the matching
// variant. Unrecognized prefixes and malformed property names fail with
// ErrInvalidSecurityDefinition.
func ParseIdentitySource(raw string, style APIStyle) (IdentitySource, error) {
	for _, binding := range identityPrefixTable[style] {
		if len(raw) <= len(binding.prefix) || raw[:len(binding.prefix)] != binding.prefix {
			continue
		}

		property := raw[len(binding.prefix):]
		if !identityPropertyPattern.MatchString(property) {
			return nil, fmt.Errorf("%w: malformed identity source property %q", ErrInvalidSecurityDefinition, raw)
		}

		return binding.factory(property), nil
	}

	return nil, fmt.Errorf("%w: unrecognized identity source %q for %s api", ErrInvalidSecurityDefinition, raw, style)
}

// HeaderIdentitySource reads a credential from a request header.
type HeaderIdentitySource struct {
	Name string
}

func newHeaderIdentitySource(property string) IdentitySource {
	return HeaderIdentitySource{Name: property}
}

func (s HeaderIdentitySource) Find(facts RequestFacts) (string, bool) {
	value := facts.Headers.Get(s.Name)
	return value, value != ""
}

func (s HeaderIdentitySource) IsValid(facts RequestFacts, validation *regexp.Regexp) bool {
	value, ok := s.Find(facts)
	if !ok {
		return false
	}
	if validation == nil {
		return true
	}
	return validation.MatchString(value)
}

// QueryIdentitySource reads a credential from a query string parameter.
type QueryIdentitySource struct {
	Name string
}

func newQueryIdentitySource(property string) IdentitySource {
	return QueryIdentitySource{Name: property}
}

func (s QueryIdentitySource) Find(facts RequestFacts) (string, bool) {
	if !facts.Query.Has(s.Name) {
		return "", false
	}
	return facts.Query.Get(s.Name), true
}

func (s QueryIdentitySource) IsValid(facts RequestFacts, _ *regexp.Regexp) bool {
	_, ok := s.Find(facts)
	return ok
}

// ContextIdentitySource reads a credential from the gateway context.
type ContextIdentitySource struct {
	Name string
}

func newContextIdentitySource(property string) IdentitySource {
	return ContextIdentitySource{Name: property}
}

func (s ContextIdentitySource) Find(facts RequestFacts) (string, bool) {
	value, ok := facts.Context[s.Name]
	return value, ok
}

func (s ContextIdentitySource) IsValid(facts RequestFacts, _ *regexp.Regexp) bool {
	_, ok := s.Find(facts)
	return ok
}

// StageVariableIdentitySource reads a credential from a stage variable.
type StageVariableIdentitySource struct {
	Name string
}

func newStageVariableIdentitySource(property string) IdentitySource {
	return StageVariableIdentitySource{Name: property}
}

func (s StageVariableIdentitySource) Find(facts RequestFacts) (string, bool) {
	value, ok := facts.StageVariables[s.Name]
	return value, ok
}

func (s StageVariableIdentitySource) IsValid(facts RequestFacts, _ *regexp.Regexp) bool {
	_, ok := s.Find(facts)
	return ok
}

// CompileValidationExpression compiles a TOKEN authorizer validation
// expression, anchoring it at the start of the candidate value.
func CompileValidationExpression(expr string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + expr + ")")
}
