// Package apidef loads and resolves the static API definition the
// gateway serves: routes, authorizers, CORS and stage configuration.
// The definition is parsed once before the listener starts and is
// immutable afterwards.
package apidef

import (
	"strings"

	"github.com/knadh/koanf/parsers/dotenv"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/gateway"
)

// Definition is the parsed, unresolved API definition file.
type Definition struct {
	Stage             string              `conf:"stage"`
	StageVariables    map[string]string   `conf:"stage_variables"`
	BinaryMediaTypes  []string            `conf:"binary_media_types"`
	Cors              *gateway.CORSConfig `conf:"cors"`
	DefaultAuthorizer string              `conf:"default_authorizer"`
	Authorizers       []AuthorizerDef     `conf:"authorizers"`
	Routes            []RouteDef          `conf:"routes"`
}

// RouteDef declares one route of the API.
type RouteDef struct {
	FunctionID               string   `conf:"function_id"`
	Path                     string   `conf:"path"`
	Methods                  []string `conf:"methods"`
	APIStyle                 string   `conf:"api_style"`
	PayloadFormatVersion     string   `conf:"payload_format_version"`
	Default                  bool     `conf:"default"`
	OperationName            string   `conf:"operation_name"`
	StackPath                string   `conf:"stack_path"`
	Authorizer               string   `conf:"authorizer"`
	DisableDefaultAuthorizer bool     `conf:"disable_default_authorizer"`
}

// AuthorizerDef declares one custom authorizer of the API.
type AuthorizerDef struct {
	Name                 string   `conf:"name"`
	Type                 string   `conf:"type"`
	FunctionID           string   `conf:"function_id"`
	APIStyle             string   `conf:"api_style"`
	IdentitySources      []string `conf:"identity_sources"`
	PayloadFormatVersion string   `conf:"payload_format_version"`
	ValidationExpression string   `conf:"validation_expression"`
	SimpleResponses      bool     `conf:"simple_responses"`
}

// Resolved is the immutable output consumed by the gateway.
type Resolved struct {
	Stage            string
	StageVariables   map[string]string
	BinaryMediaTypes []string
	Cors             *gateway.CORSConfig
	Routes           []*gateway.Route
	Authorizers      map[string]*gateway.Authorizer
}

// Load parses an API definition file.
func Load(path string) (*Definition, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
		return nil, errors.Wrapf(err, "failed loading api definition %q", path)
	}

	var def Definition
	if err := k.UnmarshalWithConf("", &def, koanf.UnmarshalConf{Tag: "conf"}); err != nil {
		return nil, errors.Wrapf(err, "failed parsing api definition %q", path)
	}

	return &def, nil
}

// LoadStageVariables reads a dotenv-style stage variables file.
func LoadStageVariables(path string) (map[string]string, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), dotenv.Parser()); err != nil {
		return nil, errors.Wrapf(err, "failed loading stage variables %q", path)
	}

	variables := make(map[string]string)
	for _, key := range k.Keys() {
		variables[key] = k.String(key)
	}

	return variables, nil
}

// Resolve validates the definition and produces the immutable routes
// and authorizers. All configuration errors are fatal here, before the
// listener ever starts.
func (d *Definition) Resolve(log *zap.Logger) (*Resolved, error) {
	stage := d.Stage
	if stage == "" {
		stage = "prod"
	}

	authorizers := make(map[string]*gateway.Authorizer, len(d.Authorizers))
	for _, def := range d.Authorizers {
		authorizer, err := def.resolve()
		if err != nil {
			return nil, err
		}
		if _, ok := authorizers[authorizer.Name]; ok {
			return nil, errors.Errorf("duplicate authorizer %q", authorizer.Name)
		}
		authorizers[authorizer.Name] = authorizer
	}

	if d.DefaultAuthorizer != "" {
		if _, ok := authorizers[d.DefaultAuthorizer]; !ok {
			return nil, errors.Errorf("default authorizer %q is not defined", d.DefaultAuthorizer)
		}
	}

	routes := make([]*gateway.Route, 0, len(d.Routes))
	for _, def := range d.Routes {
		route, err := def.resolve(d.DefaultAuthorizer, authorizers)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)

		log.Debug("resolved route",
			zap.String("path", route.Path),
			zap.Strings("methods", route.Methods),
			zap.String("authorizer", route.AuthorizerName),
		)
	}

	return &Resolved{
		Stage:            stage,
		StageVariables:   d.StageVariables,
		BinaryMediaTypes: d.BinaryMediaTypes,
		Cors:             d.Cors,
		Routes:           routes,
		Authorizers:      authorizers,
	}, nil
}

func (d AuthorizerDef) resolve() (*gateway.Authorizer, error) {
	if d.Name == "" {
		return nil, errors.New("authorizer requires a name")
	}

	style, err := parseStyle(d.APIStyle, defaultAuthorizerStyle(d))
	if err != nil {
		return nil, errors.Wrapf(err, "authorizer %q", d.Name)
	}

	sources := make([]gateway.IdentitySource, 0, len(d.IdentitySources))
	for _, raw := range d.IdentitySources {
		source, err := gateway.ParseIdentitySource(raw, style)
		if err != nil {
			return nil, errors.Wrapf(err, "authorizer %q", d.Name)
		}
		sources = append(sources, source)
	}

	authorizer := &gateway.Authorizer{
		Name:                 d.Name,
		Type:                 gateway.AuthorizerType(strings.ToUpper(d.Type)),
		FunctionID:           d.FunctionID,
		IdentitySources:      sources,
		PayloadFormatVersion: d.PayloadFormatVersion,
		UseSimpleResponse:    d.SimpleResponses,
	}

	if d.ValidationExpression != "" {
		expr, err := gateway.CompileValidationExpression(d.ValidationExpression)
		if err != nil {
			return nil, errors.Wrapf(err, "authorizer %q has an invalid validation expression", d.Name)
		}
		authorizer.ValidationExpression = expr
	}

	if err := authorizer.Validate(); err != nil {
		return nil, err
	}

	return authorizer, nil
}

func (d RouteDef) resolve(defaultAuthorizer string, authorizers map[string]*gateway.Authorizer) (*gateway.Route, error) {
	if d.FunctionID == "" {
		return nil, errors.Errorf("route %q requires a function id", d.Path)
	}
	if d.Path == "" && !d.Default {
		return nil, errors.New("route requires a path")
	}

	style, err := parseStyle(d.APIStyle, gateway.APIStyleREST)
	if err != nil {
		return nil, errors.Wrapf(err, "route %q", d.Path)
	}

	methods := d.Methods
	if len(methods) == 0 {
		methods = []string{"ANY"}
	}

	route := &gateway.Route{
		FunctionID:           d.FunctionID,
		Path:                 d.Path,
		Methods:              methods,
		APIStyle:             style,
		PayloadFormatVersion: d.PayloadFormatVersion,
		IsDefaultRoute:       d.Default,
		OperationName:        d.OperationName,
		StackPath:            d.StackPath,
		AuthorizerName:       d.Authorizer,
		UseDefaultAuthorizer: !d.DisableDefaultAuthorizer,
	}

	if route.IsDefaultRoute && route.Path == "" {
		route.Path = "$default"
	}

	switch route.PayloadFormatVersion {
	case "", gateway.PayloadV1, gateway.PayloadV2:
	default:
		return nil, &gateway.PayloadFormatVersionError{Version: route.PayloadFormatVersion}
	}

	name := route.AuthorizerName
	if name == "" && route.UseDefaultAuthorizer {
		name = defaultAuthorizer
	}

	if name != "" {
		authorizer, ok := authorizers[name]
		if !ok {
			return nil, errors.Errorf("route %q references unknown authorizer %q", route.Path, name)
		}
		route.AuthorizerName = name
		route.Authorizer = authorizer
	}

	return route, nil
}

func parseStyle(raw string, fallback gateway.APIStyle) (gateway.APIStyle, error) {
	switch strings.ToUpper(raw) {
	case "":
		return fallback, nil
	case string(gateway.APIStyleREST):
		return gateway.APIStyleREST, nil
	case string(gateway.APIStyleHTTP):
		return gateway.APIStyleHTTP, nil
	default:
		return "", errors.Errorf("unknown api style %q", raw)
	}
}

func defaultAuthorizerStyle(d AuthorizerDef) gateway.APIStyle {
	// payload format versions only exist on HTTP-style authorizers
	if d.PayloadFormatVersion != "" {
		return gateway.APIStyleHTTP
	}
	return gateway.APIStyleREST
}
