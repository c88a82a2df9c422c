package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/gateway/schema"
	"github.com/apigate-dev/apigate/invoker"
)

// AuthorizerType selects the authorizer integration variant.
type AuthorizerType string

const (
	AuthorizerTypeToken   AuthorizerType = "TOKEN"
	AuthorizerTypeRequest AuthorizerType = "REQUEST"
)

// Authorizer describes a custom-authorizer integration. Authorizers are
// created once at load time and referenced, never copied, by routes.
type Authorizer struct {
	Name                 string
	Type                 AuthorizerType
	FunctionID           string
	IdentitySources      []IdentitySource
	PayloadFormatVersion string
	ValidationExpression *regexp.Regexp
	UseSimpleResponse    bool
}

// UsesSimpleResponse reports whether the authorizer decision is the
// minimal {isAuthorized: bool} shape, valid only under payload 2.0.
func (a *Authorizer) UsesSimpleResponse() bool {
	return a.PayloadFormatVersion == PayloadV2 && a.UseSimpleResponse
}

// Validate enforces the load-time invariants of the authorizer.
func (a *Authorizer) Validate() error {
	switch a.Type {
	case AuthorizerTypeToken:
		if len(a.IdentitySources) == 0 {
			return fmt.Errorf("%w: token authorizer %q requires an identity source", ErrInvalidSecurityDefinition, a.Name)
		}
		for _, source := range a.IdentitySources {
			if _, ok := source.(HeaderIdentitySource); !ok {
				return fmt.Errorf("%w: token authorizer %q only accepts header identity sources", ErrInvalidSecurityDefinition, a.Name)
			}
		}
	case AuthorizerTypeRequest:
	default:
		return fmt.Errorf("%w: unknown authorizer type %q", ErrInvalidSecurityDefinition, a.Type)
	}

	switch a.PayloadFormatVersion {
	case "", PayloadV1, PayloadV2:
	default:
		return &PayloadFormatVersionError{Version: a.PayloadFormatVersion}
	}

	return nil
}

// ActivationPolicy decides, from the number of resolved identity
// sources, whether a REQUEST authorizer is invoked at all. The exact
// managed-gateway rule is unconfirmed, so the policy is swappable.
// Authorizers configured without identity sources skip the gate and
// are always invoked.
type ActivationPolicy func(resolved, total int) bool

// ActivateAtLeastOne invokes the authorizer when any source resolves.
func ActivateAtLeastOne(resolved, _ int) bool { return resolved > 0 }

// ActivateAll invokes the authorizer only when every source resolves.
func ActivateAll(resolved, total int) bool { return resolved == total }

// AuthDecision is the terminal outcome of an authorized evaluation.
// A denial or shape error is returned as an error instead.
type AuthDecision struct {
	// Bypassed is set when the authorizer function does not exist and
	// the request proceeds without authorization.
	Bypassed bool

	// Context is the authorizer context to inject into the outer event.
	Context map[string]any
}

// Evaluator runs the authorizer decision step for a request.
type Evaluator struct {
	invoker    invoker.Invoker
	schema     *schema.Schema
	activation ActivationPolicy
	log        *zap.Logger
}

// EvaluatorParams defines the dependencies of the authorizer evaluator.
type EvaluatorParams struct {
	fx.In

	Invoker    invoker.Invoker
	Activation ActivationPolicy `optional:"true"`
	Log        *zap.Logger
}

func NewEvaluator(params EvaluatorParams) (*Evaluator, error) {
	responseSchema, err := schema.New()
	if err != nil {
		return nil, err
	}

	activation := params.Activation
	if activation == nil {
		activation = ActivateAtLeastOne
	}

	return &Evaluator{
		invoker:    params.Invoker,
		schema:     responseSchema,
		activation: activation,
		log:        params.Log.Named("authorizer"),
	}, nil
}

// Authorize runs the full state machine: identity source gate, event
// construction, invocation, response evaluation, context extraction.
// A denial returns an error wrapping ErrUnauthorized; a malformed
// authorizer response returns an *AuthorizerResponseError.
func (e *Evaluator) Authorize(
	ctx context.Context,
	auth *Authorizer,
	facts RequestFacts,
	route *Route,
	opts EventOptions,
) (*AuthDecision, error) {
	values, resolved := e.resolveSources(auth, facts)

	if auth.Type == AuthorizerTypeToken {
		// a token authorizer always carries at least one source; denying
		// here keeps the invariant local instead of trusting load-time
		// validation
		if len(auth.IdentitySources) == 0 || resolved != len(auth.IdentitySources) {
			return nil, fmt.Errorf("%w: missing or invalid identity source for authorizer %q", ErrUnauthorized, auth.Name)
		}
	} else if len(auth.IdentitySources) > 0 && !e.activation(resolved, len(auth.IdentitySources)) {
		return nil, fmt.Errorf("%w: no identity source resolved for authorizer %q", ErrUnauthorized, auth.Name)
	}

	methodARN := MethodARN(facts.Method, facts.RawPath, opts.Stage)

	payload, err := e.buildEvent(auth, facts, route, opts, values, methodARN)
	if err != nil {
		return nil, err
	}

	output, err := e.invoker.Invoke(ctx, auth.FunctionID, payload)
	if errors.Is(err, invoker.ErrFunctionNotFound) {
		// A missing authorizer function must not silently deny real
		// traffic: report it and proceed to the target function.
		e.log.Warn("authorizer function not found, proceeding without authorization",
			zap.String("authorizer", auth.Name),
			zap.String("function", auth.FunctionID),
		)
		return &AuthDecision{Bypassed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return e.evaluateResponse(auth, output, methodARN)
}

// resolveSources finds and validates every configured identity source,
// returning the resolved values in source order.
func (e *Evaluator) resolveSources(auth *Authorizer, facts RequestFacts) ([]string, int) {
	values := make([]string, 0, len(auth.IdentitySources))

	for _, source := range auth.IdentitySources {
		if !source.IsValid(facts, auth.ValidationExpression) {
			continue
		}
		if value, ok := source.Find(facts); ok {
			values = append(values, value)
		}
	}

	return values, len(values)
}

func (e *Evaluator) buildEvent(
	auth *Authorizer,
	facts RequestFacts,
	route *Route,
	opts EventOptions,
	values []string,
	methodARN string,
) ([]byte, error) {
	if auth.Type == AuthorizerTypeToken {
		return json.Marshal(events.APIGatewayCustomAuthorizerRequest{
			Type:               string(AuthorizerTypeToken),
			AuthorizationToken: values[0],
			MethodArn:          methodARN,
		})
	}

	if route.APIStyle == APIStyleHTTP && auth.PayloadFormatVersion != PayloadV1 {
		event, err := eventToMap(BuildV2Event(facts, route, opts))
		if err != nil {
			return nil, err
		}
		event["version"] = PayloadV2
		event["type"] = string(AuthorizerTypeRequest)
		event["routeArn"] = methodARN
		event["identitySource"] = values
		return json.Marshal(event)
	}

	event, err := eventToMap(BuildV1Event(facts, route, opts))
	if err != nil {
		return nil, err
	}
	event["type"] = string(AuthorizerTypeRequest)
	event["methodArn"] = methodARN

	if route.APIStyle == APIStyleHTTP {
		// HTTP-style payload 1.0 carries the comma-joined sources in
		// both the identitySource and authorizationToken fields.
		joined := strings.Join(values, ",")
		event["identitySource"] = joined
		event["authorizationToken"] = joined
	}

	return json.Marshal(event)
}

func (e *Evaluator) evaluateResponse(auth *Authorizer, output []byte, methodARN string) (*AuthDecision, error) {
	var body map[string]any
	if err := json.Unmarshal(output, &body); err != nil || body == nil {
		return nil, &AuthorizerResponseError{
			Authorizer: auth.Name,
			Reason:     "output is not a JSON object",
		}
	}

	if auth.UsesSimpleResponse() {
		if err := e.schema.Validate(schema.SchemaTypeSimpleResponse, body); err != nil {
			return nil, &AuthorizerResponseError{Authorizer: auth.Name, Reason: err.Error()}
		}

		if authorized, _ := body["isAuthorized"].(bool); !authorized {
			return nil, fmt.Errorf("%w: authorizer %q denied the request", ErrUnauthorized, auth.Name)
		}

		return &AuthDecision{Context: extractContext(body)}, nil
	}

	if err := e.schema.Validate(schema.SchemaTypeIAMResponse, body); err != nil {
		return nil, &AuthorizerResponseError{Authorizer: auth.Name, Reason: err.Error()}
	}

	document, _ := body["policyDocument"].(map[string]any)
	if !evaluatePolicy(document, methodARN) {
		return nil, fmt.Errorf("%w: authorizer %q policy does not allow %s", ErrUnauthorized, auth.Name, methodARN)
	}

	decisionContext := extractContext(body)
	decisionContext["principalId"] = body["principalId"]

	return &AuthDecision{Context: decisionContext}, nil
}

// extractContext pulls the context object out of an authorizer body,
// defaulting to an empty map.
func extractContext(body map[string]any) map[string]any {
	if ctx, ok := body["context"].(map[string]any); ok {
		return ctx
	}
	return map[string]any{}
}

func eventToMap(event any) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
