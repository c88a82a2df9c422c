package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/invoker"
)

// Options carries the per-deployment configuration of the handler.
type Options struct {
	Stage          string
	StageVariables map[string]string
	BinaryTypes    []string
	CORS           *CORSConfig
	Port           int
}

// HandlerParams defines the dependencies of the gateway handler.
type HandlerParams struct {
	fx.In

	Registry  *Registry
	Evaluator *Evaluator
	Invoker   invoker.Invoker
	Options   Options
	Log       *zap.Logger
}

// Handler orchestrates a request: route match, authorizer gate, event
// construction, invocation, response parsing and CORS merging.
type Handler struct {
	registry  *Registry
	evaluator *Evaluator
	invoker   invoker.Invoker
	opts      Options
	log       *zap.Logger
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		registry:  params.Registry,
		evaluator: params.Evaluator,
		invoker:   params.Invoker,
		opts:      params.Options,
		log:       params.Log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)

	facts, err := NewRequestFacts(r, h.opts.Port)
	if err != nil {
		log.Debug("failed to read body", zap.Error(err))
		h.writeError(w, r, http.StatusBadRequest, "failed to read body")
		return
	}
	facts.Stage = h.opts.Stage
	facts.StageVariables = h.opts.StageVariables

	route, pathParams, err := h.registry.Match(facts.Method, facts.RawPath)
	if err != nil {
		// preflight requests are always routable when CORS is on,
		// even for undeclared OPTIONS routes
		if r.Method == http.MethodOptions && h.opts.CORS != nil {
			headers := w.Header()
			h.opts.CORS.Apply(headers, r.Header.Get("Origin"))
			w.WriteHeader(http.StatusOK)
			return
		}

		log.Debug("no route matched")
		h.writeError(w, r, http.StatusNotFound, "Not Found")
		return
	}
	facts.PathParams = pathParams

	eventOpts := EventOptions{
		Stage:          h.opts.Stage,
		StageVariables: h.opts.StageVariables,
		BinaryTypes:    h.opts.BinaryTypes,
	}

	var decision *AuthDecision
	if route.Authorizer != nil {
		decision, err = h.evaluator.Authorize(r.Context(), route.Authorizer, facts, route, eventOpts)
		if err != nil {
			h.writeAuthError(w, r, log, err)
			return
		}
	}

	payload, err := h.buildPayload(facts, route, eventOpts, decision)
	if err != nil {
		log.Error("failed to build event", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	output, err := h.invoker.Invoke(r.Context(), route.FunctionID, payload)
	if err != nil {
		h.writeInvokeError(w, r, log, err)
		return
	}

	var response *ParsedResponse
	if route.EventVersion() == PayloadV1 {
		response, err = ParseV1Response(output, h.opts.BinaryTypes, route.APIStyle)
	} else {
		response, err = ParseV2Response(output, h.opts.BinaryTypes)
	}
	if err != nil {
		log.Error("failed to parse function response", zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, "Internal server error")
		return
	}

	headers := w.Header()
	for name, values := range response.Headers {
		for _, value := range values {
			headers.Add(name, value)
		}
	}
	h.opts.CORS.Apply(headers, r.Header.Get("Origin"))

	w.WriteHeader(response.StatusCode)

	if _, err := w.Write(response.Body); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}

// buildPayload constructs the proxy event for the route's payload
// version and injects the authorizer context when one was produced.
func (h *Handler) buildPayload(
	facts RequestFacts,
	route *Route,
	opts EventOptions,
	decision *AuthDecision,
) ([]byte, error) {
	authorizerContext := authorizerContextFor(route, decision)

	if route.EventVersion() == PayloadV1 {
		event := BuildV1Event(facts, route, opts)
		event.RequestContext.Authorizer = authorizerContext
		return json.Marshal(event)
	}

	event := BuildV2Event(facts, route, opts)
	event.RequestContext.Authorizer = authorizerContext
	return json.Marshal(event)
}

// authorizerContextFor places the authorizer context at the style's
// injection point: requestContext.authorizer for REST and
// requestContext.authorizer.lambda for HTTP.
func authorizerContextFor(route *Route, decision *AuthDecision) map[string]any {
	if decision == nil || decision.Bypassed {
		return nil
	}

	if route.APIStyle == APIStyleREST {
		return decision.Context
	}
	return map[string]any{"lambda": decision.Context}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var responseErr *AuthorizerResponseError

	switch {
	case errors.Is(err, ErrUnauthorized):
		log.Debug("request denied by authorizer", zap.Error(err))
		h.writeError(w, r, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &responseErr):
		log.Error("invalid authorizer response", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
	default:
		log.Error("authorizer invocation failed", zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, "Internal server error")
	}
}

func (h *Handler) writeInvokeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, invoker.ErrFunctionNotFound):
		log.Error("no function registered for route", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "No function defined for resource")
	case errors.Is(err, invoker.ErrUnsupportedCode):
		log.Error("function code not supported", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
	default:
		log.Error("function invocation failed", zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, "Internal server error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	headers := w.Header()
	headers.Set("Content-Type", "application/json")
	h.opts.CORS.Apply(headers, r.Header.Get("Origin"))

	w.WriteHeader(status)

	body, _ := json.Marshal(map[string]string{"message": message})
	w.Write(body)
}
