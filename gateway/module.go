package gateway

import (
	"net/http"

	"go.uber.org/fx"

	"github.com/apigate-dev/apigate/internal/server"
	"github.com/apigate-dev/apigate/util/logging"
)

// Module provides the gateway handler and authorizer evaluator.
func Module() fx.Option {
	return fx.Module(
		"gateway",

		logging.DecorateLogger("gateway"),

		// provide authorizer evaluator
		fx.Provide(NewEvaluator),

		// provide gateway handler
		fx.Provide(NewHandler),

		// mount the handler at the root of the server
		fx.Provide(NewGatewayRoute),

		// liveness endpoint outside the gateway route namespace
		fx.Provide(NewHealthRoute),
	)
}

// NewGatewayRoute mounts the gateway handler at the server root so it
// owns every path and method declared in the route set.
func NewGatewayRoute(handler *Handler) server.HttpHandlerResult {
	return server.AsHttpHandler("/", handler)
}

// NewHealthRoute mounts the liveness endpoint. Its path takes
// precedence over the catch-all gateway handler.
func NewHealthRoute() server.HttpHandlerResult {
	return server.AsHttpHandler("/_gateway/health", http.HandlerFunc(server.HealthHandler))
}
