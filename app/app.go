package app

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/apidef"
	"github.com/apigate-dev/apigate/config"
	"github.com/apigate-dev/apigate/gateway"
	"github.com/apigate-dev/apigate/internal/shell"
	"github.com/apigate-dev/apigate/invoker"
	"github.com/apigate-dev/apigate/util/conf"
	"github.com/apigate-dev/apigate/util/logging"
)

// New assembles the application shell shared by every command: global
// config, the resolved API definition, the invoker chain and the
// gateway components.
func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(cfg),
		// provide resolved api definition
		fx.Provide(loadDefinition),
		// provide route registry
		fx.Provide(newRegistry),
		// provide gateway options
		fx.Provide(newGatewayOptions),
		// provide function invoker
		fx.Provide(newInvoker),
	)

	return shell.New(log, sharedModule), nil
}

func loadDefinition(cfg config.Config, log *zap.Logger) (*apidef.Resolved, error) {
	def, err := apidef.Load(cfg.Gateway.APIFile)
	if err != nil {
		return nil, err
	}

	resolved, err := def.Resolve(log)
	if err != nil {
		return nil, err
	}

	if cfg.Gateway.StageVariablesFile != "" {
		variables, err := apidef.LoadStageVariables(cfg.Gateway.StageVariablesFile)
		if err != nil {
			return nil, err
		}

		if resolved.StageVariables == nil {
			resolved.StageVariables = make(map[string]string, len(variables))
		}
		for key, value := range variables {
			resolved.StageVariables[key] = value
		}
	}

	return resolved, nil
}

func newRegistry(resolved *apidef.Resolved, log *zap.Logger) (*gateway.Registry, error) {
	return gateway.NewRegistry(resolved.Routes, log)
}

func newGatewayOptions(cfg config.Config, resolved *apidef.Resolved) gateway.Options {
	return gateway.Options{
		Stage:          resolved.Stage,
		StageVariables: resolved.StageVariables,
		BinaryTypes:    resolved.BinaryMediaTypes,
		CORS:           resolved.Cors,
		Port:           cfg.Server.Port,
	}
}

func newInvoker(cfg config.Config, log *zap.Logger) (invoker.Invoker, error) {
	httpInvoker := invoker.NewHTTPInvoker(cfg.Invoker.HTTP, log)

	if cfg.Invoker.MaxConcurrency <= 0 {
		return httpInvoker, nil
	}

	return invoker.NewPooledInvoker(httpInvoker, int32(cfg.Invoker.MaxConcurrency), log)
}
