package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/apigate-dev/apigate/app"
	"github.com/apigate-dev/apigate/config"
	"github.com/apigate-dev/apigate/gateway"
	"github.com/apigate-dev/apigate/internal/server"
	"github.com/apigate-dev/apigate/util/conf"
	"github.com/apigate-dev/apigate/util/logging"
)

var (
	serveCmdDescription = `The serve command loads the API definition, binds the local
	HTTP listener and emulates the gateway integration for every
	declared route: requests are matched, translated into proxy
	integration events, dispatched to the configured function
	endpoints and the function output is translated back into
	HTTP responses.

	The command blocks indefinitely, processing incoming http
	requests.`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start the local gateway emulator.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "127.0.0.1",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    3000,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
			&cli.PathFlag{
				Name:     "api-file",
				Aliases:  []string{"f"},
				Usage:    "The API definition file to serve.",
				Required: true,
				Category: "gateway",
				EnvVars:  []string{"GATEWAY_API_FILE"},
			},
			&cli.PathFlag{
				Name:     "stage-variables-file",
				Usage:    "A dotenv file of stage variables.",
				Category: "gateway",
				EnvVars:  []string{"GATEWAY_STAGE_VARIABLES_FILE"},
			},
			&cli.StringSliceFlag{
				Name:     "function",
				Aliases:  []string{"F"},
				Usage:    "Register a function endpoint as <function-id>=<base-url>.",
				Category: "invoker",
				EnvVars:  []string{"INVOKER_FUNCTIONS"},
			},
			&cli.DurationFlag{
				Name:     "invoke-timeout",
				Usage:    "The per-invocation deadline.",
				Value:    30 * time.Second,
				Category: "invoker",
				EnvVars:  []string{"INVOKER_TIMEOUT"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	// re-parse the config with the command flags layered on top
	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Defaults:  config.DefaultConfig,
		EnvPrefix: "APIGATE__",
		Cli:       ctx,
		CliMap: map[string]string{
			"host":                 "server.host",
			"port":                 "server.port",
			"h2c":                  "server.h2c",
			"api-file":             "gateway.api_file",
			"stage-variables-file": "gateway.stage_variables_file",
			"invoke-timeout":       "invoker.http.timeout",
		},
		Log: log,
	})
	if err != nil {
		return err
	}

	if functions := ctx.StringSlice("function"); len(functions) > 0 {
		endpoints := make(map[string]string, len(functions))
		for _, function := range functions {
			id, url, ok := strings.Cut(function, "=")
			if !ok {
				return fmt.Errorf("invalid function endpoint %q, expected <function-id>=<base-url>", function)
			}
			endpoints[id] = url
		}
		cfg.Invoker.HTTP.Endpoints = endpoints
	}

	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	httpConfig := server.HttpConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		H2c:  cfg.Server.H2c,
	}

	return app.Run(ctx.Context, gateway.Module(), server.Module(httpConfig))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}
