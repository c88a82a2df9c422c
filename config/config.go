package config

import (
	"github.com/apigate-dev/apigate/invoker"
	"github.com/apigate-dev/apigate/util/conf"
)

// Config is the application configuration, populated from defaults,
// environment variables and CLI flags.
type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Server is the HTTP listener configuration
	Server ServerConfig `conf:"server"`

	// Gateway is the emulator configuration
	Gateway GatewayConfig `conf:"gateway"`

	// Invoker is the function invocation backend configuration
	Invoker InvokerConfig `conf:"invoker"`
}

type ServerConfig struct {
	Host string `conf:"host"`
	Port int    `conf:"port"`
	H2c  bool   `conf:"h2c"`
}

type GatewayConfig struct {
	// APIFile is the path of the API definition file
	APIFile string `conf:"api_file"`

	// StageVariablesFile is an optional dotenv file of stage variables,
	// merged over the ones declared in the API definition
	StageVariablesFile string `conf:"stage_variables_file"`
}

type InvokerConfig struct {
	// HTTP configures the per-function invocation endpoints
	HTTP invoker.HTTPConfig `conf:"http"`

	// MaxConcurrency caps concurrent in-flight invocations
	MaxConcurrency int `conf:"max_concurrency"`
}

var DefaultConfig = conf.DefaultConfig{
	"log_level":               "info",
	"log_format":              "production",
	"server.host":             "127.0.0.1",
	"server.port":             3000,
	"invoker.max_concurrency": 16,
}
