package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// invocationPath is the runtime-interface-emulator invocation endpoint
// exposed by locally running function containers.
const invocationPath = "/2015-03-31/functions/function/invocations"

// HTTPConfig configures the HTTP invoker.
type HTTPConfig struct {
	// Endpoints maps function ids to the base URL of the container
	// serving that function.
	Endpoints map[string]string `conf:"endpoints"`

	// Timeout is the per-invocation deadline.
	Timeout time.Duration `conf:"timeout"`
}

// HTTPInvoker dispatches events to per-function HTTP endpoints speaking
// the runtime interface emulator protocol.
type HTTPInvoker struct {
	endpoints map[string]string
	timeout   time.Duration
	client    *http.Client
	log       *zap.Logger
}

var _ Invoker = (*HTTPInvoker)(nil)

func NewHTTPInvoker(config HTTPConfig, log *zap.Logger) *HTTPInvoker {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPInvoker{
		endpoints: config.Endpoints,
		timeout:   timeout,
		client:    &http.Client{},
		log:       log.Named("invoker"),
	}
}

func (i *HTTPInvoker) Invoke(ctx context.Context, functionID string, payload []byte) ([]byte, error) {
	base, ok := i.endpoints[functionID]
	if !ok {
		return nil, fmt.Errorf("%q: %w", functionID, ErrFunctionNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	url := strings.TrimSuffix(base, "/") + invocationPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &InvocationError{FunctionID: functionID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	i.log.Debug("invoking function",
		zap.String("function", functionID),
		zap.String("url", url),
	)

	res, err := i.client.Do(req)
	if err != nil {
		return nil, &InvocationError{FunctionID: functionID, Err: err}
	}
	defer res.Body.Close()

	output, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &InvocationError{FunctionID: functionID, Err: err}
	}

	if res.StatusCode != http.StatusOK {
		return nil, &InvocationError{
			FunctionID: functionID,
			Err:        fmt.Errorf("endpoint returned status %d", res.StatusCode),
		}
	}

	return output, nil
}
