// Package invoker defines the function-invocation backend consumed by
// the gateway, plus local implementations of it.
package invoker

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFunctionNotFound indicates that no function is registered for
	// the requested function id.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrUnsupportedCode indicates that the function exists but its
	// code cannot be executed by the backend.
	ErrUnsupportedCode = errors.New("unsupported function code")
)

// Invoker executes a function with a JSON event payload and returns the
// raw JSON output. Implementations must honor the context deadline and
// be safe for concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, functionID string, payload []byte) ([]byte, error)
}

// InvocationError wraps a generic execution failure of a function.
type InvocationError struct {
	FunctionID string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of function %q failed: %v", e.FunctionID, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
