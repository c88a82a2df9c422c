package invoker_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apigate-dev/apigate/invoker"
)

func TestHTTPInvoker_Invoke(t *testing.T) {
	var gotPath string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"statusCode": 200}`))
	}))
	defer server.Close()

	inv := invoker.NewHTTPInvoker(invoker.HTTPConfig{
		Endpoints: map[string]string{"hello-fn": server.URL},
	}, zap.NewNop())

	output, err := inv.Invoke(context.Background(), "hello-fn", []byte(`{"path":"/hello"}`))
	require.NoError(t, err)

	assert.Equal(t, "/2015-03-31/functions/function/invocations", gotPath)
	assert.Equal(t, `{"path":"/hello"}`, string(gotBody))
	assert.Equal(t, `{"statusCode": 200}`, string(output))
}

func TestHTTPInvoker_UnknownFunction(t *testing.T) {
	inv := invoker.NewHTTPInvoker(invoker.HTTPConfig{}, zap.NewNop())

	_, err := inv.Invoke(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, invoker.ErrFunctionNotFound)
}

func TestHTTPInvoker_EndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	inv := invoker.NewHTTPInvoker(invoker.HTTPConfig{
		Endpoints: map[string]string{"hello-fn": server.URL},
	}, zap.NewNop())

	_, err := inv.Invoke(context.Background(), "hello-fn", nil)
	require.Error(t, err)

	var invErr *invoker.InvocationError
	assert.ErrorAs(t, err, &invErr)
	assert.Equal(t, "hello-fn", invErr.FunctionID)
}

func TestHTTPInvoker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	inv := invoker.NewHTTPInvoker(invoker.HTTPConfig{
		Endpoints: map[string]string{"hello-fn": server.URL},
		Timeout:   50 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "hello-fn", nil)

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPInvoker_TrailingSlashEndpoint(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	inv := invoker.NewHTTPInvoker(invoker.HTTPConfig{
		Endpoints: map[string]string{"hello-fn": server.URL + "/"},
	}, zap.NewNop())

	_, err := inv.Invoke(context.Background(), "hello-fn", nil)
	require.NoError(t, err)
	assert.Equal(t, "/2015-03-31/functions/function/invocations", gotPath)
}
