package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainrpc/dispatch/internal/rpcerr"
)

func TestCallSuccessDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	res, err := tr.Call(context.Background(), srv.URL, "getHeight", json.RawMessage("[]"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42", string(res.Body))
}

func TestCallNonRetryableHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	_, err := tr.Call(context.Background(), srv.URL, "m", json.RawMessage("[]"), time.Second)
	require.Error(t, err)

	rErr, ok := err.(*rpcerr.Error)
	require.True(t, ok)
	assert.Equal(t, rpcerr.HTTPStatus, rErr.Kind)
	assert.Equal(t, 400, rErr.StatusCode)
	assert.False(t, rErr.IsRetryable())
}

func TestCallRetryableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	_, err := tr.Call(context.Background(), srv.URL, "m", json.RawMessage("[]"), time.Second)
	require.Error(t, err)

	rErr := err.(*rpcerr.Error)
	assert.True(t, rErr.IsRetryable())
}

func TestCallRemoteRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"execution reverted"}}`))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	_, err := tr.Call(context.Background(), srv.URL, "m", json.RawMessage("[]"), time.Second)
	require.Error(t, err)

	rErr := err.(*rpcerr.Error)
	assert.Equal(t, rpcerr.RemoteRPCError, rErr.Kind)
	assert.False(t, rErr.IsRetryable())
}

func TestCallMalformedEnvelopeIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	_, err := tr.Call(context.Background(), srv.URL, "m", json.RawMessage("[]"), time.Second)
	require.Error(t, err)

	rErr := err.(*rpcerr.Error)
	assert.Equal(t, rpcerr.Decode, rErr.Kind)
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer srv.Close()

	tr := New(DefaultConfig(), nil)
	_, err := tr.Call(context.Background(), srv.URL, "m", json.RawMessage("[]"), 10*time.Millisecond)
	require.Error(t, err)

	rErr := err.(*rpcerr.Error)
	assert.Equal(t, rpcerr.Timeout, rErr.Kind)
}
