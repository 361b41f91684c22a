package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainrpc/dispatch/internal/config"
)

func TestClientCallAgainstRealHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"pong"}`))
	}))
	defer srv.Close()

	cfg := config.DispatcherConfig{
		Endpoints:       []config.EndpointConfig{{URL: srv.URL, Weight: 1, Enabled: true}},
		MaxRetries:      3,
		BaseDelay:       10 * time.Millisecond,
		MaxDelay:        100 * time.Millisecond,
		RequestTimeout:  time.Second,
		RateLimit:       config.RateLimitConfig{MaxRPS: 50, BurstSize: 50},
		FreshnessWindow: 30 * time.Second,
	}

	client, err := New(cfg)
	require.NoError(t, err)

	result, err := client.Call(context.Background(), "ping", json.RawMessage("[]"))
	require.NoError(t, err)
	assert.Equal(t, `"pong"`, string(result))

	snap := client.HealthSnapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Healthy)
}

func TestClientWarmupPopulatesHealthBeforeFirstCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer srv.Close()

	cfg := config.DispatcherConfig{
		Endpoints:       []config.EndpointConfig{{URL: srv.URL, Weight: 1, Enabled: true}},
		MaxRetries:      3,
		BaseDelay:       10 * time.Millisecond,
		MaxDelay:        100 * time.Millisecond,
		RequestTimeout:  time.Second,
		RateLimit:       config.RateLimitConfig{MaxRPS: 50, BurstSize: 50},
		FreshnessWindow: 30 * time.Second,
	}

	client, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Warmup(context.Background()))

	snap := client.HealthSnapshot()
	assert.EqualValues(t, 1, snap[0].SuccessCount)
}

func TestClientRequestLoggerHookInvoked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer srv.Close()

	cfg := config.DispatcherConfig{
		Endpoints:       []config.EndpointConfig{{URL: srv.URL, Weight: 1, Enabled: true}},
		MaxRetries:      3,
		BaseDelay:       10 * time.Millisecond,
		MaxDelay:        100 * time.Millisecond,
		RequestTimeout:  time.Second,
		RateLimit:       config.RateLimitConfig{MaxRPS: 50, BurstSize: 50},
		FreshnessWindow: 30 * time.Second,
	}

	var observed []Outcome
	client, err := New(cfg, WithRequestLogger(func(o Outcome) { observed = append(observed, o) }))
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "ping", json.RawMessage("[]"))
	require.NoError(t, err)

	require.Len(t, observed, 1)
	assert.True(t, observed[0].Success)
}
