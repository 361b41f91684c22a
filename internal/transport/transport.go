// Package transport implements the JSON-RPC-over-HTTP transport: a single
// connection-pooled HTTP client shared across endpoints. Transport is
// purely functional from the Dispatcher's perspective — no retries, no
// endpoint selection, no rate limiting live here.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chainrpc/dispatch/internal/netkit"
	"github.com/chainrpc/dispatch/internal/rpcerr"
)

// envelopeRequest is the wire request body, §6.
type envelopeRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// envelopeResponse is the wire response body, §6. Either Result or Error is
// populated, never both.
type envelopeResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Result carries a successful Transport outcome back to the Dispatcher.
type Result struct {
	Body          json.RawMessage
	BytesReceived int64
	Elapsed       time.Duration
}

// Transport is the shared HTTP client pool.
type Transport struct {
	client *http.Client
	logger *zap.Logger
	nextID int64
}

// Config tunes the underlying connection pool.
type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	DialTimeout         time.Duration
}

// DefaultConfig mirrors the pooling defaults the teacher's HTTP client used.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         10 * time.Second,
	}
}

// New builds a Transport with a single shared, tuned http.Transport. The
// pool is installed once at startup and never replaced.
func New(cfg Config, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := netkit.NewDialer(&netkit.ConnectionConfig{
		Timeout:       cfg.DialTimeout,
		KeepAlive:     30 * time.Second,
		NoDelay:       true,
		HappyEyeballs: false,
	}, logger)

	rt := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Transport{
		client: &http.Client{Transport: rt},
		logger: logger,
	}
}

// Call issues one JSON-RPC request to url and enforces the per-attempt
// timeout. It never retries and never selects an endpoint; the Dispatcher
// owns those concerns.
func (t *Transport) Call(ctx context.Context, url, method string, params json.RawMessage, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := atomic.AddInt64(&t.nextID, 1)
	reqBody, err := json.Marshal(envelopeRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.Decode, "marshal request envelope", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.Connection, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, rpcerr.Wrap(rpcerr.Timeout, "request deadline exceeded", err)
		}
		return nil, rpcerr.Wrap(rpcerr.Connection, "http request failed", err)
	}
	defer resp.Body.Close()

	const maxSnippet = 256
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.Decode, "read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet]
		}
		return nil, rpcerr.NewHTTPStatus(resp.StatusCode, snippet)
	}

	var env envelopeResponse
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, rpcerr.Wrap(rpcerr.Decode, "malformed json-rpc envelope", err)
	}
	if env.Error != nil {
		return nil, rpcerr.NewRemoteRPCError(env.Error.Code, env.Error.Message)
	}
	if env.Result == nil {
		return nil, rpcerr.New(rpcerr.Decode, "envelope missing both result and error")
	}

	return &Result{
		Body:          env.Result,
		BytesReceived: int64(len(respBody)),
		Elapsed:       elapsed,
	}, nil
}

func (t *Transport) String() string {
	return fmt.Sprintf("transport(requests=%d)", atomic.LoadInt64(&t.nextID))
}
