// Package rpcclient is the caller-facing facade over the dispatch core: one
// Client wraps a DispatcherConfig, exposing Call and HealthSnapshot as the
// only operations a consumer of this library needs.
package rpcclient

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/chainrpc/dispatch/internal/config"
	"github.com/chainrpc/dispatch/internal/dispatcher"
	"github.com/chainrpc/dispatch/internal/metrics"
	"github.com/chainrpc/dispatch/internal/transport"
)

// PerEndpointHealth mirrors dispatcher.PerEndpointHealth at the public
// boundary so callers never import internal/.
type PerEndpointHealth = dispatcher.PerEndpointHealth

// RequestLogger mirrors dispatcher.RequestLogger at the public boundary.
type RequestLogger = dispatcher.RequestLogger

// Outcome mirrors dispatcher.Outcome at the public boundary.
type Outcome = dispatcher.Outcome

// Client is the library's entry point. Construct with New, then call Call
// and HealthSnapshot concurrently from any number of goroutines.
type Client struct {
	d *dispatcher.Dispatcher
}

// Option configures a Client at construction time.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	transportCfg  transport.Config
	requestLogger RequestLogger
	recorder      dispatcher.Recorder
}

// WithLogger installs a structured logger used across the dispatch core.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTransportConfig overrides the HTTP connection-pool tuning.
func WithTransportConfig(cfg transport.Config) Option {
	return func(o *options) { o.transportCfg = cfg }
}

// WithRequestLogger installs the optional observational request-logging
// hook, invoked after each Transport attempt of a Call.
func WithRequestLogger(fn RequestLogger) Option {
	return func(o *options) { o.requestLogger = fn }
}

// WithMetricsRecorder overrides the default Prometheus recorder, useful in
// tests that want to assert on emitted counters without a real registry.
func WithMetricsRecorder(r dispatcher.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// New constructs a Client from a validated DispatcherConfig.
func New(cfg config.DispatcherConfig, opts ...Option) (*Client, error) {
	o := &options{
		logger:       zap.NewNop(),
		transportCfg: transport.DefaultConfig(),
		recorder:     metrics.Recorder{},
	}
	for _, opt := range opts {
		opt(o)
	}

	t := transport.New(o.transportCfg, o.logger)
	d, err := dispatcher.New(cfg, t, o.logger, o.recorder)
	if err != nil {
		return nil, err
	}
	if o.requestLogger != nil {
		d.SetRequestLogger(o.requestLogger)
	}

	return &Client{d: d}, nil
}

// Call turns one method/params pair into one successful response or one
// terminal error, per the dispatch core's retry+failover contract.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	return c.d.Call(ctx, method, params)
}

// HealthSnapshot returns the current per-endpoint health picture.
func (c *Client) HealthSnapshot() []PerEndpointHealth {
	return c.d.HealthSnapshot()
}

// Warmup concurrently probes every enabled endpoint once before the first
// caller request, per the supplemented eager-health-check behavior.
func (c *Client) Warmup(ctx context.Context) error {
	return c.d.Warmup(ctx)
}
