// Package dispatcher implements the retry + failover control loop: the
// Dispatcher is the control plane that turns one caller call(method, params)
// into one successful response or one terminal error.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/chainrpc/dispatch/internal/backoff"
	"github.com/chainrpc/dispatch/internal/config"
	"github.com/chainrpc/dispatch/internal/health"
	"github.com/chainrpc/dispatch/internal/ratelimit"
	"github.com/chainrpc/dispatch/internal/rpcerr"
	"github.com/chainrpc/dispatch/internal/selector"
	"github.com/chainrpc/dispatch/internal/transport"
)

// Transporter is the capability the Dispatcher depends on: given an
// endpoint URL, method, params, and timeout, return a result or a typed
// error. This keeps the retry/failover logic testable with a scripted
// implementation that yields a chosen sequence of outcomes per endpoint,
// instead of coupling the Dispatcher to the concrete HTTP transport.
type Transporter interface {
	Call(ctx context.Context, url, method string, params json.RawMessage, timeout time.Duration) (*transport.Result, error)
}

// PerEndpointHealth is the caller-facing health snapshot for one endpoint.
type PerEndpointHealth struct {
	URL            string
	SuccessCount   int64
	FailureCount   int64
	AvgMs          float64
	LastSuccessAge time.Duration
	LastFailureAge time.Duration
	Healthy        bool
}

// Outcome captures a single Transport attempt for the optional request
// logging hook; it carries only observational data, never the hot path.
type Outcome struct {
	Endpoint string
	Method   string
	Success  bool
	Elapsed  time.Duration
	ErrKind  string
}

// RequestLogger is invoked after each Transport attempt of a Call, failed or
// successful. Implementations
// must not block the dispatch loop; they run outside any lock.
type RequestLogger func(Outcome)

// Dispatcher owns DispatcherConfig and the Transport exclusively; the Health
// Registry is shared by reference with the Selector.
type Dispatcher struct {
	cfg       config.DispatcherConfig
	transport Transporter
	registry  *health.Registry
	selector  *selector.Selector
	limiters  []*ratelimit.Limiter
	breakers  []*gobreaker.CircuitBreaker
	backoffs  *backoff.Policy
	logger    *zap.Logger
	reqLogger RequestLogger
	metrics   Recorder
}

// Recorder receives observable dispatch-core events for counters/histograms.
// Implementations must not perform I/O synchronously on the hot path beyond
// what a metrics client itself buffers.
type Recorder interface {
	ObserveAttempt(endpoint string, success bool, elapsed time.Duration)
	ObserveRetry(endpoint string)
	SetHealthy(endpoint string, healthy bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, bool, time.Duration) {}
func (nopRecorder) ObserveRetry(string)                        {}
func (nopRecorder) SetHealthy(string, bool)                    {}

// errCircuitOpen marks a rejection that never reached Transport: the caller
// compares by identity so it can skip the Health Registry and metrics
// writes that are reserved for real Transport outcomes.
var errCircuitOpen = rpcerr.New(rpcerr.Connection, "circuit breaker open")

// New builds a Dispatcher from a validated config. Fails with the same
// construction-time errors DispatcherConfig.Validate would produce.
func New(cfg config.DispatcherConfig, t Transporter, logger *zap.Logger, metrics Recorder) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}

	registry := health.New(len(cfg.Endpoints), cfg.FreshnessWindow, logger)

	weights := make([]int, len(cfg.Endpoints))
	limiters := make([]*ratelimit.Limiter, len(cfg.Endpoints))
	breakers := make([]*gobreaker.CircuitBreaker, len(cfg.Endpoints))
	for i, e := range cfg.Endpoints {
		weights[i] = e.Weight

		maxRPS := cfg.RateLimit.MaxRPS
		burst := cfg.RateLimit.BurstSize
		if e.RequestsPerSecond != nil {
			maxRPS = *e.RequestsPerSecond
			burst = *e.RequestsPerSecond
		}
		lim, err := ratelimit.New(maxRPS, burst)
		if err != nil {
			return nil, err
		}
		limiters[i] = lim

		idx := i
		breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("endpoint-%d", idx),
			MaxRequests: 1,
			Interval:    0,
			Timeout:     cfg.FreshnessWindow,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("circuit breaker state change",
					zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}

	return &Dispatcher{
		cfg:       cfg,
		transport: t,
		registry:  registry,
		selector:  selector.New(registry, weights),
		limiters:  limiters,
		breakers:  breakers,
		backoffs:  backoff.New(cfg.BaseDelay, cfg.MaxDelay),
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// SetRequestLogger installs the optional observational request-logging hook.
func (d *Dispatcher) SetRequestLogger(fn RequestLogger) { d.reqLogger = fn }

// Call dispatches one RPC method/params through the retry+failover loop
// described by the control plane contract: select, acquire, transport,
// record, iterating up to max_retries times with no recursion.
func (d *Dispatcher) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	tried := make(map[int]bool)
	perEndpointErrs := make(map[int]error)
	start := time.Now()

	var lastErr error
	for attempts := 0; ; {
		ep, err := d.selector.Next(tried)
		if err != nil {
			// No healthy endpoint is left outside tried: fall back to the least-recently-
			// tried enabled endpoint this call has not tried; a lone endpoint is retried.
			ep = -1
			var oldest time.Time
			for i, s := range d.registry.Snapshot() {
				last := s.LastFailure
				if s.LastSuccess.After(last) {
					last = s.LastSuccess
				}
				if (!tried[i] || len(d.cfg.Endpoints) == 1) && d.cfg.Endpoints[i].Enabled && (ep == -1 || last.Before(oldest)) {
					ep, oldest = i, last
				}
			}
			if ep == -1 {
				return nil, rpcerr.NewAllEndpointsFailed(perEndpointErrs)
			}
		}

		// Gate on the breaker before spending a rate-limit permit: an open
		// breaker means this endpoint is skipped without ever reaching
		// Transport, so it must not debit the bucket or count as a
		// recorded Health Registry failure.
		if d.breakers[ep].State() == gobreaker.StateOpen {
			tried[ep] = true
			perEndpointErrs[ep] = errCircuitOpen
			lastErr = errCircuitOpen
			attempts++
			if attempts >= d.cfg.MaxRetries {
				return nil, rpcerr.NewRetryExhausted(lastErr)
			}
			continue
		}

		if err := d.limiters[ep].Acquire(ctx); err != nil {
			return nil, err
		}

		url := d.cfg.Endpoints[ep].URL
		result, err := d.attempt(ctx, ep, url, method, params)
		if err == nil {
			d.logOutcome(url, method, true, time.Since(start), "")
			return result.Body, nil
		}

		rErr, ok := err.(*rpcerr.Error)
		if !ok {
			rErr = rpcerr.Wrap(rpcerr.Connection, "unexpected error", err)
		}
		if rErr != errCircuitOpen {
			_ = d.registry.RecordFailure(ep, rErr.Error())
		}
		perEndpointErrs[ep] = rErr
		lastErr = rErr
		d.logOutcome(url, method, false, time.Since(start), rErr.Kind.String())

		if rErr.IsRateLimit() {
			d.limiters[ep].DebitOneSecond()
		}

		if !rErr.IsRetryable() {
			return nil, rErr
		}

		attempts++
		if attempts >= d.cfg.MaxRetries {
			if rErr.IsRateLimit() {
				return nil, rpcerr.Wrap(rpcerr.RateLimited, "retry budget exhausted on HTTP 429", rErr)
			}
			return nil, rpcerr.NewRetryExhausted(lastErr)
		}
		tried[ep] = true
		d.metrics.ObserveRetry(url)

		delay := d.backoffs.Delay(attempts)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, rpcerr.Wrap(rpcerr.Timeout, "context cancelled during backoff", ctx.Err())
		case <-timer.C:
		}
	}
}

// attempt runs a single Transport invocation through the endpoint's circuit
// breaker and records a success in the Health Registry; recording a failure
// is left to the caller.
func (d *Dispatcher) attempt(ctx context.Context, ep int, url, method string, params json.RawMessage) (*transport.Result, error) {
	out, err := d.breakers[ep].Execute(func() (interface{}, error) {
		return d.transport.Call(ctx, url, method, params, d.cfg.RequestTimeout)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// Rejected before Transport ran (the breaker tripped between the
			// pre-check in Call and this Execute); not a Transport outcome.
			return nil, errCircuitOpen
		}
		d.metrics.ObserveAttempt(url, false, 0)
		return nil, err
	}

	result := out.(*transport.Result)
	d.metrics.ObserveAttempt(url, true, result.Elapsed)
	_ = d.registry.RecordSuccess(ep, result.Elapsed, result.BytesReceived)
	return result, nil
}

func (d *Dispatcher) logOutcome(url, method string, success bool, elapsed time.Duration, errKind string) {
	if d.reqLogger == nil {
		return
	}
	d.reqLogger(Outcome{Endpoint: url, Method: method, Success: success, Elapsed: elapsed, ErrKind: errKind})
}

// HealthSnapshot returns the caller-facing per-endpoint health picture.
func (d *Dispatcher) HealthSnapshot() []PerEndpointHealth {
	stats := d.registry.Snapshot()
	now := time.Now()
	out := make([]PerEndpointHealth, len(stats))
	for i, s := range stats {
		healthy, _ := d.registry.IsHealthy(i)
		d.metrics.SetHealthy(d.cfg.Endpoints[i].URL, healthy)
		lastSuccessAge := time.Duration(0)
		if !s.LastSuccess.IsZero() {
			lastSuccessAge = now.Sub(s.LastSuccess)
		}
		lastFailureAge := time.Duration(0)
		if !s.LastFailure.IsZero() {
			lastFailureAge = now.Sub(s.LastFailure)
		}
		out[i] = PerEndpointHealth{
			URL:            d.cfg.Endpoints[i].URL,
			SuccessCount:   s.Successes,
			FailureCount:   s.Failures,
			AvgMs:          s.AvgResponseMs,
			LastSuccessAge: lastSuccessAge,
			LastFailureAge: lastFailureAge,
			Healthy:        healthy,
		}
	}
	return out
}

// Warmup concurrently probes every enabled endpoint once so HealthSnapshot
// reflects real data before the first caller request. Bounded by an
// errgroup; no background goroutine is left running afterward.
func (d *Dispatcher) Warmup(ctx context.Context) error {
	return warmup(ctx, d)
}
