// Package ratelimit implements the per-endpoint token bucket used to gate
// outbound requests before they reach Transport.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/chainrpc/dispatch/internal/rpcerr"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the construction
// contract spec'd for the dispatch core: zero rate or zero burst is a
// configuration error, not a runtime condition.
type Limiter struct {
	rl     *rate.Limiter
	maxRPS int
	burst  int
}

// New constructs a Limiter refilling at maxRPS tokens/second, capped at
// burst. Fails with InvalidConfig when either is zero.
func New(maxRPS, burst int) (*Limiter, error) {
	if maxRPS <= 0 {
		return nil, rpcerr.New(rpcerr.InvalidConfig, "max_rps must be > 0")
	}
	if burst <= 0 {
		return nil, rpcerr.New(rpcerr.InvalidConfig, "burst_size must be > 0")
	}
	return &Limiter{
		rl:     rate.NewLimiter(rate.Limit(maxRPS), burst),
		maxRPS: maxRPS,
		burst:  burst,
	}, nil
}

// Acquire blocks until one token is available, then consumes it. It returns
// promptly when tokens are available and suspends on ctx/timer otherwise;
// it never blocks an OS thread, only the calling goroutine.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.rl.Wait(ctx); err != nil {
		return rpcerr.Wrap(rpcerr.Timeout, "rate limiter wait", err)
	}
	return nil
}

// DebitOneSecond pushes the bucket's next refill out by roughly one second,
// modeled as a one-time debit of max_rps tokens (clamped so the debit never
// exceeds burst). Used after an HTTP 429 per the dispatcher's retry policy.
func (l *Limiter) DebitOneSecond() {
	n := l.maxRPS
	if n > l.burst {
		n = l.burst
	}
	res := l.rl.ReserveN(time.Now(), n)
	if !res.OK() {
		res.Cancel()
	}
}

// MaxRPS returns the configured refill rate.
func (l *Limiter) MaxRPS() int { return l.maxRPS }

// Burst returns the configured bucket capacity.
func (l *Limiter) Burst() int { return l.burst }
