// Package backoff computes the delay between dispatch retry attempts.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// RNG abstracts math/rand for deterministic tests.
type RNG interface{ Float64() float64 }

type defaultRNG struct{}

func (defaultRNG) Float64() float64 { return rand.Float64() }

// Policy computes delay = min(maxDelay, baseDelay*2^attempt) + jitter, where
// jitter is uniform in [0, baseDelay). This is the exponential-backoff shape
// the dispatcher's retry loop uses between failed attempts.
type Policy struct {
	mu        sync.Mutex
	baseDelay time.Duration
	maxDelay  time.Duration
	rng       RNG
}

// New creates a backoff policy with the given base and cap.
func New(baseDelay, maxDelay time.Duration) *Policy {
	return &Policy{
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		rng:       defaultRNG{},
	}
}

// Delay returns the backoff duration for the given 1-indexed attempt count.
func (p *Policy) Delay(attempt int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if attempt < 1 {
		attempt = 1
	}

	d := p.baseDelay
	for i := 0; i < attempt && d < p.maxDelay; i++ {
		d *= 2
	}
	if d > p.maxDelay {
		d = p.maxDelay
	}

	jitter := time.Duration(p.rng.Float64() * float64(p.baseDelay))
	return d + jitter
}

// SetRNG overrides the random source, letting tests assert exact delays.
func (p *Policy) SetRNG(rng RNG) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng = rng
}
