// Package health implements the Health Registry: per-endpoint rolling stats
// and the derived health verdict used by the selector. Adapted from the
// teacher's endpoint-throttle scoring model, trimmed to the exact formulas
// a caller of this package is contractually owed.
package health

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/chainrpc/dispatch/internal/rpcerr"
)

// recentErrorsCap bounds the per-endpoint history of recent error messages
// kept alongside the single last_error_message field, so long-running
// processes never accumulate unbounded error text.
const recentErrorsCap = 32

// Stats is a point-in-time, race-free copy of one endpoint's counters.
type Stats struct {
	Successes        int64
	Failures         int64
	AvgResponseMs    float64
	BytesTransferred int64
	LastSuccess      time.Time
	LastFailure      time.Time
	LastErrorMessage string
}

type entry struct {
	successes        int64
	failures         int64
	avgResponseMs    float64
	bytesTransferred int64
	lastSuccess      time.Time
	lastFailure      time.Time
	lastErrorMessage string
}

func (e *entry) snapshot() Stats {
	return Stats{
		Successes:        e.successes,
		Failures:         e.failures,
		AvgResponseMs:    e.avgResponseMs,
		BytesTransferred: e.bytesTransferred,
		LastSuccess:      e.lastSuccess,
		LastFailure:      e.lastFailure,
		LastErrorMessage: e.lastErrorMessage,
	}
}

// Registry maintains EndpointStats for every configured endpoint under a
// single lock. Readers take a read-hold; writers are serialized. No I/O is
// ever performed while the lock is held.
type Registry struct {
	mu        sync.RWMutex
	entries   []*entry
	errHist   []*lru.Cache // parallel to entries, recent error messages per endpoint
	freshness time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// New creates a Registry sized for n endpoints with freshness window w.
func New(n int, freshnessWindow time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		entries:   make([]*entry, n),
		errHist:   make([]*lru.Cache, n),
		freshness: freshnessWindow,
		clock:     time.Now,
		logger:    logger,
	}
	for i := range r.entries {
		r.entries[i] = &entry{}
		c, _ := lru.New(recentErrorsCap)
		r.errHist[i] = c
	}
	return r
}

func (r *Registry) valid(i int) bool { return i >= 0 && i < len(r.entries) }

// RecordSuccess increments successes, rolls avg_response_ms as a running
// mean over all successful attempts for endpoint i, adds to
// bytes_transferred, and sets last_success = now.
func (r *Registry) RecordSuccess(i int, responseTime time.Duration, bytes int64) error {
	if !r.valid(i) {
		return rpcerr.NewInvalidEndpoint(i)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[i]
	ms := float64(responseTime.Microseconds()) / 1000.0
	e.successes++
	e.avgResponseMs += (ms - e.avgResponseMs) / float64(e.successes)
	e.bytesTransferred += bytes
	e.lastSuccess = r.clock()
	return nil
}

// RecordFailure increments failures, sets last_failure = now, and stores
// errMsg as last_error_message (also appended to the bounded recent-error
// history).
func (r *Registry) RecordFailure(i int, errMsg string) error {
	if !r.valid(i) {
		return rpcerr.NewInvalidEndpoint(i)
	}
	r.mu.Lock()
	e := r.entries[i]
	e.failures++
	e.lastFailure = r.clock()
	e.lastErrorMessage = errMsg
	r.errHist[i].Add(e.failures, errMsg)
	failures := e.failures
	r.mu.Unlock()

	r.logger.Warn("endpoint recorded failure",
		zap.Int("endpoint", i),
		zap.String("error", errMsg),
		zap.Int64("failures", failures))
	return nil
}

// Snapshot returns a deep copy of all stats, safe to read without the lock.
func (r *Registry) Snapshot() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Stats, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.snapshot()
	}
	return out
}

// IsHealthy reports whether endpoint i has no recorded attempts yet (grace
// period) or its last_success is within the freshness window.
func (r *Registry) IsHealthy(i int) (bool, error) {
	if !r.valid(i) {
		return false, rpcerr.NewInvalidEndpoint(i)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isHealthyLocked(i), nil
}

func (r *Registry) isHealthyLocked(i int) bool {
	e := r.entries[i]
	if e.successes == 0 && e.failures == 0 {
		return true
	}
	if e.lastSuccess.IsZero() {
		return false
	}
	return r.clock().Sub(e.lastSuccess) <= r.freshness
}

// Score computes the health score: success_rate * (1000/(avg_response_ms+1))
// * staleness_factor. Endpoints with no attempts score 1.0.
func (r *Registry) Score(i int) (float64, error) {
	if !r.valid(i) {
		return 0, rpcerr.NewInvalidEndpoint(i)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scoreLocked(i), nil
}

func (r *Registry) scoreLocked(i int) float64 {
	e := r.entries[i]
	total := e.successes + e.failures
	if total == 0 {
		return 1.0
	}

	successRate := float64(e.successes) / float64(total)
	latencyFactor := 1000.0 / (e.avgResponseMs + 1.0)

	staleness := 1.0
	if e.lastSuccess.IsZero() || r.clock().Sub(e.lastSuccess) > r.freshness {
		staleness = 0.5
	}

	return successRate * latencyFactor * staleness
}

// NextHealthyEndpoint returns the index of the highest-scoring endpoint not
// in exclude, breaking ties by (weight descending, index ascending). It
// fails with AllEndpointsUnhealthy-equivalent (0, false) when none exists;
// weights is indexed in parallel with the registry's entries.
func (r *Registry) NextHealthyEndpoint(exclude map[int]bool, weights []int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := -1
	bestScore := -1.0
	for i := range r.entries {
		if exclude[i] || !r.isHealthyLocked(i) {
			continue
		}
		s := r.scoreLocked(i)
		if best == -1 {
			best, bestScore = i, s
			continue
		}
		if s > bestScore {
			best, bestScore = i, s
			continue
		}
		if s == bestScore && weights[i] > weights[best] {
			best, bestScore = i, s
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// Len returns the number of tracked endpoints.
func (r *Registry) Len() int { return len(r.entries) }
