// Package selector implements the Endpoint Selector: a weighted, health-aware
// choice of which endpoint the Dispatcher should try next for a call.
package selector

import (
	"math/rand"
	"sync"

	"github.com/chainrpc/dispatch/internal/health"
	"github.com/chainrpc/dispatch/internal/rpcerr"
)

// scoreBand is the fraction within which two endpoints' scores are treated
// as equivalent for weighted tie-breaking purposes (10% per the selection
// algorithm).
const scoreBand = 0.10

// Selector chooses among the endpoints tracked by a health.Registry.
type Selector struct {
	registry *health.Registry
	weights  []int
	mu       sync.Mutex // guards rng, which is not safe for concurrent use
	rng      *rand.Rand
}

// New builds a Selector over registry, with weights indexed in parallel to
// the registry's endpoints.
func New(registry *health.Registry, weights []int) *Selector {
	return &Selector{
		registry: registry,
		weights:  weights,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Next picks the best endpoint not present in exclude. Exact score ties are
// broken by (weight descending, index ascending); when the healthy endpoints
// within 10% of the top score do not all share that score, a weighted-random
// choice among them spreads load. Returns AllEndpointsFailed when no eligible
// endpoint remains.
func (s *Selector) Next(exclude map[int]bool) (int, error) {
	candidates := s.healthyCandidates(exclude)
	if len(candidates) == 0 {
		return 0, rpcerr.New(rpcerr.AllEndpointsFailed, "no healthy endpoint outside exclude set")
	}

	best := candidates[0].score
	var band []candidate
	for _, c := range candidates {
		if c.score >= best*(1-scoreBand) {
			band = append(band, c)
		}
	}
	if len(band) == 1 || band[len(band)-1].score == best {
		return band[0].index, nil
	}
	return s.weightedChoice(band), nil
}

type candidate struct {
	index  int
	score  float64
	weight int
}

// healthyCandidates returns every healthy, non-excluded endpoint sorted by
// (score descending, weight descending, index ascending).
func (s *Selector) healthyCandidates(exclude map[int]bool) []candidate {
	var out []candidate
	for i := 0; i < s.registry.Len(); i++ {
		if exclude[i] {
			continue
		}
		healthy, err := s.registry.IsHealthy(i)
		if err != nil || !healthy {
			continue
		}
		score, err := s.registry.Score(i)
		if err != nil {
			continue
		}
		out = append(out, candidate{index: i, score: score, weight: s.weights[i]})
	}

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if less(out[j], out[i]) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func less(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	return a.index < b.index
}

// weightedChoice performs weighted random selection among band using weight
// as probability mass.
func (s *Selector) weightedChoice(band []candidate) int {
	total := 0
	for _, c := range band {
		total += c.weight
	}
	if total <= 0 {
		return band[0].index
	}
	s.mu.Lock()
	pick := s.rng.Intn(total)
	s.mu.Unlock()
	acc := 0
	for _, c := range band {
		acc += c.weight
		if pick < acc {
			return c.index
		}
	}
	return band[len(band)-1].index
}
