package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainrpc/dispatch/internal/health"
)

func TestNextPicksHighestScoringHealthyEndpoint(t *testing.T) {
	r := health.New(2, 30*time.Second, nil)
	require.NoError(t, r.RecordSuccess(0, 100*time.Millisecond, 1))
	require.NoError(t, r.RecordSuccess(1, 5*time.Millisecond, 1))

	s := New(r, []int{1, 1})
	idx, err := s.Next(map[int]bool{})
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "lower latency endpoint should score higher")
}

func TestNextExcludesTriedEndpoints(t *testing.T) {
	r := health.New(2, 30*time.Second, nil)
	s := New(r, []int{1, 1})

	idx, err := s.Next(map[int]bool{0: true})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestNextFailsWhenAllExcludedOrUnhealthy(t *testing.T) {
	r := health.New(2, 30*time.Second, nil)
	s := New(r, []int{1, 1})

	_, err := s.Next(map[int]bool{0: true, 1: true})
	assert.Error(t, err)
}

func TestNextUnhealthyEndpointIsSkipped(t *testing.T) {
	r := health.New(1, 1*time.Millisecond, nil)
	require.NoError(t, r.RecordSuccess(0, time.Millisecond, 1))
	time.Sleep(5 * time.Millisecond)

	s := New(r, []int{1})
	_, err := s.Next(map[int]bool{})
	assert.Error(t, err)
}
