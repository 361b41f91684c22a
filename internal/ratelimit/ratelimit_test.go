package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroMaxRPS(t *testing.T) {
	_, err := New(0, 10)
	require.Error(t, err)
}

func TestNewRejectsZeroBurst(t *testing.T) {
	_, err := New(10, 0)
	require.Error(t, err)
}

func TestAcquireReturnsPromptlyWhenTokensAvailable(t *testing.T) {
	l, err := New(100, 10)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestBurstSizeOneAdmitsOnePerSecond(t *testing.T) {
	l, err := New(1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, l.Acquire(ctx))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l, err := New(1, 1)
	require.NoError(t, err)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = l.Acquire(ctx)
	assert.Error(t, err)
}
