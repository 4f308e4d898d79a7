package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowHonorsBurst(t *testing.T) {
	rl := New(1, 3)
	defer rl.Stop()

	// Burst tokens serve the first requests, then the bucket is dry.
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("192.0.2.1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("192.0.2.1"))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// One client exhausting its bucket does not starve another.
	assert.True(t, rl.Allow("192.0.2.1"))
	assert.False(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.2"))
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	rl := New(20, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The burst token is free; the next token takes ~50ms at 20 rps.
	require.NoError(t, rl.Wait(ctx, "192.0.2.1"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "192.0.2.1"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitRespectsContext(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	// Drain the bucket; the next token is ten seconds away.
	rl.Allow("192.0.2.1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, "192.0.2.1"))
}

func TestStopIsIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	rl.Stop()

	// The limiter still answers after shutdown.
	assert.True(t, rl.Allow("192.0.2.1"))
}
