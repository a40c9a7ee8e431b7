package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BlocksWhenEmpty(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		"aster": {"global": {Capacity: 5, Refill: 5}},
	})
	ctx := context.Background()

	// 5 consumos inmediatos con el bucket lleno.
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx, "aster", "global", 1))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// El sexto espera ~200ms (1 token a 5 tokens/s).
	start = time.Now()
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestAcquire_EndpointFallsBackToGlobal(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		"aster": {"global": {Capacity: 1, Refill: 100}},
	})
	ctx := context.Background()

	// "depth" no tiene bucket propio → usa aster:global.
	require.NoError(t, l.Acquire(ctx, "aster", "depth", 1))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond,
		"el fallback consume del mismo bucket global")
}

func TestAcquire_UnknownVenueGetsPermissiveDefault(t *testing.T) {
	l := ratelimit.New(nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(ctx, "lighter", "global", 1))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"el bucket por defecto (1000, 1000/s) no debería frenar")
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		"aster": {"global": {Capacity: 1, Refill: 0.001}},
	})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "aster", "global", 1)
	assert.Error(t, err)
}

func TestUpdate_ReplacesBuckets(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		"aster": {"global": {Capacity: 100, Refill: 100}},
	})
	ctx := context.Background()

	l.Update(ratelimit.Config{
		"aster": {"global": {Capacity: 2, Refill: 10}},
	})

	// Bucket nuevo: 2 inmediatos, el tercero espera ~100ms a 10/s.
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "aster", "global", 1))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestParseConfig_FromAdminBlob(t *testing.T) {
	raw := map[string]any{
		"aster": map[string]any{
			"global": map[string]any{"capacity": 20, "refill": 10.0},
			"depth":  map[string]any{"capacity": 10, "refill": 5.0},
		},
	}

	cfg, err := ratelimit.ParseConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg["aster"]["global"].Capacity)
	assert.Equal(t, 5.0, cfg["aster"]["depth"].Refill)
}
