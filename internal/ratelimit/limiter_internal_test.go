package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// Cubre la ventana entre soltar el RLock y tomar el Lock: si un Update creó
// el bucket del endpoint en medio, lookupSlow debe devolverlo en vez de
// crear un default permisivo que lo eclipse.
func TestLookupSlow_SeesBucketCreatedBetweenLocks(t *testing.T) {
	l := New(nil)
	tight := rate.NewLimiter(rate.Limit(1), 1)
	l.mu.Lock()
	l.buckets[key("aster", "depth")] = tight
	l.mu.Unlock()

	got := l.lookupSlow("aster", "depth")
	require.Same(t, tight, got)

	l.mu.Lock()
	_, created := l.buckets[key("aster", "global")]
	l.mu.Unlock()
	require.False(t, created, "no debe crearse un bucket global por defecto")
}
