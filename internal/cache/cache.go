package cache

import (
	"context"
	"net/netip"
	"time"
)

// VerdictCache stores positive liveness verdicts for (address, port) pairs.
// Only true verdicts are ever stored; a negative verdict must always trigger
// a fresh probe, so a transient listing-service failure cannot lock a
// legitimate server out for the cache TTL.
type VerdictCache interface {
	// Get reports whether an unexpired positive verdict exists for the pair
	Get(ctx context.Context, addr netip.Addr, port int) (bool, error)
	// Put records a positive verdict with the given time-to-live
	Put(ctx context.Context, addr netip.Addr, port int, ttl time.Duration) error
	// Clear removes every cached verdict
	Clear(ctx context.Context) error
}
