package memory

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/avikko/gsproxy/internal/cache"
	"github.com/avikko/gsproxy/internal/dependencies/clock"
)

// Cache is an in-process implementation of the verdict cache. Entries expire
// lazily on read.
type Cache struct {
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]time.Time
}

// New creates a new in-memory verdict cache
func New(clk clock.Clock) *Cache {
	return &Cache{
		clock:   clk,
		entries: make(map[string]time.Time),
	}
}

// Ensure Cache implements the interface
var _ cache.VerdictCache = (*Cache)(nil)

func key(addr netip.Addr, port int) string {
	return fmt.Sprintf("%s:%d", addr, port)
}

func (c *Cache) Get(ctx context.Context, addr netip.Addr, port int) (bool, error) {
	k := key(addr, port)

	c.mu.RLock()
	deadline, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if c.clock.Now().After(deadline) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if d, ok := c.entries[k]; ok && c.clock.Now().After(d) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *Cache) Put(ctx context.Context, addr netip.Addr, port int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(addr, port)] = c.clock.Now().Add(ttl)
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time)
	return nil
}
