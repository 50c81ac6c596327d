package redis

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avikko/gsproxy/internal/cache"
)

// Key prefix for all cached liveness verdicts
const keyPrefix = "gsproxy:liveness"

// Cache is a Redis-backed implementation of the verdict cache. Expiry is
// delegated to Redis key TTLs.
type Cache struct {
	client *redis.Client
}

// New creates a new Redis verdict cache from a connection URL
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{client: client}, nil
}

// NewWithClient creates a Redis verdict cache with an existing client (for
// testing)
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ensure Cache implements the interface
var _ cache.VerdictCache = (*Cache)(nil)

// verdictKey returns the Redis key for a (address, port) pair
func verdictKey(addr netip.Addr, port int) string {
	return fmt.Sprintf("%s:%s:%d", keyPrefix, addr, port)
}

func (c *Cache) Get(ctx context.Context, addr netip.Addr, port int) (bool, error) {
	err := c.client.Get(ctx, verdictKey(addr, port)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Put(ctx context.Context, addr netip.Addr, port int, ttl time.Duration) error {
	return c.client.Set(ctx, verdictKey(addr, port), "1", ttl).Err()
}

func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
