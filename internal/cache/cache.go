// Package cache provides the keyed store of asynchronous query results:
// read-through fetching with request coalescing, structured keys with named
// invalidation groups, and optional cross-process invalidation via a bus.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"glimpse/internal/observability"

	"github.com/google/uuid"
	"github.com/viccon/sturdyc"
)

// Config exposes the tunable cache parameters.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultConfig returns a Config populated with sensible defaults.
// Invalidation, not TTL, drives correctness; the TTL only bounds staleness
// for entries nothing ever invalidates.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Cache is a keyed store of query results. For a given key at most one
// fetch is in flight at a time; concurrent callers for the same key share
// the eventual result. A failed fetch is never stored, so the next get
// retries.
type Cache struct {
	id     string
	client *sturdyc.Client[any]
	bus    Bus
	log    *observability.Logger

	mu       sync.Mutex
	inflight map[string]int

	cancel context.CancelFunc
}

// New creates a Cache. bus may be nil for a standalone cache.
func New(cfg Config, bus Bus, log *observability.Logger) *Cache {
	if log == nil {
		log = observability.GlobalLogger
	}
	c := &Cache{
		id:       uuid.NewString(),
		client:   sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
		bus:      bus,
		log:      log,
		inflight: make(map[string]int),
	}
	if bus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		bus.Subscribe(ctx, c.onRemote)
	}
	return c
}

// Close detaches the cache from its invalidation bus.
func (c *Cache) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// FetchFn loads a value from the source of truth on cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch returns the cached value for key, fetching it at most once
// across concurrent callers on miss.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, fetch FetchFn[T]) (T, error) {
	v, err := c.getOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected value type for key %q", key)
	}
	return out, nil
}

func (c *Cache) getOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	return c.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		c.markFetching(key)
		defer c.unmarkFetching(key)
		observability.CacheFetches.WithLabelValues(KeyGroup(key)).Inc()
		return fetch(ctx)
	})
}

// IsFetching reports whether a fetch for key is currently in flight.
func (c *Cache) IsFetching(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[key] > 0
}

func (c *Cache) markFetching(key string) {
	c.mu.Lock()
	c.inflight[key]++
	c.mu.Unlock()
}

func (c *Cache) unmarkFetching(key string) {
	c.mu.Lock()
	if c.inflight[key] <= 1 {
		delete(c.inflight, key)
	} else {
		c.inflight[key]--
	}
	c.mu.Unlock()
}

// Invalidate marks one exact key stale so the next get refetches it.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.dropKey(key)
	c.publish(ctx, Event{Origin: c.id, Kind: EventKey, Target: key})
}

// InvalidateGroup marks every key under the group prefix stale.
func (c *Cache) InvalidateGroup(ctx context.Context, prefix string) {
	c.dropGroup(prefix)
	c.publish(ctx, Event{Origin: c.id, Kind: EventGroup, Target: prefix})
}

func (c *Cache) dropKey(key string) {
	c.client.Delete(key)
	observability.CacheInvalidations.WithLabelValues(EventKey).Inc()
}

func (c *Cache) dropGroup(prefix string) {
	for _, key := range c.client.ScanKeys() {
		if inGroup(key, prefix) {
			c.client.Delete(key)
		}
	}
	observability.CacheInvalidations.WithLabelValues(EventGroup).Inc()
}

func (c *Cache) publish(ctx context.Context, ev Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, ev); err != nil {
		c.log.Warn("invalidation bus: publish failed", "target", ev.Target, "error", err)
	}
}

// onRemote applies an invalidation that originated in another cache.
func (c *Cache) onRemote(ev Event) {
	if ev.Origin == c.id {
		return
	}
	switch ev.Kind {
	case EventGroup:
		c.dropGroup(ev.Target)
	default:
		c.dropKey(ev.Target)
	}
}
