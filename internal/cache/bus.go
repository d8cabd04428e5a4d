package cache

import (
	"context"
	"encoding/json"
	"sync"

	"glimpse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel carrying invalidation events.
const Channel = "glimpse:invalidation"

// Event kinds carried on the bus.
const (
	EventKey   = "key"
	EventGroup = "group"
)

// Event describes one invalidation to propagate to peer caches. Only the
// staleness signal travels; content is always refetched by the reader.
type Event struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// Bus propagates invalidation events between caches.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, fn func(Event))
}

// LocalBus fans invalidation events out to every cache in this process.
type LocalBus struct {
	mu   sync.Mutex
	subs []func(Event)
}

// NewLocalBus creates an in-process invalidation bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, fn func(Event)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// RedisBus propagates invalidation events across processes via pub/sub.
// A nil client degrades to a no-op, matching how the rest of the app treats
// an unavailable redis.
type RedisBus struct {
	rdb *redis.Client
	log *observability.Logger
}

// NewRedisBus creates a redis-backed invalidation bus.
func NewRedisBus(rdb *redis.Client, log *observability.Logger) *RedisBus {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if b.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(Event)) {
	if b.rdb == nil {
		return
	}
	sub := b.rdb.Subscribe(ctx, Channel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("invalidation bus: bad payload", "error", err)
					continue
				}
				fn(ev)
			}
		}
	}()
}
