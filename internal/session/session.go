// Package session assembles the per-viewer data-access stack: one query
// cache, one feed pager, one mutation coordinator, and one query service
// bound to a single identity. Identity-dependent cached state never leaks
// between viewers because each viewer gets their own cache.
package session

import (
	"context"
	"sync"

	"glimpse/internal/aggregate"
	"glimpse/internal/blob"
	"glimpse/internal/cache"
	"glimpse/internal/feed"
	"glimpse/internal/gateway"
	"glimpse/internal/identity"
	"glimpse/internal/mutate"
	"glimpse/internal/notify"
	"glimpse/internal/observability"
	"glimpse/internal/query"
)

// Session is the wired stack for one viewer.
type Session struct {
	ids   *identity.Static
	cache *cache.Cache

	Feed      *feed.Pager
	Mutations *mutate.Coordinator
	Queries   *query.Service
}

// New builds a session for the given identity; empty means anonymous.
// bus may be nil when cross-process invalidation is not in play.
func New(
	userID string,
	gw gateway.Gateway,
	cfg cache.Config,
	bus cache.Bus,
	blobs blob.Store,
	log *observability.Logger,
) *Session {
	ids := identity.NewStatic(userID)
	c := cache.New(cfg, bus, log)
	agg := aggregate.New(gw)
	fanout := notify.New(gw, log)

	mutations := mutate.NewCoordinator(gw, c, ids, fanout, blobs, log)
	pager := feed.NewPager(gw, agg, c, ids, mutations.Overlay())
	mutations.AttachFeed(pager)
	queries := query.New(gw, c, agg, ids, mutations.Overlay())

	s := &Session{
		ids:       ids,
		cache:     c,
		Feed:      pager,
		Mutations: mutations,
		Queries:   queries,
	}

	// On sign-in or sign-out every view that depends on who is looking is
	// stale: liked flags in the feed and post views, follow edges, the
	// notification inbox, and any pending optimistic state.
	ids.OnChange(func(previous, current string) {
		ctx := context.Background()
		c.InvalidateGroup(ctx, cache.GroupFeed)
		c.InvalidateGroup(ctx, cache.GroupPost)
		c.InvalidateGroup(ctx, cache.GroupComments)
		c.InvalidateGroup(ctx, cache.GroupIsFollowing)
		if previous != "" {
			c.Invalidate(ctx, cache.NotificationsKey(previous))
		}
		if current != "" {
			c.Invalidate(ctx, cache.NotificationsKey(current))
		}
		mutations.Overlay().Clear()
		pager.Reset()
	})

	return s
}

// UserID returns the session's identity, empty when anonymous.
func (s *Session) UserID() string {
	uid, _ := s.ids.Current(context.Background())
	return uid
}

// SetIdentity swaps the session's identity, invalidating everything
// identity-dependent when it actually changes.
func (s *Session) SetIdentity(userID string) {
	s.ids.Set(userID)
}

// Cache exposes the session's query cache, mainly for tests and tooling.
func (s *Session) Cache() *cache.Cache {
	return s.cache
}

// Close detaches the session's cache from the invalidation bus.
func (s *Session) Close() {
	s.cache.Close()
}

// Manager hands out sessions keyed by user id, creating them lazily. The
// empty id is the shared anonymous session.
type Manager struct {
	gw    gateway.Gateway
	cfg   cache.Config
	bus   cache.Bus
	blobs blob.Store
	log   *observability.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(
	gw gateway.Gateway,
	cfg cache.Config,
	bus cache.Bus,
	blobs blob.Store,
	log *observability.Logger,
) *Manager {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &Manager{
		gw:       gw,
		cfg:      cfg,
		bus:      bus,
		blobs:    blobs,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for userID, creating it on first use.
func (m *Manager) Session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := New(userID, m.gw, m.cfg, m.bus, m.blobs, m.log)
	m.sessions[userID] = s
	return s
}

// Close shuts down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
