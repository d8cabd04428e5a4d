// Package feed produces the ordered, cursor-paginated, deduplicated
// sequence of aggregated posts.
package feed

import (
	"context"
	"sync"

	"glimpse/internal/aggregate"
	"glimpse/internal/cache"
	"glimpse/internal/gateway"
	"glimpse/internal/identity"
	"glimpse/internal/models"
	"glimpse/internal/mutate"
	"glimpse/internal/observability"
)

// PageSize is the fixed number of posts per feed page.
const PageSize = 10

// State is the pager's position in its loading lifecycle.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
	StateLoadingMore
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadingMore:
		return "loading_more"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Pager loads the feed page by page. Posts are ordered by creation time
// descending with post id as the deterministic tie-break, and no post id
// appears twice across the pages of one session.
type Pager struct {
	gw      gateway.Gateway
	agg     *aggregate.Aggregator
	cache   *cache.Cache
	ids     identity.Provider
	overlay *mutate.Overlay

	mu      sync.Mutex
	state   State
	loading bool
	next    int
	pages   [][]*models.AggregatedPost
	seen    map[string]struct{}
	removed map[string]*models.AggregatedPost
}

// NewPager wires a feed pager. overlay may be nil when no optimistic layer
// is in play (e.g. read-only tooling).
func NewPager(
	gw gateway.Gateway,
	agg *aggregate.Aggregator,
	c *cache.Cache,
	ids identity.Provider,
	overlay *mutate.Overlay,
) *Pager {
	return &Pager{
		gw:      gw,
		agg:     agg,
		cache:   c,
		ids:     ids,
		overlay: overlay,
		seen:    make(map[string]struct{}),
		removed: make(map[string]*models.AggregatedPost),
	}
}

// State returns the pager's current state.
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LoadMore fetches the next page. It is a no-op while a fetch is already in
// flight or after the feed is exhausted, so repeated triggers (e.g. from a
// scroll signal) cost nothing.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading || p.state == StateExhausted {
		p.mu.Unlock()
		return nil
	}
	page := p.next
	p.loading = true
	if page == 0 {
		p.state = StateLoading
	} else {
		p.state = StateLoadingMore
	}
	p.mu.Unlock()

	rows, err := cache.GetOrFetch(ctx, p.cache, cache.FeedPageKey(page), p.fetchPage(page))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		if len(p.pages) == 0 {
			p.state = StateEmpty
		} else {
			p.state = StateLoaded
		}
		return err
	}

	// Fresh authoritative rows arrived; the optimistic layer for these
	// posts is reconciled away.
	if p.overlay != nil {
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		p.overlay.Drop(ids...)
	}

	kept := make([]*models.AggregatedPost, 0, len(rows))
	for _, row := range rows {
		if _, dup := p.seen[row.ID]; dup {
			continue
		}
		p.seen[row.ID] = struct{}{}
		kept = append(kept, row)
	}
	p.pages = append(p.pages, kept)
	p.next = page + 1

	// A short page means the store has nothing past this point.
	if len(rows) < PageSize {
		p.state = StateExhausted
	} else {
		p.state = StateLoaded
	}
	return nil
}

func (p *Pager) fetchPage(page int) cache.FetchFn[[]*models.AggregatedPost] {
	return func(ctx context.Context) ([]*models.AggregatedPost, error) {
		var posts []*models.Post
		err := p.gw.Select(ctx, gateway.Query{
			Collection: gateway.CollectionPosts,
			Order: []gateway.OrderBy{
				{Field: "created_at", Desc: true},
				{Field: "id", Desc: true},
			},
			Offset: page * PageSize,
			Limit:  PageSize,
		}, &posts)
		if err != nil {
			return nil, err
		}

		viewer, _ := p.ids.Current(ctx)
		views, err := p.agg.Batch(ctx, posts, viewer)
		if err != nil {
			return nil, err
		}
		observability.FeedPagesLoaded.Inc()
		return views, nil
	}
}

// Posts returns a flattened snapshot of the loaded pages with the
// optimistic overlay merged in. The snapshot is a copy; mutating it never
// touches cached state.
func (p *Pager) Posts() []*models.AggregatedPost {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*models.AggregatedPost
	for _, page := range p.pages {
		for _, post := range page {
			clone := *post
			if p.overlay != nil {
				p.overlay.Apply(&clone)
			}
			out = append(out, &clone)
		}
	}
	return out
}

// Remove drops a post from the loaded pages immediately, keeping it aside
// in case the deletion fails. The id stays marked as seen so the post
// cannot reappear through a later page of this session.
func (p *Pager) Remove(postID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, page := range p.pages {
		for j, post := range page {
			if post.ID == postID {
				p.removed[postID] = post
				p.pages[i] = append(page[:j:j], page[j+1:]...)
				return
			}
		}
	}
}

// Restore reinserts a post previously taken out by Remove, used when the
// backing delete fails and the optimistic removal must be reverted.
func (p *Pager) Restore(postID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	post, ok := p.removed[postID]
	if !ok {
		return
	}
	delete(p.removed, postID)

	// Reinsert by feed order: newest first, id as tie-break.
	for i, page := range p.pages {
		for j, existing := range page {
			if earlier(existing, post) {
				page = append(page[:j:j], append([]*models.AggregatedPost{post}, page[j:]...)...)
				p.pages[i] = page
				return
			}
		}
	}
	if len(p.pages) == 0 {
		p.pages = append(p.pages, nil)
	}
	last := len(p.pages) - 1
	p.pages[last] = append(p.pages[last], post)
}

// Reset returns the pager to its initial state, e.g. for a full reload
// after the feed cache group was invalidated.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateEmpty
	p.loading = false
	p.next = 0
	p.pages = nil
	p.seen = make(map[string]struct{})
	p.removed = make(map[string]*models.AggregatedPost)
}

// earlier reports whether a sorts after b in feed order (a is older).
func earlier(a, b *models.AggregatedPost) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
