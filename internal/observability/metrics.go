package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheFetches counts fetches executed on cache miss, by key group.
	CacheFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_cache_fetches_total",
		Help: "Total number of cache-miss fetches by key group",
	}, []string{"group"})

	// CacheInvalidations counts invalidations by target kind (key or group).
	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_cache_invalidations_total",
		Help: "Total number of cache invalidations by kind",
	}, []string{"kind"})

	// GatewayErrors counts data gateway failures by operation.
	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glimpse_gateway_errors_total",
		Help: "Total number of data gateway errors by operation",
	}, []string{"operation"})

	// FanoutFailures counts notification writes that failed after a
	// successful primary mutation.
	FanoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glimpse_notification_fanout_failures_total",
		Help: "Total number of failed notification fanout writes",
	})

	// FeedPagesLoaded counts feed pages fetched from the gateway.
	FeedPagesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glimpse_feed_pages_loaded_total",
		Help: "Total number of feed pages loaded",
	})
)
