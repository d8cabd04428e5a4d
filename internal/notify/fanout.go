// Package notify derives notification writes from social mutations.
package notify

import (
	"context"
	"time"

	"glimpse/internal/gateway"
	"glimpse/internal/models"
	"glimpse/internal/observability"

	"github.com/google/uuid"
)

// Event describes the notification a mutation wants delivered.
type Event struct {
	RecipientID string
	ActorID     string
	Kind        models.NotificationKind
	PostID      string
}

// Fanout writes notification rows as a best-effort side effect. It runs
// only after the primary mutation's write succeeded, and its own failures
// never propagate back to the mutation.
type Fanout struct {
	gw  gateway.Gateway
	log *observability.Logger
}

// New creates a Fanout over the given gateway.
func New(gw gateway.Gateway, log *observability.Logger) *Fanout {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &Fanout{gw: gw, log: log}
}

// Notify inserts a notification row for ev. Self-directed actions produce
// nothing. Write failures are logged and counted, then swallowed.
func (f *Fanout) Notify(ctx context.Context, ev Event) {
	if ev.RecipientID == ev.ActorID {
		return
	}

	notification := models.Notification{
		ID:        uuid.NewString(),
		UserID:    ev.RecipientID,
		ActorID:   ev.ActorID,
		Type:      ev.Kind,
		PostID:    ev.PostID,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.gw.Insert(ctx, gateway.CollectionNotifications, &notification); err != nil {
		observability.FanoutFailures.Inc()
		f.log.Warn("notification fanout failed",
			"recipient", ev.RecipientID,
			"actor", ev.ActorID,
			"kind", string(ev.Kind),
			"error", err,
		)
	}
}
