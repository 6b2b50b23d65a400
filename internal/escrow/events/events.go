package events

import (
	"context"
	"time"

	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// Kind identifies a notification record. Kinds double as AMQP routing keys.
type Kind string

const (
	KindJobCreated           Kind = "job.created"
	KindJobApplied           Kind = "job.applied"
	KindJobStarted           Kind = "job.started"
	KindJobDelivered         Kind = "job.delivered"
	KindJobCompleted         Kind = "job.completed"
	KindJobDisputed          Kind = "job.disputed"
	KindJobResolved          Kind = "job.resolved"
	KindJobCancelled         Kind = "job.cancelled"
	KindJobDeadlineCancelled Kind = "job.deadline_cancelled"
	KindResolverChanged      Kind = "marketplace.resolver_changed"
)

// Event is the notification record emitted after every committed
// state-changing operation, consumed by external indexers and notifiers.
type Event struct {
	ID         string          `json:"event_id"`
	Kind       Kind            `json:"kind"`
	JobID      int64           `json:"job_id,omitempty"`
	Actor      domain.Identity `json:"actor,omitempty"`
	Status     domain.Status   `json:"status,omitempty"`
	Recipient  domain.Identity `json:"recipient,omitempty"`
	Amount     uint64          `json:"amount,omitempty"`
	Verdict    string          `json:"verdict,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers notification records to external consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
