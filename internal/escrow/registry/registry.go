package registry

import (
	"context"
	"time"

	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// Filter narrows List results.
type Filter struct {
	Status     domain.Status
	Client     domain.Identity
	Contractor domain.Identity
	PageSize   int
}

// Registry is the keyed job table plus the marketplace settings. Ids are
// allocated sequentially from 1 and are immutable once assigned. Only the
// escrow engine mutates records through it.
type Registry interface {
	// Create allocates the next id, stamps it on the record, and stores it.
	Create(ctx context.Context, job *domain.Job) (int64, error)

	// Get returns an independent snapshot of the job, or ErrInvalidJobID if
	// the id is out of range.
	Get(ctx context.Context, id int64) (*domain.Job, error)

	// Update overwrites the stored record for job.ID.
	Update(ctx context.Context, job *domain.Job) error

	// List returns job snapshots matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]domain.Job, error)

	// ListDue returns jobs eligible for a permissionless liveness
	// transition at the given instant: IN_PROGRESS past its deadline, or
	// DELIVERED past its auto-approval grace period.
	ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]domain.Job, error)

	// Resolver returns the persisted dispute-resolver identity.
	Resolver(ctx context.Context) (domain.Identity, error)

	// SetResolver persists a new dispute-resolver identity.
	SetResolver(ctx context.Context, id domain.Identity) error

	// Admin returns the persisted administrator identity.
	Admin(ctx context.Context) (domain.Identity, error)

	// SetAdmin persists the administrator identity.
	SetAdmin(ctx context.Context, id domain.Identity) error
}
