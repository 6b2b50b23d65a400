package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tdhoang/escrow-be/internal/escrow/custody"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/events"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
)

// Config holds engine dependencies and tunables.
type Config struct {
	Registry registry.Registry
	Custody  *custody.Adapter
	Events   events.Publisher
	Clock    Clock
	Logger   *slog.Logger

	// GracePeriod is the auto-approval window after delivery. Defaults to
	// DefaultGracePeriod when zero.
	GracePeriod time.Duration

	// MaxDeadlineWindow bounds how far in the future a job deadline may be.
	// Zero disables the bound.
	MaxDeadlineWindow time.Duration
}

// Engine is the job lifecycle state machine. Every operation validates the
// caller's role, the exact required predecessor status, and any time
// precondition, then mutates the record and moves funds as one atomic unit:
// on any failure the pre-call state is fully intact.
type Engine struct {
	registry  registry.Registry
	custody   *custody.Adapter
	events    events.Publisher
	clock     Clock
	logger    *slog.Logger
	grace     time.Duration
	maxWindow time.Duration

	// mu serializes operations; transferring is the process-wide lock that
	// rejects any nested fund-moving call while one is in flight.
	mu           sync.Mutex
	transferring atomic.Bool
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Engine{
		registry:  cfg.Registry,
		custody:   cfg.Custody,
		events:    cfg.Events,
		clock:     clock,
		logger:    cfg.Logger,
		grace:     grace,
		maxWindow: cfg.MaxDeadlineWindow,
	}
}

// GracePeriod returns the configured auto-approval window.
func (e *Engine) GracePeriod() time.Duration {
	return e.grace
}

// CreateParams are the immutable fields of a new job.
type CreateParams struct {
	Asset       domain.Asset
	Amount      uint64
	Title       string
	Description string
	MetadataURI string
	Deadline    time.Time
}

// CreateJob escrows the deposit and stores a new OPEN job, returning its id.
func (e *Engine) CreateJob(ctx context.Context, caller domain.Identity, p CreateParams) (*domain.Job, error) {
	if err := e.acquireTransferGuard(); err != nil {
		return nil, err
	}
	defer e.releaseTransferGuard()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if err := e.validateCreate(caller, p, now); err != nil {
		return nil, err
	}

	// Deposit is escrowed before the record commit. If the commit fails the
	// deposit is returned, keeping the two effects all-or-nothing.
	if err := e.custody.Escrow(ctx, p.Asset, caller, p.Amount); err != nil {
		return nil, err
	}

	job := &domain.Job{
		Client:        caller,
		DepositAmount: p.Amount,
		Asset:         p.Asset,
		Status:        domain.StatusOpen,
		Title:         p.Title,
		Description:   p.Description,
		MetadataURI:   p.MetadataURI,
		Deadline:      p.Deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := e.registry.Create(ctx, job); err != nil {
		if refundErr := e.custody.Transfer(ctx, p.Asset, caller, p.Amount); refundErr != nil {
			e.logger.Error("Failed to return deposit after create failure",
				slog.String("client", string(caller)),
				slog.Uint64("amount", p.Amount),
				slog.String("error", refundErr.Error()),
			)
		}
		return nil, err
	}

	e.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.String("client", string(caller)),
		slog.String("asset", string(p.Asset)),
		slog.Uint64("amount", p.Amount),
	)

	e.emit(ctx, events.Event{
		Kind:       events.KindJobCreated,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		Amount:     p.Amount,
		OccurredAt: now,
	})
	return job, nil
}

func (e *Engine) validateCreate(caller domain.Identity, p CreateParams, now time.Time) error {
	if caller == "" {
		return domain.ErrUnauthorized
	}
	if !p.Asset.Valid() {
		return fmt.Errorf("%w: asset is required", domain.ErrInvalidParams)
	}
	if p.Amount == 0 {
		return fmt.Errorf("%w: deposit amount must be greater than zero", domain.ErrInvalidParams)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidParams)
	}
	if !p.Deadline.After(now) {
		return fmt.Errorf("%w: deadline must be in the future", domain.ErrInvalidParams)
	}
	if e.maxWindow > 0 && p.Deadline.After(now.Add(e.maxWindow)) {
		return fmt.Errorf("%w: deadline exceeds the allowed window", domain.ErrInvalidParams)
	}
	return nil
}

// ApplyForJob assigns the caller as contractor, first writer wins.
func (e *Engine) ApplyForJob(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusOpen {
		return nil, statusMismatch(domain.StatusOpen, job.Status)
	}
	if job.HasContractor() {
		return nil, domain.ErrAlreadyAssigned
	}

	now := e.clock.Now()
	job.Contractor = caller
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobApplied,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// StartContract moves OPEN -> IN_PROGRESS once the client confirms the
// assigned contractor.
func (e *Engine) StartContract(ctx context.Context, caller domain.Identity, jobID int64, expectedContractor domain.Identity) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isClient(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusOpen {
		return nil, statusMismatch(domain.StatusOpen, job.Status)
	}
	if !job.HasContractor() {
		return nil, fmt.Errorf("%w: no contractor assigned", domain.ErrInvalidState)
	}
	if job.Contractor != expectedContractor {
		return nil, fmt.Errorf("%w: assigned contractor does not match", domain.ErrInvalidState)
	}

	now := e.clock.Now()
	job.Status = domain.StatusInProgress
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobStarted,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// DeliverWork moves IN_PROGRESS -> DELIVERED, recording the submission and
// the delivery timestamp that anchors auto-approval.
func (e *Engine) DeliverWork(ctx context.Context, caller domain.Identity, jobID int64, submissionURI string) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isContractor(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusInProgress {
		return nil, statusMismatch(domain.StatusInProgress, job.Status)
	}

	now := e.clock.Now()
	if !deliveryOpen(now, job.Deadline) {
		return nil, domain.ErrDeadlineExceeded
	}

	job.Status = domain.StatusDelivered
	job.DeliveredAt = now
	job.SubmissionURI = submissionURI
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobDelivered,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// ApproveAndComplete moves DELIVERED -> COMPLETED by explicit client
// approval.
func (e *Engine) ApproveAndComplete(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isClient(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusDelivered {
		return nil, statusMismatch(domain.StatusDelivered, job.Status)
	}

	now := e.clock.Now()
	job.Status = domain.StatusCompleted
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobCompleted,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// AutoApproveIfTimeoutPassed is the permissionless liveness path to
// COMPLETED once the grace period after delivery has elapsed.
func (e *Engine) AutoApproveIfTimeoutPassed(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusDelivered {
		return nil, statusMismatch(domain.StatusDelivered, job.Status)
	}

	now := e.clock.Now()
	if !graceElapsed(now, job.DeliveredAt, e.grace) {
		return nil, domain.ErrTimeNotElapsed
	}

	job.Status = domain.StatusCompleted
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobCompleted,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// WithdrawPayment moves COMPLETED -> RESOLVED and pays the contractor the
// full deposit.
func (e *Engine) WithdrawPayment(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	if err := e.acquireTransferGuard(); err != nil {
		return nil, err
	}
	defer e.releaseTransferGuard()

	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isContractor(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusCompleted {
		return nil, statusMismatch(domain.StatusCompleted, job.Status)
	}

	now := e.clock.Now()
	amount := job.DepositAmount
	if err := e.payoutLocked(ctx, job, job.Contractor, domain.StatusResolved, now); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobResolved,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		Recipient:  job.Contractor,
		Amount:     amount,
		OccurredAt: now,
	})
	return job, nil
}

// AutoCancelIfDeadlinePassed is the permissionless liveness path to
// CANCELLED once the delivery deadline passed without delivery. Refunds the
// client.
func (e *Engine) AutoCancelIfDeadlinePassed(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	if err := e.acquireTransferGuard(); err != nil {
		return nil, err
	}
	defer e.releaseTransferGuard()

	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusInProgress {
		return nil, statusMismatch(domain.StatusInProgress, job.Status)
	}

	now := e.clock.Now()
	if !deadlinePassed(now, job.Deadline) {
		return nil, domain.ErrTimeNotElapsed
	}

	amount := job.DepositAmount
	if err := e.payoutLocked(ctx, job, job.Client, domain.StatusCancelled, now); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobDeadlineCancelled,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		Recipient:  job.Client,
		Amount:     amount,
		OccurredAt: now,
	})
	return job, nil
}

// RaiseDispute moves IN_PROGRESS or DELIVERED -> DISPUTED. Either party may
// raise it.
func (e *Engine) RaiseDispute(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isParty(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusInProgress && job.Status != domain.StatusDelivered {
		return nil, fmt.Errorf("%w: expected %s or %s, got %s",
			domain.ErrInvalidState, domain.StatusInProgress, domain.StatusDelivered, job.Status)
	}

	now := e.clock.Now()
	job.Status = domain.StatusDisputed
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobDisputed,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		OccurredAt: now,
	})
	return job, nil
}

// ResolveDispute moves DISPUTED -> RESOLVED. Only the configured resolver
// may adjudicate; the verdict decides who receives the full deposit.
func (e *Engine) ResolveDispute(ctx context.Context, caller domain.Identity, jobID int64, verdict string) (*domain.Job, error) {
	if err := e.acquireTransferGuard(); err != nil {
		return nil, err
	}
	defer e.releaseTransferGuard()

	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resolver, err := e.registry.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	if resolver == "" || caller != resolver {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusDisputed {
		return nil, statusMismatch(domain.StatusDisputed, job.Status)
	}

	var recipient domain.Identity
	switch verdict {
	case domain.VerdictClientUpheld:
		recipient = job.Client
	case domain.VerdictContractorUpheld:
		recipient = job.Contractor
	default:
		return nil, fmt.Errorf("%w: unknown verdict %q", domain.ErrInvalidParams, verdict)
	}

	now := e.clock.Now()
	amount := job.DepositAmount
	if err := e.payoutLocked(ctx, job, recipient, domain.StatusResolved, now); err != nil {
		return nil, err
	}

	e.logger.Info("Dispute resolved",
		slog.Int64("job_id", job.ID),
		slog.String("verdict", verdict),
		slog.String("recipient", string(recipient)),
	)

	e.emit(ctx, events.Event{
		Kind:       events.KindJobResolved,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		Recipient:  recipient,
		Amount:     amount,
		Verdict:    verdict,
		OccurredAt: now,
	})
	return job, nil
}

// CancelJob moves OPEN -> CANCELLED and refunds the client.
func (e *Engine) CancelJob(ctx context.Context, caller domain.Identity, jobID int64) (*domain.Job, error) {
	if err := e.acquireTransferGuard(); err != nil {
		return nil, err
	}
	defer e.releaseTransferGuard()

	e.mu.Lock()
	defer e.mu.Unlock()

	job, err := e.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !isClient(job, caller) {
		return nil, domain.ErrUnauthorized
	}
	if job.Status != domain.StatusOpen {
		return nil, statusMismatch(domain.StatusOpen, job.Status)
	}

	now := e.clock.Now()
	amount := job.DepositAmount
	if err := e.payoutLocked(ctx, job, job.Client, domain.StatusCancelled, now); err != nil {
		return nil, err
	}

	e.emit(ctx, events.Event{
		Kind:       events.KindJobCancelled,
		JobID:      job.ID,
		Actor:      caller,
		Status:     job.Status,
		Recipient:  job.Client,
		Amount:     amount,
		OccurredAt: now,
	})
	return job, nil
}

// GetJob returns a read-only snapshot.
func (e *Engine) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	return e.registry.Get(ctx, jobID)
}

// ListJobs returns job snapshots matching the filter.
func (e *Engine) ListJobs(ctx context.Context, f registry.Filter) ([]domain.Job, error) {
	return e.registry.List(ctx, f)
}

// SetDisputeResolver changes the resolver identity. Administrator only.
func (e *Engine) SetDisputeResolver(ctx context.Context, caller, newResolver domain.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	admin, err := e.registry.Admin(ctx)
	if err != nil {
		return err
	}
	if admin == "" || caller != admin {
		return domain.ErrUnauthorized
	}
	if newResolver == "" {
		return fmt.Errorf("%w: resolver identity is required", domain.ErrInvalidParams)
	}

	if err := e.registry.SetResolver(ctx, newResolver); err != nil {
		return err
	}

	e.logger.Info("Dispute resolver changed",
		slog.String("resolver", string(newResolver)),
	)

	e.emit(ctx, events.Event{
		Kind:       events.KindResolverChanged,
		Actor:      caller,
		Recipient:  newResolver,
		OccurredAt: e.clock.Now(),
	})
	return nil
}

// payoutLocked commits the terminal transition with the deposit zeroed,
// then invokes the custody adapter. The stored deposit reaches zero before
// the external call, so a re-entering recipient cannot be paid twice; if
// the transfer fails the pre-call snapshot is restored.
func (e *Engine) payoutLocked(ctx context.Context, job *domain.Job, recipient domain.Identity, newStatus domain.Status, now time.Time) error {
	snapshot := job.Clone()
	amount := job.DepositAmount

	job.DepositAmount = 0
	job.Status = newStatus
	job.UpdatedAt = now
	if err := e.registry.Update(ctx, job); err != nil {
		return err
	}

	if err := e.custody.Transfer(ctx, job.Asset, recipient, amount); err != nil {
		if rbErr := e.registry.Update(ctx, snapshot); rbErr != nil {
			e.logger.Error("Failed to restore job after transfer failure",
				slog.Int64("job_id", job.ID),
				slog.String("error", rbErr.Error()),
			)
		} else {
			*job = *snapshot
		}
		return err
	}
	return nil
}

func (e *Engine) acquireTransferGuard() error {
	if !e.transferring.CompareAndSwap(false, true) {
		return domain.ErrReentrantCall
	}
	return nil
}

func (e *Engine) releaseTransferGuard() {
	e.transferring.Store(false)
}

func (e *Engine) emit(ctx context.Context, event events.Event) {
	if e.events == nil {
		return
	}
	event.ID = uuid.New().String()
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			slog.String("kind", string(event.Kind)),
			slog.Int64("job_id", event.JobID),
			slog.String("error", err.Error()),
		)
	}
}

func statusMismatch(want, got domain.Status) error {
	return fmt.Errorf("%w: expected %s, got %s", domain.ErrInvalidState, want, got)
}
