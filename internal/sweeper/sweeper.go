package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
)

// Config holds sweeper configuration
type Config struct {
	Logger      *slog.Logger
	Engine      *escrow.Engine
	Registry    registry.Registry
	Clock       escrow.Clock
	Actor       domain.Identity
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// Sweeper drives the permissionless liveness paths: it periodically scans
// for jobs whose deadline or auto-approval grace period elapsed and applies
// the corresponding transition. Anyone may trigger these transitions; the
// sweeper just guarantees somebody eventually does.
type Sweeper struct {
	logger      *slog.Logger
	engine      *escrow.Engine
	registry    registry.Registry
	clock       escrow.Clock
	actor       domain.Identity
	interval    time.Duration
	concurrency int
	batchSize   int

	wg       sync.WaitGroup
	stopChan chan struct{}
	jobsChan chan domain.Job
	stopOnce sync.Once
}

// New creates a sweeper instance.
func New(cfg *Config) *Sweeper {
	clock := cfg.Clock
	if clock == nil {
		clock = escrow.SystemClock{}
	}
	return &Sweeper{
		logger:      cfg.Logger,
		engine:      cfg.Engine,
		registry:    cfg.Registry,
		clock:       clock,
		actor:       cfg.Actor,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		stopChan:    make(chan struct{}),
		jobsChan:    make(chan domain.Job, cfg.Concurrency),
	}
}

// Start runs the scan loop until the context is canceled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting sweeper",
		slog.Duration("interval", s.interval),
		slog.Int("concurrency", s.concurrency),
		slog.Int("batch_size", s.batchSize),
	)

	for i := 0; i < s.concurrency; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.logger.Info("Sweeper stopping - stop requested")
			return s.drain()

		case <-ctx.Done():
			s.logger.Info("Sweeper stopping - context canceled")
			return s.drain()

		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// Stop requests shutdown; Start returns after in-flight work drains.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Sweeper) drain() error {
	close(s.jobsChan)
	s.wg.Wait()
	s.logger.Info("Sweeper stopped")
	return nil
}

// scan enqueues every job currently eligible for a liveness transition.
func (s *Sweeper) scan(ctx context.Context) {
	now := s.clock.Now()
	jobs, err := s.registry.ListDue(ctx, now, s.engine.GracePeriod(), s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list due jobs",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(jobs) == 0 {
		return
	}

	s.logger.Info("Sweep found due jobs",
		slog.Int("count", len(jobs)),
	)

	for _, job := range jobs {
		select {
		case s.jobsChan <- job:
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) workerLoop(ctx context.Context, workerNum int) {
	defer s.wg.Done()

	for job := range s.jobsChan {
		s.sweepJob(ctx, workerNum, job)
	}
}

func (s *Sweeper) sweepJob(ctx context.Context, workerNum int, job domain.Job) {
	var (
		updated *domain.Job
		err     error
	)

	switch job.Status {
	case domain.StatusInProgress:
		updated, err = s.engine.AutoCancelIfDeadlinePassed(ctx, s.actor, job.ID)
	case domain.StatusDelivered:
		updated, err = s.engine.AutoApproveIfTimeoutPassed(ctx, s.actor, job.ID)
	default:
		return
	}

	if err != nil {
		// Lost races and in-flight transfers resolve themselves on the
		// next sweep.
		if errors.Is(err, domain.ErrInvalidState) ||
			errors.Is(err, domain.ErrTimeNotElapsed) ||
			errors.Is(err, domain.ErrReentrantCall) {
			s.logger.Debug("Sweep skipped job",
				slog.Int64("job_id", job.ID),
				slog.Int("worker_num", workerNum),
				slog.String("reason", err.Error()),
			)
			return
		}
		s.logger.Error("Sweep transition failed",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("Sweep transition applied",
		slog.Int64("job_id", updated.ID),
		slog.String("status", string(updated.Status)),
	)
}
