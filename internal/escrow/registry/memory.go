package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// Memory is an in-process Registry backed by a plain map. It is the store
// used in tests and single-node deployments without Postgres.
type Memory struct {
	mu       sync.Mutex
	jobs     map[int64]*domain.Job
	nextID   int64
	resolver domain.Identity
	admin    domain.Identity
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		jobs:   make(map[int64]*domain.Job),
		nextID: 1,
	}
}

func (m *Memory) Create(_ context.Context, job *domain.Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.ID = m.nextID
	m.nextID++
	m.jobs[job.ID] = job.Clone()
	return job.ID, nil
}

func (m *Memory) Get(_ context.Context, id int64) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id <= 0 || id >= m.nextID {
		return nil, domain.ErrInvalidJobID
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrInvalidJobID
	}
	return job.Clone(), nil
}

func (m *Memory) Update(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrInvalidJobID
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Job, 0)
	for _, job := range m.jobs {
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if f.Client != "" && job.Client != f.Client {
			continue
		}
		if f.Contractor != "" && job.Contractor != f.Contractor {
			continue
		}
		out = append(out, *job.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if f.PageSize > 0 && len(out) > f.PageSize {
		out = out[:f.PageSize]
	}
	return out, nil
}

func (m *Memory) ListDue(_ context.Context, now time.Time, grace time.Duration, limit int) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Job, 0)
	for _, job := range m.jobs {
		due := (job.Status == domain.StatusInProgress && now.After(job.Deadline)) ||
			(job.Status == domain.StatusDelivered && !now.Before(job.DeliveredAt.Add(grace)))
		if due {
			out = append(out, *job.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Resolver(_ context.Context) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolver, nil
}

func (m *Memory) SetResolver(_ context.Context, id domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = id
	return nil
}

func (m *Memory) Admin(_ context.Context) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admin, nil
}

func (m *Memory) SetAdmin(_ context.Context, id domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admin = id
	return nil
}
