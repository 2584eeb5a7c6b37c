// Package analysistest provides an in-memory analysis.Store for tests of
// the job lifecycle and the worker.
package analysistest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/analysis"
)

// MemoryStore implements analysis.Store with the same conditional
// transitions as the Postgres store
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*analysis.Job

	// Now is the store clock. Defaults to time.Now.
	Now func() time.Time
}

var _ analysis.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*analysis.Job), Now: time.Now}
}

// Put stores job as given, for fixtures
func (m *MemoryStore) Put(job *analysis.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

// Job returns a copy of the stored job, or nil
func (m *MemoryStore) Job(id uuid.UUID) *analysis.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

func (m *MemoryStore) CreateJob(_ context.Context, job *analysis.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := m.Now()
	job.Status = analysis.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*analysis.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, analysis.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, orgID uuid.UUID) ([]*analysis.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*analysis.Job
	for _, job := range m.jobs {
		if job.OrganizationID == orgID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ClaimJob(_ context.Context, id uuid.UUID, lease time.Duration, maxAttempts int) (*analysis.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, analysis.ErrJobNotFound
	}
	now := m.Now()
	claimable := job.Status == analysis.StatusPending ||
		(job.Status == analysis.StatusRunning && job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now) &&
			(maxAttempts <= 0 || job.Attempts < maxAttempts))
	if !claimable {
		return nil, analysis.ErrJobNotClaimable
	}

	expires := now.Add(lease)
	job.Status = analysis.StatusRunning
	job.Attempts++
	job.LeaseExpiresAt = &expires
	job.UpdatedAt = now
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) CompleteJob(_ context.Context, id uuid.UUID, properties map[string]interface{}) error {
	return m.finish(id, false, func(job *analysis.Job) {
		job.Status = analysis.StatusSuccess
		job.PredictedProperties = properties
		job.ErrorMessage = nil
	})
}

func (m *MemoryStore) FailJob(_ context.Context, id uuid.UUID, message string) error {
	return m.finish(id, false, func(job *analysis.Job) {
		job.Status = analysis.StatusFailed
		job.ErrorMessage = &message
	})
}

func (m *MemoryStore) ExpireJob(_ context.Context, id uuid.UUID, message string) error {
	return m.finish(id, true, func(job *analysis.Job) {
		job.Status = analysis.StatusFailed
		job.ErrorMessage = &message
	})
}

func (m *MemoryStore) finish(id uuid.UUID, expiredOnly bool, apply func(*analysis.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok || job.Status != analysis.StatusRunning {
		return analysis.ErrJobNotRunning
	}
	now := m.Now()
	if expiredOnly && (job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.Before(now)) {
		return analysis.ErrJobNotRunning
	}
	apply(job)
	job.LeaseExpiresAt = nil
	job.UpdatedAt = now
	return nil
}

func (m *MemoryStore) CountUsage(_ context.Context, orgID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, job := range m.jobs {
		if job.OrganizationID == orgID && !job.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListStalePending(_ context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id, job := range m.jobs {
		if job.Status == analysis.StatusPending && job.UpdatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) ListExpiredLeases(_ context.Context) ([]analysis.Expired, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	var out []analysis.Expired
	for id, job := range m.jobs {
		if job.Status == analysis.StatusRunning && job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now) {
			out = append(out, analysis.Expired{ID: id, Attempts: job.Attempts})
		}
	}
	return out, nil
}
