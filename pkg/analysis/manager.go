package analysis

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/inference"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/queue"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
)

// Options tunes job leasing
type Options struct {
	// Lease is how long a claim holds a job before it may be reclaimed
	Lease time.Duration
	// MaxAttempts caps claims per job. Zero means unlimited.
	MaxAttempts int
}

// Manager drives jobs through their lifecycle
type Manager struct {
	store   Store
	queue   queue.Queue
	authz   *rbac.Authorizer
	guard   *billing.Guard
	metrics *observability.Metrics
	opts    Options
}

// NewManager creates a job manager. metrics may be nil.
func NewManager(store Store, q queue.Queue, authz *rbac.Authorizer, guard *billing.Guard, metrics *observability.Metrics, opts Options) *Manager {
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	return &Manager{
		store:   store,
		queue:   q,
		authz:   authz,
		guard:   guard,
		metrics: metrics,
		opts:    opts,
	}
}

// Submit accepts a job for tc's organization. Checks run in order: role,
// quota, spectra shape. The job is stored PENDING and enqueued once; a lost
// enqueue is logged and recovered by the sweeper.
func (m *Manager) Submit(ctx context.Context, tc *tenancy.Context, req *CreateJobRequest) (*Job, error) {
	if err := m.authz.Authorize(ctx, tc.Request(rbac.ActionCreate, rbac.ResourceAnalysisJob)); err != nil {
		return nil, err
	}
	if err := m.guard.Enforce(ctx, tc.Organization, billing.FeaturePredictions); err != nil {
		return nil, err
	}
	spectra, err := ValidateSpectra(req.Spectra)
	if err != nil {
		return nil, err
	}

	requester := tc.UserID()
	job := &Job{
		OrganizationID: tc.OrgID(),
		RequestedBy:    &requester,
		Spectra:        spectra,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	m.metrics.ObserveJob(string(StatusPending))

	logger := observability.FromContext(ctx).WithField("job_id", job.ID.String())
	if _, err := m.queue.Enqueue(ctx, job.ID); err != nil {
		logger.WithError(err).Warn("failed to enqueue job, leaving it for the sweeper")
	} else {
		logger.Info("job enqueued")
	}
	return job, nil
}

// Get returns a job of tc's organization
func (m *Manager) Get(ctx context.Context, tc *tenancy.Context, id uuid.UUID) (*Job, error) {
	req := tc.Request(rbac.ActionRead, rbac.ResourceAnalysisJob)
	job, err := m.store.GetJob(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		req.TargetMissing = true
		return nil, m.authz.Authorize(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	req.ResourceOrgID = job.OrganizationID
	if err := m.authz.Authorize(ctx, req); err != nil {
		return nil, err
	}
	return job, nil
}

// List returns tc's organization's jobs, newest first
func (m *Manager) List(ctx context.Context, tc *tenancy.Context) ([]*Job, error) {
	if err := m.authz.Authorize(ctx, tc.Request(rbac.ActionList, rbac.ResourceAnalysisJob)); err != nil {
		return nil, err
	}
	return m.store.ListJobs(ctx, tc.OrgID())
}

// Claim moves a job to RUNNING for the calling worker
func (m *Manager) Claim(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := m.store.ClaimJob(ctx, id, m.opts.Lease, m.opts.MaxAttempts)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveJob(string(StatusRunning))
	return job, nil
}

// Complete records a successful prediction. Values are rounded to three
// decimals and tagged with the model method.
func (m *Manager) Complete(ctx context.Context, id uuid.UUID, p *inference.Prediction) error {
	if err := m.store.CompleteJob(ctx, id, Properties(p)); err != nil {
		return err
	}
	m.metrics.ObserveJob(string(StatusSuccess))
	return nil
}

// Fail records a failed job with message
func (m *Manager) Fail(ctx context.Context, id uuid.UUID, message string) error {
	if err := m.store.FailJob(ctx, id, message); err != nil {
		return err
	}
	m.metrics.ObserveJob(string(StatusFailed))
	return nil
}

// Properties is the stored form of a prediction
func Properties(p *inference.Prediction) map[string]interface{} {
	props := make(map[string]interface{}, len(p.Values)+1)
	for name, v := range p.Values {
		props[name] = round3(v)
	}
	props[MethodKey] = p.Method
	return props
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
