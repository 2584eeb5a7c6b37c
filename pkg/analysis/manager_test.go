package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/analysis/analysistest"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/inference"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/queue"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

type subscriptions map[uuid.UUID]*billing.Subscription

func (s subscriptions) GetSubscription(_ context.Context, orgID uuid.UUID) (*billing.Subscription, error) {
	sub, ok := s[orgID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub, nil
}

type brokenQueue struct{ *queue.MemoryQueue }

func (brokenQueue) Enqueue(context.Context, uuid.UUID) (bool, error) {
	return false, errors.New("redis: connection refused")
}

type fixture struct {
	store *analysistest.MemoryStore
	queue *queue.MemoryQueue
	subs  subscriptions
	guard *billing.Guard
	mgr   *analysis.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: analysistest.NewMemoryStore(),
		queue: queue.NewMemoryQueue(time.Minute),
		subs:  subscriptions{},
	}
	f.guard = billing.NewGuard(f.subs, nil)
	f.mgr = analysis.NewManager(f.store, f.queue, rbac.NewAuthorizer(nil), f.guard, nil,
		analysis.Options{Lease: time.Minute, MaxAttempts: 3})
	return f
}

// member creates a tenant context for a fresh org with a subscription in
// status
func (f *fixture) member(role rbac.Role, status billing.Status) *tenancy.Context {
	org := &orgs.Organization{ID: uuid.New(), Name: "Org " + string(role)}
	f.subs[org.ID] = &billing.Subscription{OrganizationID: org.ID, Plan: billing.PlanFree, Status: status}
	return &tenancy.Context{
		User:         &auth.User{ID: uuid.New(), Email: "member@example.com"},
		Organization: org,
		Role:         role,
	}
}

func spectra(raw string) *analysis.CreateJobRequest {
	return &analysis.CreateJobRequest{Spectra: json.RawMessage(raw)}
}

func TestManager_Submit(t *testing.T) {
	f := newFixture(t)
	tc := f.member(rbac.RoleViewer, billing.StatusActive)

	job, err := f.mgr.Submit(context.Background(), tc, spectra(`[0.1, 0.2, 0.3]`))
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusPending, job.Status)
	assert.Equal(t, tc.OrgID(), job.OrganizationID)
	require.NotNil(t, job.RequestedBy)
	assert.Equal(t, tc.UserID(), *job.RequestedBy)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, job.Spectra)

	stored := f.store.Job(job.ID)
	require.NotNil(t, stored)
	assert.Equal(t, analysis.StatusPending, stored.Status)

	d, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.ID, d.JobID)
	_, err = f.queue.Dequeue(context.Background())
	assert.ErrorIs(t, err, queue.ErrEmpty, "job must be enqueued exactly once")
}

func TestManager_SubmitQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("free active allowed", func(t *testing.T) {
		_, err := f.mgr.Submit(ctx, f.member(rbac.RoleAgronomist, billing.StatusActive), spectra(`[1]`))
		assert.NoError(t, err)
	})

	t.Run("past due denied", func(t *testing.T) {
		_, err := f.mgr.Submit(ctx, f.member(rbac.RoleAgronomist, billing.StatusPastDue), spectra(`[1]`))
		require.ErrorIs(t, err, billing.ErrQuotaExceeded)

		var qe *billing.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, billing.ReasonInactive, qe.Reason)
		assert.Equal(t, "subscription is not active", qe.Reason)
	})

	t.Run("no subscription denied", func(t *testing.T) {
		tc := f.member(rbac.RoleAgronomist, billing.StatusActive)
		delete(f.subs, tc.OrgID())

		_, err := f.mgr.Submit(ctx, tc, spectra(`[1]`))
		var qe *billing.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, billing.ReasonNoSubscription, qe.Reason)
	})

	t.Run("quota checked before spectra", func(t *testing.T) {
		_, err := f.mgr.Submit(ctx, f.member(rbac.RoleAgronomist, billing.StatusPastDue), spectra(`"bad"`))
		assert.ErrorIs(t, err, billing.ErrQuotaExceeded)
	})
}

func TestManager_SubmitUsageLimit(t *testing.T) {
	f := newFixture(t)
	f.guard.CountUsage(billing.FeaturePredictions, f.store)
	tc := f.member(rbac.RoleOwner, billing.StatusActive)

	limit := billing.Limits(billing.PlanFree)[billing.FeaturePredictions]
	for i := 0; i < limit; i++ {
		_, err := f.mgr.Submit(context.Background(), tc, spectra(`[1]`))
		require.NoError(t, err)
	}

	_, err := f.mgr.Submit(context.Background(), tc, spectra(`[1]`))
	var qe *billing.QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, billing.ReasonLimitReached, qe.Reason)
}

func TestManager_SubmitRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("invalid spectra", func(t *testing.T) {
		tc := f.member(rbac.RoleViewer, billing.StatusActive)
		_, err := f.mgr.Submit(ctx, tc, spectra(`[]`))
		require.ErrorIs(t, err, validation.ErrValidationFailed)
		assert.Equal(t, "Spectra array cannot be empty.", validation.Fields(err)[0].Message)

		jobs, err := f.store.ListJobs(ctx, tc.OrgID())
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("unknown role", func(t *testing.T) {
		tc := f.member(rbac.Role("FARMHAND"), billing.StatusActive)
		_, err := f.mgr.Submit(ctx, tc, spectra(`[1]`))
		assert.ErrorIs(t, err, rbac.ErrForbidden)
	})
}

func TestManager_SubmitEnqueueFailure(t *testing.T) {
	store := analysistest.NewMemoryStore()
	subs := subscriptions{}
	mgr := analysis.NewManager(store, brokenQueue{queue.NewMemoryQueue(time.Minute)}, rbac.NewAuthorizer(nil),
		billing.NewGuard(subs, nil), nil, analysis.Options{})

	org := &orgs.Organization{ID: uuid.New()}
	subs[org.ID] = &billing.Subscription{Plan: billing.PlanFree, Status: billing.StatusActive}
	tc := &tenancy.Context{User: &auth.User{ID: uuid.New()}, Organization: org, Role: rbac.RoleViewer}

	job, err := mgr.Submit(context.Background(), tc, spectra(`[1, 2]`))
	require.NoError(t, err, "a lost enqueue is recovered by the sweeper")
	assert.Equal(t, analysis.StatusPending, store.Job(job.ID).Status)
}

func TestManager_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tc := f.member(rbac.RoleAgronomist, billing.StatusActive)

	t.Run("success", func(t *testing.T) {
		job, err := f.mgr.Submit(ctx, tc, spectra(`[0.1, 0.2, 0.3]`))
		require.NoError(t, err)

		claimed, err := f.mgr.Claim(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, analysis.StatusRunning, claimed.Status)
		assert.Equal(t, 1, claimed.Attempts)

		_, err = f.mgr.Claim(ctx, job.ID)
		assert.ErrorIs(t, err, analysis.ErrJobNotClaimable, "a leased job cannot be claimed twice")

		err = f.mgr.Complete(ctx, job.ID, &inference.Prediction{
			Values: map[string]float64{"SOM": 2.41234, "N": 0.0005},
			Method: "PLSR_v1",
		})
		require.NoError(t, err)

		done, err := f.mgr.Get(ctx, tc, job.ID)
		require.NoError(t, err)
		assert.Equal(t, analysis.StatusSuccess, done.Status)
		assert.Equal(t, map[string]interface{}{"SOM": 2.412, "N": 0.001, "Method": "PLSR_v1"}, done.PredictedProperties)
		assert.Nil(t, done.ErrorMessage)
	})

	t.Run("failure", func(t *testing.T) {
		job, err := f.mgr.Submit(ctx, tc, spectra(`[0.1, 0.2, 0.3]`))
		require.NoError(t, err)
		_, err = f.mgr.Claim(ctx, job.ID)
		require.NoError(t, err)

		require.NoError(t, f.mgr.Fail(ctx, job.ID, "model PLSR_v1 expects 4 spectral values, got 3"))

		done, err := f.mgr.Get(ctx, tc, job.ID)
		require.NoError(t, err)
		assert.Equal(t, analysis.StatusFailed, done.Status)
		require.NotNil(t, done.ErrorMessage)
		assert.Equal(t, "model PLSR_v1 expects 4 spectral values, got 3", *done.ErrorMessage)
		assert.Nil(t, done.PredictedProperties)

		_, err = f.mgr.Claim(ctx, job.ID)
		assert.ErrorIs(t, err, analysis.ErrJobNotClaimable, "terminal jobs are never claimed")
	})

	t.Run("complete requires running", func(t *testing.T) {
		job, err := f.mgr.Submit(ctx, tc, spectra(`[1]`))
		require.NoError(t, err)

		err = f.mgr.Complete(ctx, job.ID, &inference.Prediction{Values: map[string]float64{}, Method: "m"})
		assert.ErrorIs(t, err, analysis.ErrJobNotRunning)
		assert.ErrorIs(t, f.mgr.Fail(ctx, job.ID, "x"), analysis.ErrJobNotRunning)
	})

	t.Run("claim missing job", func(t *testing.T) {
		_, err := f.mgr.Claim(ctx, uuid.New())
		assert.ErrorIs(t, err, analysis.ErrJobNotFound)
	})
}

func TestManager_ReclaimExpiredLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.store.Now = func() time.Time { return now }

	tc := f.member(rbac.RoleAgronomist, billing.StatusActive)
	job, err := f.mgr.Submit(ctx, tc, spectra(`[1]`))
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := f.mgr.Claim(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, claimed.Attempts)
		now = now.Add(2 * time.Minute)
	}

	_, err = f.mgr.Claim(ctx, job.ID)
	assert.ErrorIs(t, err, analysis.ErrJobNotClaimable, "attempts exhausted")
}

func TestManager_Scope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgA := f.member(rbac.RoleOwner, billing.StatusActive)
	orgB := f.member(rbac.RoleOwner, billing.StatusActive)

	jobA, err := f.mgr.Submit(ctx, orgA, spectra(`[1]`))
	require.NoError(t, err)
	_, err = f.mgr.Submit(ctx, orgB, spectra(`[2]`))
	require.NoError(t, err)

	jobs, err := f.mgr.List(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobA.ID, jobs[0].ID)

	_, err = f.mgr.Get(ctx, orgB, jobA.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.mgr.Get(ctx, orgA, uuid.New())
	assert.ErrorIs(t, err, rbac.ErrForbidden, "an unknown id is denied like a foreign one")
}

func TestProperties(t *testing.T) {
	props := analysis.Properties(&inference.Prediction{
		Values: map[string]float64{"SOM": 1.23456},
		Method: "PLSR_v1",
	})
	assert.Equal(t, map[string]interface{}{"SOM": 1.235, "Method": "PLSR_v1"}, props)
}
