package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/orgs"
)

// SubscriptionGetter is the read path the guard needs
type SubscriptionGetter interface {
	GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
}

// UsageCounter reports how much of a feature an organization has used
// since a point in time
type UsageCounter interface {
	CountUsage(ctx context.Context, orgID uuid.UUID, since time.Time) (int, error)
}

// Decision is the outcome of a quota check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Used    int    `json:"used,omitempty"`
}

// Guard checks subscription state before metered work is accepted
type Guard struct {
	subs     SubscriptionGetter
	counters map[Feature]UsageCounter
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewGuard creates a guard. metrics may be nil.
func NewGuard(subs SubscriptionGetter, metrics *observability.Metrics) *Guard {
	return &Guard{
		subs:     subs,
		counters: make(map[Feature]UsageCounter),
		metrics:  metrics,
		now:      time.Now,
	}
}

// CountUsage enables usage enforcement for feature. Once set, a check is
// denied when usage in the current period has reached the plan limit.
func (g *Guard) CountUsage(feature Feature, counter UsageCounter) *Guard {
	g.counters[feature] = counter
	return g
}

// Check evaluates whether org may use feature. Storage failures are
// returned as errors and are not decisions.
func (g *Guard) Check(ctx context.Context, org *orgs.Organization, feature Feature) (Decision, error) {
	d, err := g.check(ctx, org, feature)
	if err != nil {
		return Decision{}, err
	}

	g.metrics.ObserveQuota(string(feature), d.Allowed)

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"feature": string(feature),
		"limit":   d.Limit,
		"allowed": d.Allowed,
	})
	if d.Allowed {
		logger.Info("quota check passed")
	} else {
		logger.WithField("reason", d.Reason).Warn("quota check denied")
	}
	return d, nil
}

// Enforce is Check returning a *QuotaExceededError on denial
func (g *Guard) Enforce(ctx context.Context, org *orgs.Organization, feature Feature) error {
	d, err := g.Check(ctx, org, feature)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &QuotaExceededError{Feature: feature, Reason: d.Reason}
	}
	return nil
}

func (g *Guard) check(ctx context.Context, org *orgs.Organization, feature Feature) (Decision, error) {
	if org == nil {
		return Decision{Reason: ReasonNoOrganization}, nil
	}

	sub, err := g.subs.GetSubscription(ctx, org.ID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return Decision{Reason: ReasonNoSubscription}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("quota check: %w", err)
	}
	if !sub.IsActive() {
		return Decision{Reason: ReasonInactive}, nil
	}

	limit := sub.Limits()[feature]
	d := Decision{Allowed: true, Limit: limit}

	counter, ok := g.counters[feature]
	if !ok {
		return d, nil
	}

	used, err := counter.CountUsage(ctx, org.ID, sub.PeriodStart(g.now()))
	if err != nil {
		return Decision{}, fmt.Errorf("quota usage count: %w", err)
	}
	d.Used = used
	if used >= limit {
		d.Allowed = false
		d.Reason = ReasonLimitReached
	}
	return d, nil
}
