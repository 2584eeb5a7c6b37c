package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

// ParsePlan validates a plan name
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PlanFree, PlanPro:
		return p, nil
	}
	return "", fmt.Errorf("invalid plan %q", s)
}

// Status represents the status of a subscription
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusPastDue  Status = "PAST_DUE"
)

// ParseStatus validates a status name
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusInactive, StatusPastDue:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Feature names a metered capability
type Feature string

const (
	FeaturePredictions Feature = "predictions"
	FeatureStorageMB   Feature = "storage_mb"
)

var planLimits = map[Plan]map[Feature]int{
	PlanFree: {FeaturePredictions: 10, FeatureStorageMB: 100},
	PlanPro:  {FeaturePredictions: 1000, FeatureStorageMB: 1000},
}

// Limits returns a copy of the limits table for plan. Unknown plans get the
// FREE limits.
func Limits(plan Plan) map[Feature]int {
	src, ok := planLimits[plan]
	if !ok {
		src = planLimits[PlanFree]
	}
	out := make(map[Feature]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Subscription is an organization's plan
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	OrganizationID     uuid.UUID  `json:"organization_id"`
	Plan               Plan       `json:"plan"`
	Status             Status     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsActive reports whether the subscription is ACTIVE
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// Limits returns the limits of the subscription's plan
func (s *Subscription) Limits() map[Feature]int {
	return Limits(s.Plan)
}

// PeriodStart returns the start of the current billing period, falling back
// to the first day of the month of now when none is recorded.
func (s *Subscription) PeriodStart(now time.Time) time.Time {
	if s.CurrentPeriodStart != nil {
		return *s.CurrentPeriodStart
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// UpdateSubscriptionRequest changes plan, status or period bounds. Nil
// fields are left untouched.
type UpdateSubscriptionRequest struct {
	Plan               *Plan      `json:"plan,omitempty"`
	Status             *Status    `json:"status,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
}

// ErrSubscriptionNotFound is returned when an organization has no subscription
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Quota denial reasons
const (
	ReasonNoOrganization = "no organization context"
	ReasonNoSubscription = "no active subscription found"
	ReasonInactive       = "subscription is not active"
	ReasonLimitReached   = "usage limit reached"
)

// ErrQuotaExceeded is matched by every *QuotaExceededError
var ErrQuotaExceeded = errors.New("usage limit exceeded")

// QuotaExceededError is returned by Guard.Enforce on denial
type QuotaExceededError struct {
	Feature Feature
	Reason  string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("usage limit exceeded for %s: %s", e.Feature, e.Reason)
}

// Is makes errors.Is(err, ErrQuotaExceeded) true
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
