package rbac

import (
	"context"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

// Authorizer applies Decide and records the outcome
type Authorizer struct {
	metrics *observability.Metrics
}

// NewAuthorizer creates an authorizer. metrics may be nil.
func NewAuthorizer(metrics *observability.Metrics) *Authorizer {
	return &Authorizer{metrics: metrics}
}

// Authorize returns nil when req is allowed and a *ForbiddenError otherwise
func (a *Authorizer) Authorize(ctx context.Context, req Request) error {
	d := Decide(req)
	a.metrics.ObserveAuthz(string(req.Resource), string(req.Action), d.Allowed)

	if d.Allowed {
		return nil
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"permission": req.Permission().String(),
		"role":       string(req.Role),
		"reason":     d.Reason,
	}).Info("access denied")

	return &ForbiddenError{Permission: req.Permission(), Reason: d.Reason}
}
