package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// BillingHandlers handles subscription requests
type BillingHandlers struct {
	subscriptions billing.Store
	authz         *rbac.Authorizer
	audit         audit.Logger
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(subscriptions billing.Store, authz *rbac.Authorizer, auditLog audit.Logger) *BillingHandlers {
	return &BillingHandlers{subscriptions: subscriptions, authz: authz, audit: auditLogger(auditLog)}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscriptions/me", h.GetSubscription).Methods(http.MethodGet)
	router.HandleFunc("/subscriptions/me", h.UpdateSubscription).Methods(http.MethodPatch)
}

type subscriptionResponse struct {
	*billing.Subscription
	IsActive bool                    `json:"is_active"`
	Limits   map[billing.Feature]int `json:"limits"`
}

func newSubscriptionResponse(sub *billing.Subscription) subscriptionResponse {
	return subscriptionResponse{Subscription: sub, IsActive: sub.IsActive(), Limits: sub.Limits()}
}

// GetSubscription returns the caller's organization subscription
func (h *BillingHandlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	if err := h.authz.Authorize(ctx, tc.Request(rbac.ActionRead, rbac.ResourceSubscription)); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	sub, err := h.subscriptions.GetSubscription(ctx, tc.OrgID())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newSubscriptionResponse(sub))
}

type updateSubscriptionBody struct {
	Plan               *string    `json:"plan"`
	Status             *string    `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

func (b *updateSubscriptionBody) request() (*billing.UpdateSubscriptionRequest, error) {
	req := &billing.UpdateSubscriptionRequest{
		CurrentPeriodStart: b.CurrentPeriodStart,
		CurrentPeriodEnd:   b.CurrentPeriodEnd,
	}
	var errs validation.Errors
	if b.Plan != nil {
		plan, err := billing.ParsePlan(*b.Plan)
		if err != nil {
			errs.Add("plan", err.Error())
		}
		req.Plan = &plan
	}
	if b.Status != nil {
		status, err := billing.ParseStatus(*b.Status)
		if err != nil {
			errs.Add("status", err.Error())
		}
		req.Status = &status
	}
	if b.CurrentPeriodStart != nil && b.CurrentPeriodEnd != nil && b.CurrentPeriodEnd.Before(*b.CurrentPeriodStart) {
		errs.Add("current_period_end", "Period end must not be before period start.")
	}
	return req, errs.Err()
}

// UpdateSubscription changes plan, status or billing period
func (h *BillingHandlers) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	if err := h.authz.Authorize(ctx, tc.Request(rbac.ActionUpdate, rbac.ResourceSubscription)); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	var body updateSubscriptionBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	req, err := body.request()
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	before, err := h.subscriptions.GetSubscription(ctx, tc.OrgID())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	sub, err := h.subscriptions.UpdateSubscription(ctx, tc.OrgID(), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r, audit.EventTypeSubscriptionUpdate, audit.EventStatusSuccess)
	event.OrganizationID = &sub.OrganizationID
	event.ResourceType = audit.ResourceTypeSubscription
	event.ResourceID = sub.ID.String()
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"plan": string(before.Plan), "status": string(before.Status)},
		After:  map[string]interface{}{"plan": string(sub.Plan), "status": string(sub.Status)},
	}
	audit.Record(ctx, h.audit, event)

	httputil.WriteSuccess(w, newSubscriptionResponse(sub))
}
