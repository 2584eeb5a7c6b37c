// Package billing manages organization subscriptions and gates paid
// features.
//
// # Plans and limits
//
// Limits derive from the plan alone:
//
//	FREE  predictions=10    storage_mb=100
//	PRO   predictions=1000  storage_mb=1000
//
// # Quota guard
//
// Guard.Check answers "may this organization use this feature now". It
// denies, in order, when the organization is absent, when no subscription
// exists, and when the subscription is not ACTIVE. Usage counting against
// the limit is optional and enabled per feature with Guard.CountUsage.
//
//	guard := billing.NewGuard(store, metrics)
//	if err := guard.Enforce(ctx, org, billing.FeaturePredictions); err != nil {
//		return err // *billing.QuotaExceededError
//	}
//
// Every organization gets exactly one FREE/ACTIVE subscription when it is
// created; DefaultSubscriptionHook plugs that into orgs.CreateOrganization.
package billing
