package httputil

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/farms"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/samples"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

var notFound = []error{
	farms.ErrFarmNotFound,
	farms.ErrFieldNotFound,
	samples.ErrSampleNotFound,
	analysis.ErrJobNotFound,
	orgs.ErrOrganizationNotFound,
	orgs.ErrMemberNotFound,
	auth.ErrUserNotFound,
	billing.ErrSubscriptionNotFound,
}

var conflict = []error{
	orgs.ErrOrganizationExists,
	orgs.ErrMemberExists,
	auth.ErrUserExists,
}

// StatusFor maps a domain error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, tenancy.ErrAuthenticationRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, tenancy.ErrUnassignedTenant),
		errors.Is(err, tenancy.ErrOrganizationSelectorRequired),
		errors.Is(err, rbac.ErrForbidden),
		errors.Is(err, billing.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, validation.ErrValidationFailed):
		return http.StatusBadRequest
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range conflict {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// WriteDomainError writes err with the status StatusFor picks. Unmapped
// errors are logged and answered with a generic 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	var quota *billing.QuotaExceededError
	switch {
	case status == http.StatusInternalServerError:
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		WriteInternalError(w)
	case errors.As(err, &quota):
		WriteJSON(w, status, ErrorResponse{Error: billing.ErrQuotaExceeded.Error(), Reason: quota.Reason})
	case status == http.StatusBadRequest:
		WriteValidationError(w, err)
	default:
		WriteError(w, status, err)
	}
}

// WriteValidationError writes a 400 listing the rejected fields. Errors
// without a field are reported under "non_field_errors".
func WriteValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: validation.ErrValidationFailed.Error(), Fields: map[string][]string{}}
	for _, fe := range validation.Fields(err) {
		field := fe.Field
		if field == "" {
			field = "non_field_errors"
		}
		resp.Fields[field] = append(resp.Fields[field], fe.Message)
	}
	if len(resp.Fields) == 0 {
		resp.Error = err.Error()
		resp.Fields = nil
	}
	WriteJSON(w, http.StatusBadRequest, resp)
}
