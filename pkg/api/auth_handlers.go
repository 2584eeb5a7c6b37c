package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/middleware"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// AuthHandlers handles authentication endpoints
type AuthHandlers struct {
	auth    *auth.Service
	orgs    orgs.MembershipLookup
	limiter middleware.RateLimiter
	audit   audit.Logger
}

// NewAuthHandlers creates new authentication handlers. limiter and auditLog
// may be nil.
func NewAuthHandlers(authService *auth.Service, memberships orgs.MembershipLookup, limiter middleware.RateLimiter, auditLog audit.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, orgs: memberships, limiter: limiter, audit: auditLogger(auditLog)}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.limiter != nil {
		login = middleware.RateLimitMiddleware(h.limiter, "login")(login)
	}
	router.Handle("/auth/login", login).Methods(http.MethodPost)
	router.HandleFunc("/me", h.me).Methods(http.MethodGet)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login exchanges credentials for an access token
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var errs validation.Errors
	validation.Required(&errs, "email", strings.TrimSpace(req.Email))
	validation.Required(&errs, "password", req.Password)
	if err := errs.Err(); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		event := audit.NewEvent(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
		event.UserEmail = strings.ToLower(strings.TrimSpace(req.Email))
		audit.Record(r.Context(), h.audit, event)
	}
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess)
	event.UserID = &result.User.ID
	event.UserEmail = result.User.Email
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = result.User.ID.String()
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteSuccess(w, result)
}

type meResponse struct {
	User        *auth.User         `json:"user"`
	Memberships []*orgs.Membership `json:"memberships"`
}

// me returns the authenticated user and every membership it holds
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.Principal(r.Context())
	if user == nil {
		httputil.WriteDomainError(w, r, tenancy.ErrAuthenticationRequired)
		return
	}

	memberships, err := h.orgs.ListMembershipsForUser(r.Context(), user.ID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if memberships == nil {
		memberships = []*orgs.Membership{}
	}
	httputil.WriteSuccess(w, meResponse{User: user, Memberships: memberships})
}
