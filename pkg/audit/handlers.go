package audit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// Handlers serves audit event search on the admin surface
type Handlers struct {
	store Store
}

// NewHandlers creates audit handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit-events", h.SearchEvents).Methods(http.MethodGet)
}

// SearchEvents lists events matching the query parameters
func (h *Handlers) SearchEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}
	httputil.WriteSuccess(w, events)
}

func parseFilter(r *http.Request) (SearchFilter, error) {
	var (
		filter SearchFilter
		errs   validation.Errors
		err    error
	)
	q := r.URL.Query()

	if filter.OrganizationID, err = httputil.ParseQueryUUID(r, "organization_id"); err != nil {
		errs.Add("organization_id", "Must be a valid UUID.")
	}
	if filter.UserID, err = httputil.ParseQueryUUID(r, "user_id"); err != nil {
		errs.Add("user_id", "Must be a valid UUID.")
	}
	for _, raw := range q["event_type"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, EventType(t))
			}
		}
	}
	var ok bool
	if filter.StartTime, ok = parseTime(q.Get("start")); !ok {
		errs.Add("start", "Must be an RFC 3339 timestamp.")
	}
	if filter.EndTime, ok = parseTime(q.Get("end")); !ok {
		errs.Add("end", "Must be an RFC 3339 timestamp.")
	}
	if filter.Limit, ok = parseInt(q.Get("limit")); !ok {
		errs.Add("limit", "Must be a non-negative integer.")
	}
	if filter.Offset, ok = parseInt(q.Get("offset")); !ok {
		errs.Add("offset", "Must be a non-negative integer.")
	}
	return filter, errs.Err()
}

func parseTime(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
