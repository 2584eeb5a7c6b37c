package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/httputil"
)

// PredictionHandlers handles spectral analysis jobs
type PredictionHandlers struct {
	jobs *analysis.Manager
}

// NewPredictionHandlers creates prediction handlers
func NewPredictionHandlers(jobs *analysis.Manager) *PredictionHandlers {
	return &PredictionHandlers{jobs: jobs}
}

// RegisterRoutes registers prediction routes
func (h *PredictionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/predictions", h.List).Methods(http.MethodGet)
	router.HandleFunc("/predictions", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/predictions/{id}", h.Get).Methods(http.MethodGet)
}

// List lists the caller's organization's jobs, newest first
func (h *PredictionHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	jobs, err := h.jobs.List(ctx, tc)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*analysis.Job{}
	}
	httputil.WriteSuccess(w, jobs)
}

// Create submits spectra for analysis. The response is the PENDING job;
// clients poll Get for the outcome.
func (h *PredictionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	var req analysis.CreateJobRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	job, err := h.jobs.Submit(ctx, tc, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, job)
}

// Get returns one job
func (h *PredictionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(ctx, tc, id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, job)
}
