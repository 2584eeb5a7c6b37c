package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/samples"
)

// SampleHandlers handles soil sample requests
type SampleHandlers struct {
	samples *samples.Service
}

// NewSampleHandlers creates soil sample handlers
func NewSampleHandlers(service *samples.Service) *SampleHandlers {
	return &SampleHandlers{samples: service}
}

// RegisterRoutes registers soil sample routes
func (h *SampleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/soil-samples", h.List).Methods(http.MethodGet)
	router.HandleFunc("/soil-samples", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/soil-samples/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/soil-samples/{id}", h.Update).Methods(http.MethodPatch)
	router.HandleFunc("/soil-samples/{id}", h.Delete).Methods(http.MethodDelete)
}

// List lists the samples of the caller's organization
func (h *SampleHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	list, err := h.samples.ListSamples(ctx, tc)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*samples.SoilSample{}
	}
	httputil.WriteSuccess(w, list)
}

// Create records a sample uploaded by the caller
func (h *SampleHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	var req samples.CreateSampleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sample, err := h.samples.CreateSample(ctx, tc, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sample)
}

// Get returns one sample
func (h *SampleHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	sample, err := h.samples.GetSample(ctx, tc, id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sample)
}

// Update applies a partial update
func (h *SampleHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	var req samples.UpdateSampleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	sample, err := h.samples.UpdateSample(ctx, tc, id, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sample)
}

// Delete deletes a sample
func (h *SampleHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.samples.DeleteSample(ctx, tc, id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
