package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/farms"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// FarmHandlers handles farm and field requests
type FarmHandlers struct {
	farms *farms.Service
}

// NewFarmHandlers creates farm handlers
func NewFarmHandlers(service *farms.Service) *FarmHandlers {
	return &FarmHandlers{farms: service}
}

// RegisterRoutes registers agronomy routes
func (h *FarmHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/agronomy/farms", h.ListFarms).Methods(http.MethodGet)
	router.HandleFunc("/agronomy/farms", h.CreateFarm).Methods(http.MethodPost)
	router.HandleFunc("/agronomy/farms/{id}", h.GetFarm).Methods(http.MethodGet)
	router.HandleFunc("/agronomy/farms/{id}", h.UpdateFarm).Methods(http.MethodPatch)
	router.HandleFunc("/agronomy/farms/{id}", h.DeleteFarm).Methods(http.MethodDelete)

	router.HandleFunc("/agronomy/fields", h.ListFields).Methods(http.MethodGet)
	router.HandleFunc("/agronomy/fields", h.CreateField).Methods(http.MethodPost)
	router.HandleFunc("/agronomy/fields/{id}", h.GetField).Methods(http.MethodGet)
	router.HandleFunc("/agronomy/fields/{id}", h.UpdateField).Methods(http.MethodPatch)
	router.HandleFunc("/agronomy/fields/{id}", h.DeleteField).Methods(http.MethodDelete)
}

// ListFarms lists the farms visible to the caller
func (h *FarmHandlers) ListFarms(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	list, err := h.farms.ListFarms(ctx, tc)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*farms.Farm{}
	}
	httputil.WriteSuccess(w, list)
}

// CreateFarm creates a farm owned by the caller
func (h *FarmHandlers) CreateFarm(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	var req farms.CreateFarmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	farm, err := h.farms.CreateFarm(ctx, tc, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, farm)
}

// GetFarm returns a farm with its fields
func (h *FarmHandlers) GetFarm(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	farm, err := h.farms.GetFarm(ctx, tc, id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, farm)
}

// UpdateFarm applies a partial update
func (h *FarmHandlers) UpdateFarm(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	var req farms.UpdateFarmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	farm, err := h.farms.UpdateFarm(ctx, tc, id, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, farm)
}

// DeleteFarm deletes a farm and its fields
func (h *FarmHandlers) DeleteFarm(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.farms.DeleteFarm(ctx, tc, id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListFields lists visible fields, optionally narrowed with ?farm=<id>
func (h *FarmHandlers) ListFields(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	farmID, err := httputil.ParseQueryUUID(r, "farm")
	if err != nil {
		httputil.WriteDomainError(w, r, validation.New("farm", err.Error()))
		return
	}
	list, err := h.farms.ListFields(ctx, tc, farmID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*farms.Field{}
	}
	httputil.WriteSuccess(w, list)
}

// CreateField adds a field to a farm
func (h *FarmHandlers) CreateField(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	var req farms.CreateFieldRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	field, err := h.farms.CreateField(ctx, tc, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, field)
}

// GetField returns one field
func (h *FarmHandlers) GetField(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	field, err := h.farms.GetField(ctx, tc, id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, field)
}

// UpdateField applies a partial update
func (h *FarmHandlers) UpdateField(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	var req farms.UpdateFieldRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	field, err := h.farms.UpdateField(ctx, tc, id, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, field)
}

// DeleteField deletes a field
func (h *FarmHandlers) DeleteField(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.farms.DeleteField(ctx, tc, id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
