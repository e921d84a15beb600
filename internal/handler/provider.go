package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/tracker"
)

type ProviderHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewProviderHandler(t *tracker.Tracker, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{tracker: t, logger: logger}
}

type providerRequest struct {
	Name       string           `json:"name"`
	Categories []model.Category `json:"category"`
	Phone      string           `json:"phone"`
	Email      string           `json:"email"`
	Website    string           `json:"website"`
	Notes      string           `json:"notes"`
	Rating     int              `json:"rating"`
}

// toModel checks the fields a provider needs. The facade does not repeat
// these checks.
func (req *providerRequest) toModel() (model.ServiceProvider, string) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return model.ServiceProvider{}, "name is required"
	case len(req.Categories) == 0:
		return model.ServiceProvider{}, "at least one category is required"
	case req.Rating < 0 || req.Rating > 5:
		return model.ServiceProvider{}, "rating must be between 0 and 5"
	}
	for _, c := range req.Categories {
		if !c.Valid() {
			return model.ServiceProvider{}, "unknown category " + string(c)
		}
	}
	return model.ServiceProvider{
		Name:       name,
		Categories: req.Categories,
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Website:    strings.TrimSpace(req.Website),
		Notes:      req.Notes,
		Rating:     req.Rating,
	}, ""
}

// List handles GET /api/providers
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.tracker.ServiceProviders()))
}

// Create handles POST /api/providers
func (h *ProviderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.tracker.AddServiceProvider(r.Context(), p)
	if err != nil {
		respondErr(w, h.logger, err, "failed to create provider")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/providers/{id}
func (h *ProviderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	p.ID = r.PathValue("id")

	updated, err := h.tracker.UpdateServiceProvider(r.Context(), p)
	if err != nil {
		respondErr(w, h.logger, err, "failed to update provider")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/providers/{id}
func (h *ProviderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteServiceProvider(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, h.logger, err, "failed to delete provider")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
