package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/tracker"
)

type PropertyHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewPropertyHandler(t *tracker.Tracker, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{tracker: t, logger: logger}
}

type propertyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (req *propertyRequest) toModel() (model.Property, string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Property{}, "name is required"
	}
	return model.Property{Name: name, Address: strings.TrimSpace(req.Address)}, ""
}

// List handles GET /api/properties
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(h.tracker.Properties()))
}

// Create handles POST /api/properties
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req propertyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.tracker.AddProperty(r.Context(), p)
	if err != nil {
		respondErr(w, h.logger, err, "failed to create property")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/properties/{id}
func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req propertyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	p.ID = r.PathValue("id")

	updated, err := h.tracker.UpdateProperty(r.Context(), p)
	if err != nil {
		respondErr(w, h.logger, err, "failed to update property")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/properties/{id}
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteProperty(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, h.logger, err, "failed to delete property")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
