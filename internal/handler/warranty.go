package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homekeep/internal/documents"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/tracker"
)

type WarrantyHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewWarrantyHandler(t *tracker.Tracker, logger *slog.Logger) *WarrantyHandler {
	return &WarrantyHandler{tracker: t, logger: logger}
}

type warrantyRequest struct {
	PropertyID   string    `json:"property_id"`
	ItemName     string    `json:"item_name"`
	Manufacturer string    `json:"manufacturer"`
	Category     string    `json:"category"`
	PurchaseDate time.Time `json:"purchase_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Description  string    `json:"description"`
	Documents    []string  `json:"documents"`
}

func (req *warrantyRequest) toModel() (model.Warranty, string) {
	item := strings.TrimSpace(req.ItemName)
	switch {
	case item == "":
		return model.Warranty{}, "item_name is required"
	case req.ExpiryDate.IsZero():
		return model.Warranty{}, "expiry_date is required"
	}
	return model.Warranty{
		PropertyID:   req.PropertyID,
		ItemName:     item,
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Category:     model.Category(req.Category),
		PurchaseDate: req.PurchaseDate.UTC(),
		ExpiryDate:   req.ExpiryDate.UTC(),
		Description:  req.Description,
		Documents:    req.Documents,
	}, ""
}

// List handles GET /api/warranties, optionally filtered by ?property_id=
func (h *WarrantyHandler) List(w http.ResponseWriter, r *http.Request) {
	if pid := r.URL.Query().Get("property_id"); pid != "" {
		writeJSON(w, http.StatusOK, orEmpty(h.tracker.WarrantiesForProperty(pid)))
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(h.tracker.Warranties()))
}

// Create handles POST /api/warranties
func (h *WarrantyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req warrantyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wr, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := h.tracker.AddWarranty(r.Context(), wr)
	if err != nil {
		respondErr(w, h.logger, err, "failed to create warranty")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/warranties/{id}
func (h *WarrantyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req warrantyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wr, msg := req.toModel()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	wr.ID = r.PathValue("id")

	updated, err := h.tracker.UpdateWarranty(r.Context(), wr)
	if err != nil {
		respondErr(w, h.logger, err, "failed to update warranty")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/warranties/{id}
func (h *WarrantyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteWarranty(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, h.logger, err, "failed to delete warranty")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scan handles POST /api/warranties/scan with a multipart "file" field and
// returns a draft to pre-fill the warranty form. Nothing is saved.
func (h *WarrantyHandler) Scan(w http.ResponseWriter, r *http.Request) {
	name, _, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	draft, err := h.tracker.DraftWarrantyFromDocument(r.Context(), name, data)
	if err != nil {
		respondErr(w, h.logger, err, "failed to scan document")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// readUpload reads the multipart "file" field, bounded by documents.MaxSize.
func readUpload(w http.ResponseWriter, r *http.Request) (name, contentType string, data []byte, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, documents.MaxSize+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return "", "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, documents.MaxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return "", "", nil, false
	}
	if len(data) > documents.MaxSize {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return "", "", nil, false
	}
	contentType = header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return header.Filename, contentType, data, true
}
