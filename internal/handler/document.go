package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homekeep/internal/tracker"
)

type DocumentHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewDocumentHandler(t *tracker.Tracker, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{tracker: t, logger: logger}
}

// Upload handles POST /api/documents with a multipart "file" field. The
// returned key goes into a warranty's or log's documents.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name, contentType, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	key, err := h.tracker.AttachDocument(r.Context(), name, contentType, bytes.NewReader(data))
	if err != nil {
		respondErr(w, h.logger, err, "failed to store document")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// URL handles GET /api/documents/url?key=
func (h *DocumentHandler) URL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	url, err := h.tracker.DocumentURL(r.Context(), key)
	if err != nil {
		respondErr(w, h.logger, err, "failed to create download link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
