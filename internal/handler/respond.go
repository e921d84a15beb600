package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/documents"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/ocr"
	"github.com/dukerupert/homekeep/internal/recurrence"
	"github.com/dukerupert/homekeep/internal/store"
	"github.com/dukerupert/homekeep/internal/tracker"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// nouns are used in the message of a failed delete cascade.
var nouns = map[string]string{
	"property":         "property",
	"maintenance_task": "task",
	"warranty":         "warranty",
}

// respondErr maps facade errors to a status and a message safe to show.
// Unexpected errors are logged and reported as msg.
func respondErr(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	var cascade *tracker.CascadeError
	var invalid *model.ValidationError
	switch {
	case errors.As(err, &cascade):
		logger.Error("delete cascade incomplete", "entity", cascade.Entity, "id", cascade.ID, "error", err)
		noun := nouns[cascade.Entity]
		if noun == "" {
			noun = "record"
		}
		writeError(w, http.StatusInternalServerError, "there was an error deleting this "+noun)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, recurrence.ErrInvalidFrequencyUnit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, tracker.ErrPropertyNotFound):
		writeError(w, http.StatusNotFound, "property not found")
	case errors.Is(err, tracker.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "service provider not found")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, tracker.ErrNoCompletion):
		writeError(w, http.StatusConflict, "task has no logged completion")
	case errors.Is(err, documents.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
	case errors.Is(err, documents.ErrInvalidKey), errors.Is(err, billing.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracker.ErrBillingDisabled),
		errors.Is(err, tracker.ErrDocumentsDisabled),
		errors.Is(err, tracker.ErrOCRDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, ocr.ErrUnavailable):
		logger.Warn("ocr unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "document scanning is unavailable, try again later")
	case errors.Is(err, store.ErrStorageUnavailable), errors.Is(err, tracker.ErrClosed):
		logger.Error("storage unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, try again later")
	default:
		logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// orEmpty keeps list responses as [] instead of null.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
