package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/homekeep/internal/auth"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, publicKey: vapidPublicKey, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	sub := &model.PushSubscription{
		ID:         uuid.NewString(),
		UserID:     auth.UserID(r.Context()),
		Endpoint:   req.Endpoint,
		P256dhKey:  req.P256dh,
		AuthKey:    req.Auth,
		DeviceName: req.DeviceName,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.pushStore.Save(r.Context(), sub); err != nil {
		respondErr(w, h.logger, err, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe handles DELETE /api/push/subscribe
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if err := h.pushStore.DeleteByEndpoint(r.Context(), req.Endpoint); err != nil {
		respondErr(w, h.logger, err, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}
