package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homekeep/internal/auth"
	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/tracker"
)

// WebhookParser verifies payment provider webhooks.
type WebhookParser interface {
	ParseWebhook(payload []byte, sigHeader string) (*billing.SubscriptionEvent, error)
}

type SubscriptionHandler struct {
	tracker  *tracker.Tracker
	webhooks WebhookParser
	logger   *slog.Logger
}

// NewSubscriptionHandler builds the handler. webhooks may be nil when
// billing is not configured; the webhook endpoint then answers 501.
func NewSubscriptionHandler(t *tracker.Tracker, webhooks WebhookParser, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{tracker: t, webhooks: webhooks, logger: logger}
}

// Trial handles GET /api/trial
func (h *SubscriptionHandler) Trial(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.TrialStatus(r.Context())
	if err != nil {
		respondErr(w, h.logger, err, "failed to load trial")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Checkout handles POST /api/subscription/checkout
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	url, err := h.tracker.CreateCheckoutSession(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "failed to start checkout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Sync handles POST /api/subscription/sync
func (h *SubscriptionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.SyncSubscription(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "failed to sync subscription")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Cancel handles POST /api/subscription/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, err := h.tracker.CancelSubscription(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "failed to cancel subscription")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Webhook handles POST /webhooks/stripe. Events that do not concern a
// subscription are acknowledged so Stripe stops retrying them.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		writeError(w, http.StatusNotImplemented, tracker.ErrBillingDisabled.Error())
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	ev, err := h.webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrIgnoredEvent):
		metrics.WebhookEvents.WithLabelValues("other", "ignored").Inc()
		h.logger.Debug("webhook ignored", "reason", err)
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		h.logger.Warn("webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid webhook")
		return
	}

	s, err := h.tracker.ApplySubscription(r.Context(), ev.Status)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "failed").Inc()
		respondErr(w, h.logger, err, "failed to apply subscription")
		return
	}
	metrics.WebhookEvents.WithLabelValues(ev.Type, "applied").Inc()
	h.logger.Info("subscription updated", "event", ev.Type, "user_id", ev.UserID, "pro", s.IsPro)
	w.WriteHeader(http.StatusOK)
}
