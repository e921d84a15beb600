// Package server wires the stores, facade, reminder scheduler and optional
// integrations into one HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/homekeep/internal/auth"
	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/config"
	"github.com/dukerupert/homekeep/internal/documents"
	"github.com/dukerupert/homekeep/internal/handler"
	"github.com/dukerupert/homekeep/internal/middleware"
	"github.com/dukerupert/homekeep/internal/notify"
	"github.com/dukerupert/homekeep/internal/ocr"
	"github.com/dukerupert/homekeep/internal/push"
	"github.com/dukerupert/homekeep/internal/store"
	"github.com/dukerupert/homekeep/internal/tracker"
	ws "github.com/dukerupert/homekeep/internal/websocket"
)

const (
	scanLimit       = 10
	scanPeriod      = time.Minute
	cleanupInterval = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg         *config.Config
	hub         *ws.Hub
	tracker     *tracker.Tracker
	scheduler   *notify.Scheduler
	verifier    *auth.Verifier
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger

	propertyH     *handler.PropertyHandler
	taskH         *handler.TaskHandler
	warrantyH     *handler.WarrantyHandler
	providerH     *handler.ProviderHandler
	documentH     *handler.DocumentHandler
	subscriptionH *handler.SubscriptionHandler
	pushH         *handler.PushHandler
}

// New builds the server over opened stores and loads the facade mirror.
// Integrations whose settings are empty stay disabled.
func New(ctx context.Context, cfg *config.Config, stores *store.Stores, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	// Assign optional integrations only when configured, so the facade sees
	// a nil interface rather than a nil pointer.
	pushSvc := push.NewService(cfg.Push())
	var sender notify.Sender
	if pushSvc != nil {
		sender = pushSvc
	} else {
		logger.Info("push notifications disabled, reminders fall back to in-app toasts")
	}
	sched := notify.NewScheduler(stores.Notifications, stores.Push, sender, hub, logger.With("component", "notify"))

	deps := tracker.Deps{
		Stores:    stores,
		Reminders: sched,
		Hub:       hub,
		Logger:    logger.With("component", "tracker"),
	}
	if docs := documents.New(cfg.Documents()); docs != nil {
		deps.Documents = docs
	} else {
		logger.Info("document storage disabled")
	}
	if oc := ocr.NewClient(cfg.OCR()); oc != nil {
		deps.OCR = oc
	} else {
		logger.Info("document scanning disabled")
	}
	var webhooks handler.WebhookParser
	if bc := billing.NewClient(cfg.Billing()); bc != nil {
		deps.Payments = bc
		webhooks = bc
	} else {
		logger.Info("billing disabled")
	}

	tr := tracker.New(deps)
	if err := tr.Init(ctx); err != nil {
		return nil, fmt.Errorf("init tracker: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		hub:         hub,
		tracker:     tr,
		scheduler:   sched,
		verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,

		propertyH:     handler.NewPropertyHandler(tr, logger.With("component", "property")),
		taskH:         handler.NewTaskHandler(tr, logger.With("component", "task")),
		warrantyH:     handler.NewWarrantyHandler(tr, logger.With("component", "warranty")),
		providerH:     handler.NewProviderHandler(tr, logger.With("component", "provider")),
		documentH:     handler.NewDocumentHandler(tr, logger.With("component", "document")),
		subscriptionH: handler.NewSubscriptionHandler(tr, webhooks, logger.With("component", "subscription")),
	}
	if pushSvc != nil {
		s.pushH = handler.NewPushHandler(stores.Push, pushSvc.VAPIDPublicKey(), logger.With("component", "push_handler"))
	}
	return s, nil
}

// Tracker returns the facade.
func (s *Server) Tracker() *tracker.Tracker {
	return s.tracker
}

// Scheduler returns the reminder scheduler.
func (s *Server) Scheduler() *notify.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", promhttp.Handler())
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))
	outerMux.HandleFunc("POST /webhooks/stripe", s.subscriptionH.Webhook)

	// Protected routes, wrapped with RequireBearer
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	authMiddleware := middleware.RequireBearer(s.verifier, s.logger.With("component", "auth"))
	outerMux.Handle("/api/", authMiddleware(apiMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":            "ok",
		"pending_reminders": s.scheduler.Pending(),
		"clients":           s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.UserOrIP, scanLimit, scanPeriod)(h)
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/properties", s.propertyH.List)
	mux.HandleFunc("POST /api/properties", s.propertyH.Create)
	mux.HandleFunc("PUT /api/properties/{id}", s.propertyH.Update)
	mux.HandleFunc("DELETE /api/properties/{id}", s.propertyH.Delete)

	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/retry", s.taskH.Retry)
	mux.HandleFunc("GET /api/tasks/{id}/logs", s.taskH.Logs)
	mux.HandleFunc("DELETE /api/logs/{id}", s.taskH.DeleteLog)

	mux.HandleFunc("GET /api/warranties", s.warrantyH.List)
	mux.HandleFunc("POST /api/warranties", s.warrantyH.Create)
	mux.Handle("POST /api/warranties/scan", s.rateLimitedHandler(s.warrantyH.Scan))
	mux.HandleFunc("PUT /api/warranties/{id}", s.warrantyH.Update)
	mux.HandleFunc("DELETE /api/warranties/{id}", s.warrantyH.Delete)

	mux.HandleFunc("GET /api/providers", s.providerH.List)
	mux.HandleFunc("POST /api/providers", s.providerH.Create)
	mux.HandleFunc("PUT /api/providers/{id}", s.providerH.Update)
	mux.HandleFunc("DELETE /api/providers/{id}", s.providerH.Delete)

	mux.HandleFunc("POST /api/documents", s.documentH.Upload)
	mux.HandleFunc("GET /api/documents/url", s.documentH.URL)

	mux.HandleFunc("GET /api/trial", s.subscriptionH.Trial)
	mux.HandleFunc("POST /api/subscription/checkout", s.subscriptionH.Checkout)
	mux.HandleFunc("POST /api/subscription/sync", s.subscriptionH.Sync)
	mux.HandleFunc("POST /api/subscription/cancel", s.subscriptionH.Cancel)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
	}
}

// Run serves HTTP on addr and runs the scheduler and rate limiter cleanup
// until ctx is cancelled, then shuts everything down.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	defer s.scheduler.Stop()
	defer s.tracker.Close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("homekeep listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.rateLimiter.RunCleanup(gctx, cleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
