// Package tracker is the application facade. It is the only writer of the
// store, orders multi-step operations, runs delete cascades and keeps an
// in-memory mirror of every collection for cheap reads.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/ocr"
	"github.com/dukerupert/homekeep/internal/store"
	"github.com/dukerupert/homekeep/internal/websocket"
)

var (
	ErrTaskNotFound     = fmt.Errorf("maintenance task: %w", store.ErrNotFound)
	ErrPropertyNotFound = fmt.Errorf("property: %w", store.ErrNotFound)
	ErrProviderNotFound = fmt.Errorf("service provider: %w", store.ErrNotFound)
	ErrWarrantyNotFound = fmt.Errorf("warranty: %w", store.ErrNotFound)

	// ErrCascadeDeleteIncomplete is matched by *CascadeError.
	ErrCascadeDeleteIncomplete = errors.New("cascade delete incomplete")

	// ErrStaleDueDate is returned by CompleteMaintenanceTask when the log was
	// written but the task update failed. RetryTaskUpdate repairs it.
	ErrStaleDueDate = errors.New("completion logged but due date not updated")
	// ErrNoCompletion is returned by RetryTaskUpdate for a task with no logs.
	ErrNoCompletion = errors.New("task has no logged completion")

	ErrClosed            = errors.New("tracker closed")
	ErrBillingDisabled   = errors.New("billing not configured")
	ErrDocumentsDisabled = errors.New("document storage not configured")
	ErrOCRDisabled       = errors.New("document scanning not configured")
)

// CascadeError reports the steps of a delete cascade that failed. Every step
// is idempotent, so the whole delete can be retried.
type CascadeError struct {
	Entity string
	ID     string
	Err    error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete %s %s: %v: %v", e.Entity, e.ID, ErrCascadeDeleteIncomplete, e.Err)
}

func (e *CascadeError) Unwrap() []error {
	return []error{ErrCascadeDeleteIncomplete, e.Err}
}

// Reminders is the notification scheduler.
type Reminders interface {
	Schedule(ctx context.Context, n *model.Notification) error
	Cancel(ctx context.Context, kind, refID string) error
}

// Broadcaster tells open clients that something changed.
type Broadcaster interface {
	Broadcast(msg websocket.Message) int
}

// Payments is the subscription provider.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, userID string) (string, error)
	CheckSubscriptionStatus(ctx context.Context, userID string) (billing.Status, error)
	CancelSubscription(ctx context.Context, userID string) (bool, error)
}

// Documents stores attachments and hands out download links.
type Documents interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// Extractor reads warranty hints out of a scanned document.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*ocr.Result, error)
}

// Deps are the collaborators of a Tracker. Only Stores is required; leave an
// optional collaborator nil to disable it.
type Deps struct {
	Stores    *store.Stores
	Reminders Reminders
	Hub       Broadcaster
	Payments  Payments
	Documents Documents
	OCR       Extractor
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

type mirror struct {
	properties []model.Property
	tasks      []model.MaintenanceTask
	warranties []model.Warranty
	providers  []model.ServiceProvider
	logs       []model.MaintenanceLog
}

type Tracker struct {
	stores    *store.Stores
	reminders Reminders
	hub       Broadcaster
	payments  Payments
	documents Documents
	ocr       Extractor
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	// writeMu serializes mutations so each one observes the previous.
	writeMu   sync.Mutex
	lastStamp time.Time
	closed    bool

	mu     sync.RWMutex
	mirror mirror
}

func New(deps Deps) *Tracker {
	t := &Tracker{
		stores:    deps.Stores,
		reminders: deps.Reminders,
		hub:       deps.Hub,
		payments:  deps.Payments,
		documents: deps.Documents,
		ocr:       deps.OCR,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	return t
}

// Init loads the mirror and makes sure the trial record exists.
func (t *Tracker) Init(ctx context.Context) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.ensureTrial(ctx); err != nil {
		return err
	}
	if err := t.loadMirror(ctx); err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	t.logger.Info("tracker initialized",
		"properties", len(t.mirror.properties),
		"tasks", len(t.mirror.tasks),
		"warranties", len(t.mirror.warranties))
	return nil
}

// Close rejects further mutations and drops the mirror. The stores are owned
// by the caller.
func (t *Tracker) Close() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.closed = true

	t.mu.Lock()
	t.mirror = mirror{}
	t.mu.Unlock()
}

// Refresh reloads the mirror from the store.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.loadMirror(ctx)
}

// begin takes the write lock for one mutation.
func (t *Tracker) begin() (func(), error) {
	t.writeMu.Lock()
	if t.closed {
		t.writeMu.Unlock()
		return nil, ErrClosed
	}
	return t.writeMu.Unlock, nil
}

func (t *Tracker) loadMirror(ctx context.Context) error {
	var m mirror
	var err error
	if m.properties, err = t.stores.Properties.List(ctx); err != nil {
		return err
	}
	if m.tasks, err = t.stores.Tasks.List(ctx); err != nil {
		return err
	}
	if m.warranties, err = t.stores.Warranties.List(ctx); err != nil {
		return err
	}
	if m.providers, err = t.stores.Providers.List(ctx); err != nil {
		return err
	}
	if m.logs, err = t.stores.Logs.List(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	t.mirror = m
	t.mu.Unlock()
	return nil
}

// refresh reloads the mirror after a mutation. The mutation itself already
// succeeded, so a failure only leaves the mirror stale until the next one.
func (t *Tracker) refresh(ctx context.Context) {
	if err := t.loadMirror(ctx); err != nil {
		t.logger.Error("refresh mirror", "error", err)
	}
}

// stamp returns the next record timestamp: UTC, millisecond precision and
// strictly increasing.
func (t *Tracker) stamp() time.Time {
	now := t.now().UTC().Truncate(time.Millisecond)
	if !now.After(t.lastStamp) {
		now = t.lastStamp.Add(time.Millisecond)
	}
	t.lastStamp = now
	return now
}

func (t *Tracker) broadcast(entity, action, id string, extra map[string]any) {
	if t.hub == nil {
		return
	}
	t.hub.Broadcast(websocket.NewMessage(entity, action, id, extra))
}

// storeErr counts storage failures per operation and passes err through.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrStorageUnavailable) {
		metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	return err
}
