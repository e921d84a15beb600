// Package notify keeps the durable reminder schedule and delivers reminders
// when they come due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/push"
	"github.com/dukerupert/homekeep/internal/store"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// ErrDeliveryFailed means no system notification reached any device. It is
// logged and answered with an in-app toast, never returned to callers of
// Schedule.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Sender delivers a web push message to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

// Broadcaster shows an in-app toast to every open tab and reports how many
// tabs received it.
type Broadcaster interface {
	Broadcast(msg websocket.Message) int
}

const (
	deliveryTimeout = 30 * time.Second
	pruneInterval   = time.Hour
	// Sent reminders are kept this long before pruning.
	retention = 30 * 24 * time.Hour
)

type armed struct {
	id    string
	timer *time.Timer
}

// Scheduler persists each reminder before arming a one-shot timer for it, so
// reminders survive restarts: Start re-arms every pending row.
type Scheduler struct {
	notifications *store.NotificationStore
	subs          *store.PushStore
	sender        Sender
	toasts        Broadcaster
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	timers  map[string]armed
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. sender and toasts may be nil when the
// corresponding channel is unavailable.
func NewScheduler(notifications *store.NotificationStore, subs *store.PushStore, sender Sender, toasts Broadcaster, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		notifications: notifications,
		subs:          subs,
		sender:        sender,
		toasts:        toasts,
		logger:        logger,
		now:           time.Now,
		timers:        make(map[string]armed),
	}
}

func key(kind, refID string) string {
	return kind + "/" + refID
}

// Schedule stores n as the pending reminder for its (Kind, RefID), replacing
// any earlier one. A running scheduler fires it at once when FireAt is not in
// the future and arms a timer otherwise.
func (s *Scheduler) Schedule(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if err := s.notifications.Replace(ctx, n); err != nil {
		return fmt.Errorf("schedule %s reminder: %w", n.Kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(*n)
	return nil
}

// Cancel drops the pending reminder for an entity and disarms its timer.
func (s *Scheduler) Cancel(ctx context.Context, kind, refID string) error {
	s.mu.Lock()
	s.disarmLocked(key(kind, refID))
	s.mu.Unlock()

	if err := s.notifications.DeletePending(ctx, kind, refID); err != nil {
		return fmt.Errorf("cancel %s reminder: %w", kind, err)
	}
	return nil
}

// Pending reports the armed reminder count.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Start re-arms every pending reminder, firing overdue ones immediately, and
// begins pruning old sent reminders.
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.notifications.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending reminders: %w", err)
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	for _, n := range pending {
		s.armLocked(n)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("reminder scheduler started", "pending", len(pending))

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.prune()
			}
		}
	}()
	return nil
}

// Stop disarms all timers and waits for in-flight deliveries. Pending rows
// stay in the store for the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for k := range s.timers {
		s.disarmLocked(k)
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Scheduler) armLocked(n model.Notification) {
	k := key(n.Kind, n.RefID)
	s.disarmLocked(k)
	if !s.running {
		return
	}

	delay := n.FireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[k] = armed{
		id:    n.ID,
		timer: time.AfterFunc(delay, func() { s.fire(k, n) }),
	}
	metrics.PendingReminders.Set(float64(len(s.timers)))
}

func (s *Scheduler) disarmLocked(k string) {
	if a, ok := s.timers[k]; ok {
		a.timer.Stop()
		delete(s.timers, k)
		metrics.PendingReminders.Set(float64(len(s.timers)))
	}
}

func (s *Scheduler) fire(k string, n model.Notification) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if a, ok := s.timers[k]; ok && a.id == n.ID {
		delete(s.timers, k)
		metrics.PendingReminders.Set(float64(len(s.timers)))
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	claimed, err := s.notifications.MarkSent(ctx, n.ID, s.now().UTC())
	if err != nil {
		s.logger.Error("claim reminder", "id", n.ID, "kind", n.Kind, "error", err)
		return
	}
	if !claimed {
		return
	}

	channel := s.deliver(ctx, n)
	metrics.NotificationsFired.WithLabelValues(n.Kind, channel).Inc()
	s.logger.Info("reminder fired", "kind", n.Kind, "ref_id", n.RefID, "channel", channel)
}

// deliver tries web push first and falls back to a toast. It returns the
// channel that carried the reminder.
func (s *Scheduler) deliver(ctx context.Context, n model.Notification) string {
	err := s.sendPush(ctx, n)
	if err == nil {
		return "push"
	}
	s.logger.Debug("push delivery failed, falling back to toast", "kind", n.Kind, "ref_id", n.RefID, "error", err)

	if s.toasts != nil {
		extra := map[string]any{"kind": n.Kind, "ref_id": n.RefID}
		if s.toasts.Broadcast(websocket.NewToast(n.Title, n.Body, extra)) > 0 {
			return "toast"
		}
	}
	s.logger.Warn("reminder not delivered", "kind", n.Kind, "ref_id", n.RefID, "error", err)
	return "none"
}

func (s *Scheduler) sendPush(ctx context.Context, n model.Notification) error {
	if s.sender == nil {
		return fmt.Errorf("%w: push disabled", ErrDeliveryFailed)
	}
	subs, err := s.subs.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if len(subs) == 0 {
		return fmt.Errorf("%w: no push subscriptions", ErrDeliveryFailed)
	}

	payload := push.Payload{
		Title: n.Title,
		Body:  n.Body,
		URL:   targetURL(n),
		Tag:   key(n.Kind, n.RefID),
	}

	var errs []error
	sent := 0
	for _, sub := range subs {
		err := s.sender.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, push.ErrExpired):
			if derr := s.subs.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
				s.logger.Error("delete expired push subscription", "error", derr)
			}
			errs = append(errs, err)
		default:
			errs = append(errs, err)
		}
	}
	if sent == 0 {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, errors.Join(errs...))
	}
	return nil
}

func targetURL(n model.Notification) string {
	switch n.Kind {
	case model.NotifKindTaskDue:
		return "/tasks/" + n.RefID
	case model.NotifKindWarrantyExpiry:
		return "/warranties/" + n.RefID
	}
	return "/"
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(s.ctx, deliveryTimeout)
	defer cancel()

	n, err := s.notifications.DeleteSentBefore(ctx, s.now().Add(-retention))
	if err != nil {
		s.logger.Error("prune sent reminders", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("pruned sent reminders", "count", n)
	}
}
