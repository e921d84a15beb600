package tracker

import (
	"context"
	"fmt"

	"github.com/dukerupert/homekeep/internal/billing"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/trial"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// ensureTrial returns the trial record, creating the 14 day window on first
// use. Concurrent first calls create it once.
func (t *Tracker) ensureTrial(ctx context.Context) (*model.TrialInfo, error) {
	info, err := t.stores.Trial.Get(ctx)
	if err != nil {
		return nil, storeErr("get_trial", err)
	}
	if info != nil {
		return info, nil
	}

	created, err := t.stores.Trial.CreateIfAbsent(ctx, trial.New(t.now()))
	if err != nil {
		return nil, storeErr("create_trial", err)
	}
	if created {
		t.logger.Info("trial started")
	}
	info, err = t.stores.Trial.Get(ctx)
	if err != nil {
		return nil, storeErr("get_trial", err)
	}
	if info == nil {
		return nil, fmt.Errorf("trial record missing after create")
	}
	return info, nil
}

// TrialStatus derives the current trial state. It is recomputed on every
// call; the stored IsActive flag is not consulted.
func (t *Tracker) TrialStatus(ctx context.Context) (trial.Status, error) {
	unlock, err := t.begin()
	if err != nil {
		return trial.Status{}, err
	}
	defer unlock()

	info, err := t.ensureTrial(ctx)
	if err != nil {
		return trial.Status{}, err
	}
	return trial.Derive(t.now(), *info), nil
}

// UpdateTrialInfo writes the raw trial record, refreshing its IsActive cache.
func (t *Tracker) UpdateTrialInfo(ctx context.Context, info model.TrialInfo) (trial.Status, error) {
	unlock, err := t.begin()
	if err != nil {
		return trial.Status{}, err
	}
	defer unlock()
	return t.writeTrial(ctx, info)
}

func (t *Tracker) writeTrial(ctx context.Context, info model.TrialInfo) (trial.Status, error) {
	now := t.now()
	status := trial.Derive(now, info)
	info.IsActive = status.IsActive
	info.UpdatedAt = t.stamp()
	if err := t.stores.Trial.Upsert(ctx, &info); err != nil {
		return trial.Status{}, storeErr("update_trial", err)
	}
	t.broadcast(websocket.EntityTrial, websocket.ActionUpdated, model.TrialKey, map[string]any{
		"is_active": status.IsActive,
		"is_pro":    status.IsPro,
	})
	return status, nil
}

// ApplySubscription folds a provider report into the trial record. It is
// used by SyncSubscription and by the payment webhook.
func (t *Tracker) ApplySubscription(ctx context.Context, s billing.Status) (trial.Status, error) {
	unlock, err := t.begin()
	if err != nil {
		return trial.Status{}, err
	}
	defer unlock()
	return t.applySubscription(ctx, s)
}

func (t *Tracker) applySubscription(ctx context.Context, s billing.Status) (trial.Status, error) {
	info, err := t.ensureTrial(ctx)
	if err != nil {
		return trial.Status{}, err
	}
	folded := trial.Fold(t.now(), *info, trial.Subscription{
		Active:            s.Active,
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	})
	return t.writeTrial(ctx, folded)
}

// CreateCheckoutSession returns the payment page URL for userID.
func (t *Tracker) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	if t.payments == nil {
		return "", ErrBillingDisabled
	}
	return t.payments.CreateCheckoutSession(ctx, userID)
}

// SyncSubscription asks the provider for userID's subscription and stores
// the result.
func (t *Tracker) SyncSubscription(ctx context.Context, userID string) (trial.Status, error) {
	if t.payments == nil {
		return trial.Status{}, ErrBillingDisabled
	}
	s, err := t.payments.CheckSubscriptionStatus(ctx, userID)
	if err != nil {
		return trial.Status{}, fmt.Errorf("check subscription: %w", err)
	}
	return t.ApplySubscription(ctx, s)
}

// CancelSubscription schedules cancellation at period end and then syncs.
// A user with no live subscription gets the synced state unchanged.
func (t *Tracker) CancelSubscription(ctx context.Context, userID string) (trial.Status, error) {
	if t.payments == nil {
		return trial.Status{}, ErrBillingDisabled
	}
	cancelled, err := t.payments.CancelSubscription(ctx, userID)
	if err != nil {
		return trial.Status{}, fmt.Errorf("cancel subscription: %w", err)
	}
	if !cancelled {
		t.logger.Info("no live subscription to cancel", "user_id", userID)
	}
	return t.SyncSubscription(ctx, userID)
}
