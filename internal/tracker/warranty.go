package tracker

import (
	"context"

	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// AddWarranty stores w and arms its expiry warning when the warning date is
// still ahead.
func (t *Tracker) AddWarranty(ctx context.Context, w model.Warranty) (*model.Warranty, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.requireProperty(ctx, w.PropertyID); err != nil {
		return nil, storeErr("add_warranty", err)
	}

	w.ID = t.newID()
	w.CreatedAt = t.stamp()
	w.UpdatedAt = w.CreatedAt
	if err := t.stores.Warranties.Create(ctx, &w); err != nil {
		return nil, storeErr("add_warranty", err)
	}

	t.scheduleWarrantyWarning(ctx, &w)
	t.refresh(ctx)
	t.broadcast(websocket.EntityWarranty, websocket.ActionCreated, w.ID, map[string]any{"property_id": w.PropertyID})
	return &w, nil
}

func (t *Tracker) UpdateWarranty(ctx context.Context, w model.Warranty) (*model.Warranty, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.requireProperty(ctx, w.PropertyID); err != nil {
		return nil, storeErr("update_warranty", err)
	}

	now := t.stamp()
	w.CreatedAt = now
	if existing, ok := t.warranty(w.ID); ok {
		w.CreatedAt = existing.CreatedAt
	}
	w.UpdatedAt = now
	if err := t.stores.Warranties.Upsert(ctx, &w); err != nil {
		return nil, storeErr("update_warranty", err)
	}

	t.scheduleWarrantyWarning(ctx, &w)
	t.refresh(ctx)
	t.broadcast(websocket.EntityWarranty, websocket.ActionUpdated, w.ID, map[string]any{"property_id": w.PropertyID})
	return &w, nil
}

// DeleteWarranty drops the expiry warning, then the warranty. Its documents
// are removed best effort.
func (t *Tracker) DeleteWarranty(ctx context.Context, id string) error {
	unlock, err := t.begin()
	if err != nil {
		return err
	}
	defer unlock()

	w, err := t.stores.Warranties.GetByID(ctx, id)
	if err != nil {
		return storeErr("delete_warranty", err)
	}
	if w == nil {
		// Nothing stored; a stray warning may still be pending.
		if err := t.cancelReminder(ctx, model.NotifKindWarrantyExpiry, id); err != nil {
			return err
		}
		return nil
	}

	c := &cascade{t: t}
	c.warranty(ctx, *w)
	c.removeDocuments(ctx)

	t.refresh(ctx)
	if err := c.err(); err != nil {
		metrics.CascadeFailures.WithLabelValues(websocket.EntityWarranty).Inc()
		return &CascadeError{Entity: websocket.EntityWarranty, ID: id, Err: err}
	}
	t.broadcast(websocket.EntityWarranty, websocket.ActionDeleted, id, map[string]any{"property_id": w.PropertyID})
	return nil
}

func (t *Tracker) warranty(id string) (model.Warranty, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, w := range t.mirror.warranties {
		if w.ID == id {
			return w, true
		}
	}
	return model.Warranty{}, false
}
