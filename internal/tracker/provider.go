package tracker

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// Service providers are plain records. Logs keep a provider's id after the
// provider is deleted.

func (t *Tracker) AddServiceProvider(ctx context.Context, p model.ServiceProvider) (*model.ServiceProvider, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	p.ID = t.newID()
	p.CreatedAt = t.stamp()
	p.UpdatedAt = p.CreatedAt
	if err := t.stores.Providers.Create(ctx, &p); err != nil {
		return nil, storeErr("add_provider", err)
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityServiceProvider, websocket.ActionCreated, p.ID, nil)
	return &p, nil
}

func (t *Tracker) UpdateServiceProvider(ctx context.Context, p model.ServiceProvider) (*model.ServiceProvider, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := t.stamp()
	p.CreatedAt = now
	if existing, ok := t.ServiceProvider(p.ID); ok {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now
	if err := t.stores.Providers.Upsert(ctx, &p); err != nil {
		return nil, storeErr("update_provider", err)
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityServiceProvider, websocket.ActionUpdated, p.ID, nil)
	return &p, nil
}

func (t *Tracker) DeleteServiceProvider(ctx context.Context, id string) error {
	unlock, err := t.begin()
	if err != nil {
		return err
	}
	defer unlock()

	if err := t.stores.Providers.Delete(ctx, id); err != nil {
		return storeErr("delete_provider", err)
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityServiceProvider, websocket.ActionDeleted, id, nil)
	return nil
}

func (t *Tracker) ServiceProvider(id string) (model.ServiceProvider, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.mirror.providers {
		if p.ID == id {
			return p, true
		}
	}
	return model.ServiceProvider{}, false
}
