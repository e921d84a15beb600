package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// AddProperty assigns the id and timestamps and stores p.
func (t *Tracker) AddProperty(ctx context.Context, p model.Property) (*model.Property, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	p.ID = t.newID()
	p.CreatedAt = t.stamp()
	p.UpdatedAt = p.CreatedAt
	if err := t.stores.Properties.Create(ctx, &p); err != nil {
		return nil, storeErr("add_property", err)
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityProperty, websocket.ActionCreated, p.ID, nil)
	return &p, nil
}

// UpdateProperty replaces the stored property, keeping its creation time.
func (t *Tracker) UpdateProperty(ctx context.Context, p model.Property) (*model.Property, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := t.stamp()
	p.CreatedAt = now
	if existing, ok := t.Property(p.ID); ok {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now
	if err := t.stores.Properties.Upsert(ctx, &p); err != nil {
		return nil, storeErr("update_property", err)
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityProperty, websocket.ActionUpdated, p.ID, nil)
	return &p, nil
}

// DeleteProperty removes a property with its tasks, their logs, and its
// warranties. Children go first and a record is only removed once everything
// it owns is gone, so a failed cascade leaves every remaining child reachable
// from its parent and a retry finishes the job. Deleting an unknown property
// succeeds.
func (t *Tracker) DeleteProperty(ctx context.Context, id string) error {
	unlock, err := t.begin()
	if err != nil {
		return err
	}
	defer unlock()

	c := &cascade{t: t}
	c.property(ctx, id)
	c.removeDocuments(ctx)

	t.refresh(ctx)
	if err := c.err(); err != nil {
		metrics.CascadeFailures.WithLabelValues(websocket.EntityProperty).Inc()
		t.logger.Error("delete property cascade incomplete", "property_id", id, "error", err)
		t.broadcast(websocket.EntityProperty, websocket.ActionUpdated, id, nil)
		return &CascadeError{Entity: websocket.EntityProperty, ID: id, Err: err}
	}
	t.broadcast(websocket.EntityProperty, websocket.ActionDeleted, id, nil)
	return nil
}

// cascade collects the failures of a multi-step delete.
type cascade struct {
	t         *Tracker
	errs      []error
	documents []string
}

func (c *cascade) fail(step string, err error) {
	c.errs = append(c.errs, fmt.Errorf("%s: %w", step, err))
}

func (c *cascade) err() error {
	return errors.Join(c.errs...)
}

func (c *cascade) property(ctx context.Context, id string) {
	s := c.t.stores
	ok := true

	tasks, err := s.Tasks.ListByProperty(ctx, id)
	if err != nil {
		c.fail("list tasks", err)
		ok = false
	}
	for _, task := range tasks {
		if !c.task(ctx, task.ID) {
			ok = false
		}
	}

	// Logs carry the property id too; sweep any whose task is already gone.
	logs, err := s.Logs.ListByProperty(ctx, id)
	if err != nil {
		c.fail("list logs", err)
		ok = false
	}
	for _, l := range logs {
		if !c.log(ctx, l) {
			ok = false
		}
	}

	warranties, err := s.Warranties.ListByProperty(ctx, id)
	if err != nil {
		c.fail("list warranties", err)
		ok = false
	}
	for _, w := range warranties {
		if !c.warranty(ctx, w) {
			ok = false
		}
	}

	if !ok {
		return
	}
	if err := s.Properties.Delete(ctx, id); err != nil {
		c.fail("delete property "+id, storeErr("delete_property", err))
	}
}

// task deletes a task after its logs and reminder. It reports whether the
// task is gone.
func (c *cascade) task(ctx context.Context, id string) bool {
	s := c.t.stores

	logs, err := s.Logs.ListByTask(ctx, id)
	if err != nil {
		c.fail("list logs of task "+id, err)
		return false
	}
	ok := true
	for _, l := range logs {
		if !c.log(ctx, l) {
			ok = false
		}
	}
	if err := c.t.cancelReminder(ctx, model.NotifKindTaskDue, id); err != nil {
		c.fail("cancel reminder of task "+id, err)
		ok = false
	}
	if !ok {
		return false
	}
	if err := s.Tasks.Delete(ctx, id); err != nil {
		c.fail("delete task "+id, storeErr("delete_task", err))
		return false
	}
	return true
}

func (c *cascade) log(ctx context.Context, l model.MaintenanceLog) bool {
	if err := c.t.stores.Logs.Delete(ctx, l.ID); err != nil {
		c.fail("delete log "+l.ID, storeErr("delete_log", err))
		return false
	}
	c.documents = append(c.documents, l.Documents...)
	return true
}

func (c *cascade) warranty(ctx context.Context, w model.Warranty) bool {
	if err := c.t.cancelReminder(ctx, model.NotifKindWarrantyExpiry, w.ID); err != nil {
		c.fail("cancel warning of warranty "+w.ID, err)
		return false
	}
	if err := c.t.stores.Warranties.Delete(ctx, w.ID); err != nil {
		c.fail("delete warranty "+w.ID, storeErr("delete_warranty", err))
		return false
	}
	c.documents = append(c.documents, w.Documents...)
	return true
}

// removeDocuments deletes attachments of removed records. Orphaned objects
// cost storage but break nothing, so failures are only logged.
func (c *cascade) removeDocuments(ctx context.Context) {
	if c.t.documents == nil {
		return
	}
	for _, key := range c.documents {
		if err := c.t.documents.Delete(ctx, key); err != nil {
			c.t.logger.Warn("delete document", "key", key, "error", err)
		}
	}
}
