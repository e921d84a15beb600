package tracker

import (
	"context"

	"github.com/dukerupert/homekeep/internal/websocket"
)

// DeleteMaintenanceLog removes a single log entry. The task's LastCompleted
// and NextDue are left alone; RetryTaskUpdate recomputes them from the
// remaining logs if needed.
func (t *Tracker) DeleteMaintenanceLog(ctx context.Context, id string) error {
	unlock, err := t.begin()
	if err != nil {
		return err
	}
	defer unlock()

	l, err := t.stores.Logs.GetByID(ctx, id)
	if err != nil {
		return storeErr("delete_log", err)
	}
	if l == nil {
		return nil
	}

	c := &cascade{t: t}
	c.log(ctx, *l)
	c.removeDocuments(ctx)
	if err := c.err(); err != nil {
		return err
	}

	t.refresh(ctx)
	t.broadcast(websocket.EntityLog, websocket.ActionDeleted, id, map[string]any{"task_id": l.TaskID})
	return nil
}
