package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/homekeep/internal/metrics"
	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/recurrence"
	"github.com/dukerupert/homekeep/internal/websocket"
)

// Completion is the outcome of CompleteMaintenanceTask.
type Completion struct {
	Log  *model.MaintenanceLog   `json:"log"`
	Task *model.MaintenanceTask `json:"task"`
}

func (t *Tracker) requireProperty(ctx context.Context, id string) error {
	p, err := t.stores.Properties.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	return nil
}

// AddMaintenanceTask stores a task with the caller's NextDue and arms its
// reminder.
func (t *Tracker) AddMaintenanceTask(ctx context.Context, task model.MaintenanceTask) (*model.MaintenanceTask, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.requireProperty(ctx, task.PropertyID); err != nil {
		return nil, storeErr("add_task", err)
	}

	task.ID = t.newID()
	task.CreatedAt = t.stamp()
	task.UpdatedAt = task.CreatedAt
	if err := t.stores.Tasks.Create(ctx, &task); err != nil {
		return nil, storeErr("add_task", err)
	}

	t.scheduleTaskReminder(ctx, &task)
	t.refresh(ctx)
	t.broadcast(websocket.EntityTask, websocket.ActionCreated, task.ID, map[string]any{"property_id": task.PropertyID})
	return &task, nil
}

// UpdateMaintenanceTask replaces a task as given, without recomputing
// NextDue. The task's property must exist. The reminder is re-armed unless the
// due date is unchanged and its reminder time has already passed.
func (t *Tracker) UpdateMaintenanceTask(ctx context.Context, task model.MaintenanceTask) (*model.MaintenanceTask, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.requireProperty(ctx, task.PropertyID); err != nil {
		return nil, storeErr("update_task", err)
	}

	now := t.stamp()
	task.CreatedAt = now
	existing, found := t.Task(task.ID)
	if found {
		task.CreatedAt = existing.CreatedAt
	}
	task.UpdatedAt = now
	if err := t.stores.Tasks.Upsert(ctx, &task); err != nil {
		return nil, storeErr("update_task", err)
	}

	// A reminder whose fire time has passed for an unchanged due date was
	// already delivered; arming it again would send a duplicate.
	if !found || !existing.NextDue.Equal(task.NextDue) || task.NextDue.Add(-DueSoonWindow).After(t.now()) {
		t.scheduleTaskReminder(ctx, &task)
	}
	t.refresh(ctx)
	t.broadcast(websocket.EntityTask, websocket.ActionUpdated, task.ID, map[string]any{"property_id": task.PropertyID})
	return &task, nil
}

// CompleteMaintenanceTask logs a completion and moves the task's due date
// forward by its frequency from the completion date. The log is written
// first. If the task update then fails, the log stays and the error matches
// ErrStaleDueDate; RetryTaskUpdate brings the task in line with it.
func (t *Tracker) CompleteMaintenanceTask(ctx context.Context, taskID string, data model.CompletionData) (*Completion, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, err := t.stores.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeErr("complete_task", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if data.ServiceProviderID != nil {
		p, err := t.stores.Providers.GetByID(ctx, *data.ServiceProviderID)
		if err != nil {
			return nil, storeErr("complete_task", err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, *data.ServiceProviderID)
		}
	}

	completed := data.CompletedDate
	if completed.IsZero() {
		completed = t.now()
	}
	completed = completed.UTC().Truncate(time.Millisecond)
	nextDue, err := recurrence.NextDue(completed, task.Frequency)
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", taskID, err)
	}

	now := t.stamp()
	log := &model.MaintenanceLog{
		ID:                t.newID(),
		TaskID:            task.ID,
		PropertyID:        task.PropertyID,
		CompletedDate:     completed,
		Cost:              data.Cost,
		Notes:             data.Notes,
		ServiceProviderID: data.ServiceProviderID,
		Documents:         data.Documents,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := t.stores.Logs.Create(ctx, log); err != nil {
		return nil, storeErr("complete_task", err)
	}
	t.broadcast(websocket.EntityLog, websocket.ActionCreated, log.ID, map[string]any{"task_id": task.ID})

	task.LastCompleted = &completed
	task.NextDue = nextDue
	task.UpdatedAt = now
	if err := t.stores.Tasks.Upsert(ctx, task); err != nil {
		t.refresh(ctx)
		t.logger.Error("task update after completion failed", "task_id", task.ID, "log_id", log.ID, "error", err)
		return &Completion{Log: log}, fmt.Errorf("complete task %s: %w: %w", taskID, ErrStaleDueDate, storeErr("complete_task", err))
	}

	t.scheduleTaskReminder(ctx, task)
	t.refresh(ctx)
	t.broadcast(websocket.EntityTask, websocket.ActionCompleted, task.ID, map[string]any{"property_id": task.PropertyID})
	return &Completion{Log: log, Task: task}, nil
}

// RetryTaskUpdate recomputes a task's LastCompleted and NextDue from its
// newest log. It repairs a CompleteMaintenanceTask that failed with
// ErrStaleDueDate and is a no-op for a task that is already consistent.
func (t *Tracker) RetryTaskUpdate(ctx context.Context, taskID string) (*model.MaintenanceTask, error) {
	unlock, err := t.begin()
	if err != nil {
		return nil, err
	}
	defer unlock()

	task, err := t.stores.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, storeErr("retry_task_update", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	latest, err := t.stores.Logs.LatestForTask(ctx, taskID)
	if err != nil {
		return nil, storeErr("retry_task_update", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCompletion, taskID)
	}

	nextDue, err := recurrence.NextDue(latest.CompletedDate, task.Frequency)
	if err != nil {
		return nil, fmt.Errorf("retry task %s: %w", taskID, err)
	}
	if task.LastCompleted != nil && task.LastCompleted.Equal(latest.CompletedDate) && task.NextDue.Equal(nextDue) {
		return task, nil
	}

	completed := latest.CompletedDate
	task.LastCompleted = &completed
	task.NextDue = nextDue
	task.UpdatedAt = t.stamp()
	if err := t.stores.Tasks.Upsert(ctx, task); err != nil {
		return nil, storeErr("retry_task_update", err)
	}

	t.scheduleTaskReminder(ctx, task)
	t.refresh(ctx)
	t.broadcast(websocket.EntityTask, websocket.ActionUpdated, task.ID, map[string]any{"property_id": task.PropertyID})
	return task, nil
}

// DeleteMaintenanceTask removes a task after its logs and reminder.
// Deleting an unknown task succeeds.
func (t *Tracker) DeleteMaintenanceTask(ctx context.Context, id string) error {
	unlock, err := t.begin()
	if err != nil {
		return err
	}
	defer unlock()

	c := &cascade{t: t}
	c.task(ctx, id)
	c.removeDocuments(ctx)

	t.refresh(ctx)
	if err := c.err(); err != nil {
		metrics.CascadeFailures.WithLabelValues(websocket.EntityTask).Inc()
		t.logger.Error("delete task cascade incomplete", "task_id", id, "error", err)
		return &CascadeError{Entity: websocket.EntityTask, ID: id, Err: err}
	}
	t.broadcast(websocket.EntityTask, websocket.ActionDeleted, id, nil)
	return nil
}
