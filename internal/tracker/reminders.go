package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

// WarrantyWarning is how long before expiry the warranty warning fires.
const WarrantyWarning = 30 * 24 * time.Hour

// scheduleTaskReminder arms the due-soon reminder. Reminders are best effort:
// failures are logged and never fail the mutation that triggered them.
func (t *Tracker) scheduleTaskReminder(ctx context.Context, task *model.MaintenanceTask) {
	if t.reminders == nil {
		return
	}
	n := &model.Notification{
		ID:     t.newID(),
		Kind:   model.NotifKindTaskDue,
		RefID:  task.ID,
		Title:  "Maintenance due soon",
		Body:   fmt.Sprintf("%s is due %s", task.Title, task.NextDue.Format("Mon, Jan 2")),
		FireAt: task.NextDue.Add(-DueSoonWindow),
	}
	if err := t.reminders.Schedule(ctx, n); err != nil {
		t.logger.Warn("schedule task reminder", "task_id", task.ID, "error", err)
	}
}

// scheduleWarrantyWarning arms the expiry warning when its fire time is
// still ahead, and drops any earlier warning otherwise.
func (t *Tracker) scheduleWarrantyWarning(ctx context.Context, w *model.Warranty) {
	if t.reminders == nil {
		return
	}
	fireAt := w.ExpiryDate.Add(-WarrantyWarning)
	if !fireAt.After(t.now()) {
		if err := t.reminders.Cancel(ctx, model.NotifKindWarrantyExpiry, w.ID); err != nil {
			t.logger.Warn("cancel warranty warning", "warranty_id", w.ID, "error", err)
		}
		return
	}
	n := &model.Notification{
		ID:     t.newID(),
		Kind:   model.NotifKindWarrantyExpiry,
		RefID:  w.ID,
		Title:  "Warranty expiring",
		Body:   fmt.Sprintf("The %s warranty expires on %s", w.ItemName, w.ExpiryDate.Format("Jan 2, 2006")),
		FireAt: fireAt,
	}
	if err := t.reminders.Schedule(ctx, n); err != nil {
		t.logger.Warn("schedule warranty warning", "warranty_id", w.ID, "error", err)
	}
}

// cancelReminder is a cascade step: an entity is only deleted once its
// reminder is gone, so a reminder never outlives what it points at.
func (t *Tracker) cancelReminder(ctx context.Context, kind, refID string) error {
	if t.reminders == nil {
		return nil
	}
	return t.reminders.Cancel(ctx, kind, refID)
}
