package tracker

import (
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

type TaskState string

const (
	StateOverdue  TaskState = "overdue"
	StateDueSoon  TaskState = "due_soon"
	StateUpcoming TaskState = "upcoming"
)

// DueSoonWindow is how far ahead a task counts as due soon. Task reminders
// fire at the start of this window.
const DueSoonWindow = 2 * 24 * time.Hour

type TaskStatus struct {
	State TaskState `json:"state"`
	// DaysUntilDue counts calendar days from today; negative when overdue.
	DaysUntilDue int `json:"days_until_due"`
}

// StatusOf classifies a task against now. A task is overdue once its due
// instant has passed and due soon when it falls within DueSoonWindow.
func StatusOf(task model.MaintenanceTask, now time.Time) TaskStatus {
	days := int(startOfDay(task.NextDue).Sub(startOfDay(now)).Hours() / 24)

	switch {
	case task.NextDue.Before(now):
		return TaskStatus{State: StateOverdue, DaysUntilDue: days}
	case task.NextDue.Sub(now) <= DueSoonWindow:
		return TaskStatus{State: StateDueSoon, DaysUntilDue: days}
	}
	return TaskStatus{State: StateUpcoming, DaysUntilDue: days}
}

// TaskStatus classifies a task against the tracker clock.
func (t *Tracker) TaskStatus(task model.MaintenanceTask) TaskStatus {
	return StatusOf(task, t.now())
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
