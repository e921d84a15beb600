package tracker

import (
	"slices"
	"strings"

	"github.com/dukerupert/homekeep/internal/model"
)

// Reads below never touch the store. They serve the mirror as of the last
// mutation or Refresh, and return copies the caller may modify.

func (t *Tracker) Properties() []model.Property {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := slices.Clone(t.mirror.properties)
	slices.SortFunc(out, func(a, b model.Property) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

func (t *Tracker) Property(id string) (model.Property, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := slices.IndexFunc(t.mirror.properties, func(p model.Property) bool { return p.ID == id })
	if i < 0 {
		return model.Property{}, false
	}
	return t.mirror.properties[i], true
}

// Tasks returns every task, soonest due first.
func (t *Tracker) Tasks() []model.MaintenanceTask {
	return t.filterTasks(func(model.MaintenanceTask) bool { return true })
}

func (t *Tracker) TasksForProperty(propertyID string) []model.MaintenanceTask {
	return t.filterTasks(func(task model.MaintenanceTask) bool { return task.PropertyID == propertyID })
}

func (t *Tracker) filterTasks(keep func(model.MaintenanceTask) bool) []model.MaintenanceTask {
	t.mu.RLock()
	var out []model.MaintenanceTask
	for _, task := range t.mirror.tasks {
		if keep(task) {
			out = append(out, task)
		}
	}
	t.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.MaintenanceTask) int {
		return a.NextDue.Compare(b.NextDue)
	})
	return out
}

func (t *Tracker) Task(id string) (model.MaintenanceTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := slices.IndexFunc(t.mirror.tasks, func(task model.MaintenanceTask) bool { return task.ID == id })
	if i < 0 {
		return model.MaintenanceTask{}, false
	}
	return t.mirror.tasks[i], true
}

// Warranties returns every warranty, soonest expiring first.
func (t *Tracker) Warranties() []model.Warranty {
	return t.filterWarranties(func(model.Warranty) bool { return true })
}

func (t *Tracker) WarrantiesForProperty(propertyID string) []model.Warranty {
	return t.filterWarranties(func(w model.Warranty) bool { return w.PropertyID == propertyID })
}

func (t *Tracker) filterWarranties(keep func(model.Warranty) bool) []model.Warranty {
	t.mu.RLock()
	var out []model.Warranty
	for _, w := range t.mirror.warranties {
		if keep(w) {
			w.Documents = slices.Clone(w.Documents)
			out = append(out, w)
		}
	}
	t.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Warranty) int {
		return a.ExpiryDate.Compare(b.ExpiryDate)
	})
	return out
}

// ServiceProviders returns every provider by name.
func (t *Tracker) ServiceProviders() []model.ServiceProvider {
	t.mu.RLock()
	out := make([]model.ServiceProvider, 0, len(t.mirror.providers))
	for _, p := range t.mirror.providers {
		p.Categories = slices.Clone(p.Categories)
		out = append(out, p)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.ServiceProvider) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// MaintenanceLogs returns every log, newest completion first.
func (t *Tracker) MaintenanceLogs() []model.MaintenanceLog {
	return t.filterLogs(func(model.MaintenanceLog) bool { return true })
}

// GetMaintenanceLogsForTask returns the task's logs, newest completion first.
func (t *Tracker) GetMaintenanceLogsForTask(taskID string) []model.MaintenanceLog {
	return t.filterLogs(func(l model.MaintenanceLog) bool { return l.TaskID == taskID })
}

func (t *Tracker) filterLogs(keep func(model.MaintenanceLog) bool) []model.MaintenanceLog {
	t.mu.RLock()
	var out []model.MaintenanceLog
	for _, l := range t.mirror.logs {
		if keep(l) {
			l.Documents = slices.Clone(l.Documents)
			out = append(out, l)
		}
	}
	t.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.MaintenanceLog) int {
		return b.CompletedDate.Compare(a.CompletedDate)
	})
	return out
}
