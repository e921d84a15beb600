package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/homekeep/internal/model"
)

type TaskStore struct {
	conn
}

func scanTask(s scanner) (*model.MaintenanceTask, error) {
	var t model.MaintenanceTask
	var category, unit string
	var lastCompleted sql.NullInt64
	var nextDue, created, updated int64
	err := s.Scan(
		&t.ID, &t.PropertyID, &t.Title, &t.Description, &category,
		&t.Frequency.Value, &unit, &lastCompleted, &nextDue,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.Category = model.Category(category)
	t.Frequency.Unit = model.FrequencyUnit(unit)
	t.LastCompleted = timePtr(lastCompleted)
	t.NextDue = fromMillis(nextDue)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

const taskCols = `id, property_id, title, description, category, frequency_value, frequency_unit, last_completed, next_due, created_at, updated_at`

func taskArgs(t *model.MaintenanceTask) []any {
	return []any{
		t.ID, t.PropertyID, t.Title, t.Description, string(t.Category),
		t.Frequency.Value, string(t.Frequency.Unit), nullMillis(t.LastCompleted), millis(t.NextDue),
		millis(t.CreatedAt), millis(t.UpdatedAt),
	}
}

func (s *TaskStore) List(ctx context.Context) ([]model.MaintenanceTask, error) {
	return queryAll(ctx, s.conn, "list tasks", scanTask,
		`SELECT `+taskCols+` FROM maintenance_tasks`)
}

func (s *TaskStore) ListByProperty(ctx context.Context, propertyID string) ([]model.MaintenanceTask, error) {
	return queryAll(ctx, s.conn, "list tasks by property", scanTask,
		`SELECT `+taskCols+` FROM maintenance_tasks WHERE property_id = ?`, propertyID)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.MaintenanceTask, error) {
	return getOne(ctx, s.conn, "get task", scanTask,
		`SELECT `+taskCols+` FROM maintenance_tasks WHERE id = ?`, id)
}

func (s *TaskStore) Create(ctx context.Context, t *model.MaintenanceTask) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx, "insert task",
		`INSERT INTO maintenance_tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskArgs(t)...,
	)
	return err
}

// Upsert replaces the task with the same id, inserting it if absent.
func (s *TaskStore) Upsert(ctx context.Context, t *model.MaintenanceTask) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx, "upsert task",
		`INSERT INTO maintenance_tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			frequency_value = excluded.frequency_value,
			frequency_unit = excluded.frequency_unit,
			last_completed = excluded.last_completed,
			next_due = excluded.next_due,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		taskArgs(t)...,
	)
	return err
}

// UpdateExisting replaces the task and fails with ErrNotFound if it is absent.
func (s *TaskStore) UpdateExisting(ctx context.Context, t *model.MaintenanceTask) error {
	if err := t.Validate(); err != nil {
		return err
	}
	args := append(taskArgs(t)[1:], t.ID)
	res, err := s.exec(ctx, "update task",
		`UPDATE maintenance_tasks SET
			property_id = ?, title = ?, description = ?, category = ?,
			frequency_value = ?, frequency_unit = ?, last_completed = ?, next_due = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "update task", t.ID)
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete task", `DELETE FROM maintenance_tasks WHERE id = ?`, id)
	return err
}
