package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/homekeep/internal/model"
)

type LogStore struct {
	conn
}

func scanLog(s scanner) (*model.MaintenanceLog, error) {
	var l model.MaintenanceLog
	var providerID sql.NullString
	var documents string
	var completed, created, updated int64
	err := s.Scan(
		&l.ID, &l.TaskID, &l.PropertyID, &completed, &l.Cost, &l.Notes,
		&providerID, &documents, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	docs, err := decodeList[string](documents)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		l.ServiceProviderID = &providerID.String
	}
	l.CompletedDate = fromMillis(completed)
	l.Documents = docs
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updated)
	return &l, nil
}

const logCols = `id, task_id, property_id, completed_date, cost, notes, service_provider_id, documents, created_at, updated_at`

func logArgs(l *model.MaintenanceLog) ([]any, error) {
	docs, err := encodeList(l.Documents)
	if err != nil {
		return nil, err
	}
	return []any{
		l.ID, l.TaskID, l.PropertyID, millis(l.CompletedDate), l.Cost, l.Notes,
		nullString(l.ServiceProviderID), docs, millis(l.CreatedAt), millis(l.UpdatedAt),
	}, nil
}

func (s *LogStore) List(ctx context.Context) ([]model.MaintenanceLog, error) {
	return queryAll(ctx, s.conn, "list maintenance logs", scanLog,
		`SELECT `+logCols+` FROM maintenance_logs`)
}

func (s *LogStore) ListByTask(ctx context.Context, taskID string) ([]model.MaintenanceLog, error) {
	return queryAll(ctx, s.conn, "list maintenance logs by task", scanLog,
		`SELECT `+logCols+` FROM maintenance_logs WHERE task_id = ? ORDER BY completed_date DESC`, taskID)
}

func (s *LogStore) ListByProperty(ctx context.Context, propertyID string) ([]model.MaintenanceLog, error) {
	return queryAll(ctx, s.conn, "list maintenance logs by property", scanLog,
		`SELECT `+logCols+` FROM maintenance_logs WHERE property_id = ? ORDER BY completed_date DESC`, propertyID)
}

func (s *LogStore) GetByID(ctx context.Context, id string) (*model.MaintenanceLog, error) {
	return getOne(ctx, s.conn, "get maintenance log", scanLog,
		`SELECT `+logCols+` FROM maintenance_logs WHERE id = ?`, id)
}

// LatestForTask returns the most recent completion of a task, or nil.
func (s *LogStore) LatestForTask(ctx context.Context, taskID string) (*model.MaintenanceLog, error) {
	return getOne(ctx, s.conn, "latest maintenance log", scanLog,
		`SELECT `+logCols+` FROM maintenance_logs WHERE task_id = ? ORDER BY completed_date DESC, created_at DESC LIMIT 1`, taskID)
}

func (s *LogStore) Create(ctx context.Context, l *model.MaintenanceLog) error {
	if err := l.Validate(); err != nil {
		return err
	}
	args, err := logArgs(l)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "insert maintenance log",
		`INSERT INTO maintenance_logs (`+logCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

// Upsert replaces the log with the same id, inserting it if absent.
func (s *LogStore) Upsert(ctx context.Context, l *model.MaintenanceLog) error {
	if err := l.Validate(); err != nil {
		return err
	}
	args, err := logArgs(l)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "upsert maintenance log",
		`INSERT INTO maintenance_logs (`+logCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id = excluded.task_id,
			property_id = excluded.property_id,
			completed_date = excluded.completed_date,
			cost = excluded.cost,
			notes = excluded.notes,
			service_provider_id = excluded.service_provider_id,
			documents = excluded.documents,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		args...,
	)
	return err
}

func (s *LogStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete maintenance log", `DELETE FROM maintenance_logs WHERE id = ?`, id)
	return err
}
