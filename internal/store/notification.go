package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

// NotificationStore is the durable reminder schedule.
type NotificationStore struct {
	conn
}

func scanNotification(s scanner) (*model.Notification, error) {
	var n model.Notification
	var fireAt, created int64
	var sentAt sql.NullInt64
	if err := s.Scan(&n.ID, &n.Kind, &n.RefID, &n.Title, &n.Body, &fireAt, &sentAt, &created); err != nil {
		return nil, err
	}
	n.FireAt = fromMillis(fireAt)
	n.SentAt = timePtr(sentAt)
	n.CreatedAt = fromMillis(created)
	return &n, nil
}

const notificationCols = `id, kind, ref_id, title, body, fire_at, sent_at, created_at`

// Replace stores n as the only pending reminder for its (kind, ref_id),
// dropping any earlier unsent one.
func (s *NotificationStore) Replace(ctx context.Context, n *model.Notification) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(ctx, "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM notifications WHERE kind = ? AND ref_id = ? AND sent_at IS NULL`,
		n.Kind, n.RefID,
	); err != nil {
		return classify(ctx, "clear pending notification", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Kind, n.RefID, n.Title, n.Body, millis(n.FireAt), nullMillis(n.SentAt), millis(n.CreatedAt),
	); err != nil {
		return classify(ctx, "insert notification", err)
	}
	if err := tx.Commit(); err != nil {
		return classify(ctx, "commit notification", err)
	}
	return nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	return getOne(ctx, s.conn, "get notification", scanNotification,
		`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
}

// ListPending returns unsent reminders ordered by fire time.
func (s *NotificationStore) ListPending(ctx context.Context) ([]model.Notification, error) {
	return queryAll(ctx, s.conn, "list pending notifications", scanNotification,
		`SELECT `+notificationCols+` FROM notifications WHERE sent_at IS NULL ORDER BY fire_at ASC`)
}

// PendingFor returns the unsent reminder for a referenced entity, or nil.
func (s *NotificationStore) PendingFor(ctx context.Context, kind, refID string) (*model.Notification, error) {
	return getOne(ctx, s.conn, "get pending notification", scanNotification,
		`SELECT `+notificationCols+` FROM notifications WHERE kind = ? AND ref_id = ? AND sent_at IS NULL`, kind, refID)
}

// MarkSent claims a pending reminder. It reports false if the reminder was
// already sent or cancelled, so each reminder fires at most once.
func (s *NotificationStore) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.exec(ctx, "mark notification sent",
		`UPDATE notifications SET sent_at = ? WHERE id = ? AND sent_at IS NULL`,
		millis(at), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification sent: rows affected: %w", err)
	}
	return n == 1, nil
}

// DeletePending removes the unsent reminder for a referenced entity.
func (s *NotificationStore) DeletePending(ctx context.Context, kind, refID string) error {
	_, err := s.exec(ctx, "delete pending notification",
		`DELETE FROM notifications WHERE kind = ? AND ref_id = ? AND sent_at IS NULL`,
		kind, refID,
	)
	return err
}

// DeleteSentBefore prunes delivered reminders older than before.
func (s *NotificationStore) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, "prune notifications",
		`DELETE FROM notifications WHERE sent_at IS NOT NULL AND sent_at < ?`,
		millis(before),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
