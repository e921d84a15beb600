package store

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
)

// TrialStore persists the single trial/subscription record under model.TrialKey.
type TrialStore struct {
	conn
}

func scanTrial(s scanner) (*model.TrialInfo, error) {
	var t model.TrialInfo
	var start, end, updated int64
	var isActive, isPro, cancel int
	if err := s.Scan(&start, &end, &isActive, &isPro, &cancel, &updated); err != nil {
		return nil, err
	}
	t.StartDate = fromMillis(start)
	t.EndDate = fromMillis(end)
	t.IsActive = isActive != 0
	t.IsPro = isPro != 0
	t.CancelAtPeriodEnd = cancel != 0
	t.UpdatedAt = fromMillis(updated)
	return &t, nil
}

// Get returns the trial record, or nil if none has been created yet.
func (s *TrialStore) Get(ctx context.Context) (*model.TrialInfo, error) {
	return getOne(ctx, s.conn, "get trial info", scanTrial,
		`SELECT start_date, end_date, is_active, is_pro, cancel_at_period_end, updated_at
		FROM trial_info WHERE key = ?`, model.TrialKey)
}

// CreateIfAbsent inserts t unless a record already exists. It reports
// whether the insert happened.
func (s *TrialStore) CreateIfAbsent(ctx context.Context, t *model.TrialInfo) (bool, error) {
	res, err := s.exec(ctx, "create trial info",
		`INSERT INTO trial_info (key, start_date, end_date, is_active, is_pro, cancel_at_period_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		model.TrialKey, millis(t.StartDate), millis(t.EndDate),
		boolInt(t.IsActive), boolInt(t.IsPro), boolInt(t.CancelAtPeriodEnd), millis(t.UpdatedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Upsert writes the full record.
func (s *TrialStore) Upsert(ctx context.Context, t *model.TrialInfo) error {
	_, err := s.exec(ctx, "upsert trial info",
		`INSERT INTO trial_info (key, start_date, end_date, is_active, is_pro, cancel_at_period_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			is_pro = excluded.is_pro,
			cancel_at_period_end = excluded.cancel_at_period_end,
			updated_at = excluded.updated_at`,
		model.TrialKey, millis(t.StartDate), millis(t.EndDate),
		boolInt(t.IsActive), boolInt(t.IsPro), boolInt(t.CancelAtPeriodEnd), millis(t.UpdatedAt),
	)
	return err
}
