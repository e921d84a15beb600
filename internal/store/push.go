package store

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
)

type PushStore struct {
	conn
}

func scanPushSubscription(s scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	var created int64
	err := s.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &created)
	if err != nil {
		return nil, err
	}
	sub.CreatedAt = fromMillis(created)
	return &sub, nil
}

const pushCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// Save registers a subscription, replacing the keys of an existing endpoint.
func (s *PushStore) Save(ctx context.Context, sub *model.PushSubscription) error {
	_, err := s.exec(ctx, "save push subscription",
		`INSERT INTO push_subscriptions (`+pushCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key,
			device_name = excluded.device_name`,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceName, millis(sub.CreatedAt),
	)
	return err
}

func (s *PushStore) List(ctx context.Context) ([]model.PushSubscription, error) {
	return queryAll(ctx, s.conn, "list push subscriptions", scanPushSubscription,
		`SELECT `+pushCols+` FROM push_subscriptions ORDER BY created_at ASC`)
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	return queryAll(ctx, s.conn, "list push subscriptions by user", scanPushSubscription,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at ASC`, userID)
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.exec(ctx, "delete push subscription",
		`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}
