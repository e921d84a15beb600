package store

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
)

type WarrantyStore struct {
	conn
}

func scanWarranty(s scanner) (*model.Warranty, error) {
	var w model.Warranty
	var category, documents string
	var purchase, expiry, created, updated int64
	err := s.Scan(
		&w.ID, &w.PropertyID, &w.ItemName, &w.Manufacturer, &category,
		&purchase, &expiry, &w.Description, &documents,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	docs, err := decodeList[string](documents)
	if err != nil {
		return nil, err
	}
	w.Category = model.Category(category)
	w.PurchaseDate = fromMillis(purchase)
	w.ExpiryDate = fromMillis(expiry)
	w.Documents = docs
	w.CreatedAt = fromMillis(created)
	w.UpdatedAt = fromMillis(updated)
	return &w, nil
}

const warrantyCols = `id, property_id, item_name, manufacturer, category, purchase_date, expiry_date, description, documents, created_at, updated_at`

func warrantyArgs(w *model.Warranty) ([]any, error) {
	docs, err := encodeList(w.Documents)
	if err != nil {
		return nil, err
	}
	return []any{
		w.ID, w.PropertyID, w.ItemName, w.Manufacturer, string(w.Category),
		millis(w.PurchaseDate), millis(w.ExpiryDate), w.Description, docs,
		millis(w.CreatedAt), millis(w.UpdatedAt),
	}, nil
}

func (s *WarrantyStore) List(ctx context.Context) ([]model.Warranty, error) {
	return queryAll(ctx, s.conn, "list warranties", scanWarranty,
		`SELECT `+warrantyCols+` FROM warranties`)
}

func (s *WarrantyStore) ListByProperty(ctx context.Context, propertyID string) ([]model.Warranty, error) {
	return queryAll(ctx, s.conn, "list warranties by property", scanWarranty,
		`SELECT `+warrantyCols+` FROM warranties WHERE property_id = ?`, propertyID)
}

func (s *WarrantyStore) GetByID(ctx context.Context, id string) (*model.Warranty, error) {
	return getOne(ctx, s.conn, "get warranty", scanWarranty,
		`SELECT `+warrantyCols+` FROM warranties WHERE id = ?`, id)
}

func (s *WarrantyStore) Create(ctx context.Context, w *model.Warranty) error {
	if err := w.Validate(); err != nil {
		return err
	}
	args, err := warrantyArgs(w)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "insert warranty",
		`INSERT INTO warranties (`+warrantyCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

// Upsert replaces the warranty with the same id, inserting it if absent.
func (s *WarrantyStore) Upsert(ctx context.Context, w *model.Warranty) error {
	if err := w.Validate(); err != nil {
		return err
	}
	args, err := warrantyArgs(w)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "upsert warranty",
		`INSERT INTO warranties (`+warrantyCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			item_name = excluded.item_name,
			manufacturer = excluded.manufacturer,
			category = excluded.category,
			purchase_date = excluded.purchase_date,
			expiry_date = excluded.expiry_date,
			description = excluded.description,
			documents = excluded.documents,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		args...,
	)
	return err
}

// UpdateExisting replaces the warranty and fails with ErrNotFound if it is absent.
func (s *WarrantyStore) UpdateExisting(ctx context.Context, w *model.Warranty) error {
	if err := w.Validate(); err != nil {
		return err
	}
	args, err := warrantyArgs(w)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, "update warranty",
		`UPDATE warranties SET
			property_id = ?, item_name = ?, manufacturer = ?, category = ?,
			purchase_date = ?, expiry_date = ?, description = ?, documents = ?,
			created_at = ?, updated_at = ?
		WHERE id = ?`,
		append(args[1:], w.ID)...,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "update warranty", w.ID)
}

func (s *WarrantyStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete warranty", `DELETE FROM warranties WHERE id = ?`, id)
	return err
}
