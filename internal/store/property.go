package store

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
)

type PropertyStore struct {
	conn
}

func scanProperty(s scanner) (*model.Property, error) {
	var p model.Property
	var created, updated int64
	if err := s.Scan(&p.ID, &p.Name, &p.Address, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

const propertyCols = `id, name, address, created_at, updated_at`

func (s *PropertyStore) List(ctx context.Context) ([]model.Property, error) {
	return queryAll(ctx, s.conn, "list properties", scanProperty,
		`SELECT `+propertyCols+` FROM properties`)
}

func (s *PropertyStore) GetByID(ctx context.Context, id string) (*model.Property, error) {
	return getOne(ctx, s.conn, "get property", scanProperty,
		`SELECT `+propertyCols+` FROM properties WHERE id = ?`, id)
}

func (s *PropertyStore) Create(ctx context.Context, p *model.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx, "insert property",
		`INSERT INTO properties (`+propertyCols+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Address, millis(p.CreatedAt), millis(p.UpdatedAt),
	)
	return err
}

// Upsert replaces the record with the same id, inserting it if absent.
func (s *PropertyStore) Upsert(ctx context.Context, p *model.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx, "upsert property",
		`INSERT INTO properties (`+propertyCols+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Address, millis(p.CreatedAt), millis(p.UpdatedAt),
	)
	return err
}

// UpdateExisting replaces the record and fails with ErrNotFound if it is absent.
func (s *PropertyStore) UpdateExisting(ctx context.Context, p *model.Property) error {
	if err := p.Validate(); err != nil {
		return err
	}
	res, err := s.exec(ctx, "update property",
		`UPDATE properties SET name = ?, address = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Address, millis(p.CreatedAt), millis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "update property", p.ID)
}

// Delete removes the property. Deleting a missing id is not an error.
func (s *PropertyStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete property", `DELETE FROM properties WHERE id = ?`, id)
	return err
}
