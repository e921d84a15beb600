package store

import (
	"context"

	"github.com/dukerupert/homekeep/internal/model"
)

type ProviderStore struct {
	conn
}

func scanProvider(s scanner) (*model.ServiceProvider, error) {
	var p model.ServiceProvider
	var categories string
	var created, updated int64
	err := s.Scan(
		&p.ID, &p.Name, &categories, &p.Phone, &p.Email, &p.Website,
		&p.Notes, &p.Rating, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	cats, err := decodeList[model.Category](categories)
	if err != nil {
		return nil, err
	}
	p.Categories = cats
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

const providerCols = `id, name, categories, phone, email, website, notes, rating, created_at, updated_at`

func providerArgs(p *model.ServiceProvider) ([]any, error) {
	cats, err := encodeList(p.Categories)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.Name, cats, p.Phone, p.Email, p.Website,
		p.Notes, p.Rating, millis(p.CreatedAt), millis(p.UpdatedAt),
	}, nil
}

func (s *ProviderStore) List(ctx context.Context) ([]model.ServiceProvider, error) {
	return queryAll(ctx, s.conn, "list service providers", scanProvider,
		`SELECT `+providerCols+` FROM service_providers`)
}

func (s *ProviderStore) GetByID(ctx context.Context, id string) (*model.ServiceProvider, error) {
	return getOne(ctx, s.conn, "get service provider", scanProvider,
		`SELECT `+providerCols+` FROM service_providers WHERE id = ?`, id)
}

func (s *ProviderStore) Create(ctx context.Context, p *model.ServiceProvider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	args, err := providerArgs(p)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "insert service provider",
		`INSERT INTO service_providers (`+providerCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

// Upsert replaces the provider with the same id, inserting it if absent.
func (s *ProviderStore) Upsert(ctx context.Context, p *model.ServiceProvider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	args, err := providerArgs(p)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "upsert service provider",
		`INSERT INTO service_providers (`+providerCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			categories = excluded.categories,
			phone = excluded.phone,
			email = excluded.email,
			website = excluded.website,
			notes = excluded.notes,
			rating = excluded.rating,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		args...,
	)
	return err
}

// UpdateExisting replaces the provider and fails with ErrNotFound if it is absent.
func (s *ProviderStore) UpdateExisting(ctx context.Context, p *model.ServiceProvider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	args, err := providerArgs(p)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, "update service provider",
		`UPDATE service_providers SET
			name = ?, categories = ?, phone = ?, email = ?, website = ?,
			notes = ?, rating = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		append(args[1:], p.ID)...,
	)
	if err != nil {
		return err
	}
	return requireRow(res, "update service provider", p.ID)
}

func (s *ProviderStore) Delete(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "delete service provider", `DELETE FROM service_providers WHERE id = ?`, id)
	return err
}
