package tracker

import (
	"context"
	"fmt"
	"io"

	"github.com/dukerupert/homekeep/internal/documents"
	"github.com/dukerupert/homekeep/internal/model"
)

// AttachDocument uploads r and returns the reference to put in a warranty's
// or log's Documents.
func (t *Tracker) AttachDocument(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if t.documents == nil {
		return "", ErrDocumentsDisabled
	}
	data, err := io.ReadAll(io.LimitReader(r, documents.MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if len(data) > documents.MaxSize {
		return "", documents.ErrTooLarge
	}
	return t.documents.Put(ctx, name, contentType, data)
}

// DocumentURL returns a short-lived download link for key.
func (t *Tracker) DocumentURL(ctx context.Context, key string) (string, error) {
	if t.documents == nil {
		return "", ErrDocumentsDisabled
	}
	return t.documents.URL(ctx, key)
}

// DraftWarrantyFromDocument runs OCR over a receipt or warranty card and
// returns the fields it could read. Nothing is stored.
func (t *Tracker) DraftWarrantyFromDocument(ctx context.Context, filename string, data []byte) (model.WarrantyDraft, error) {
	if t.ocr == nil {
		return model.WarrantyDraft{}, ErrOCRDisabled
	}
	res, err := t.ocr.Extract(ctx, filename, data)
	if err != nil {
		return model.WarrantyDraft{}, fmt.Errorf("scan %s: %w", filename, err)
	}
	return res.Draft(), nil
}
