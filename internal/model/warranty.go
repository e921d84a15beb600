package model

import (
	"fmt"
	"strings"
	"time"
)

type Warranty struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	ItemName     string    `json:"item_name"`
	Manufacturer string    `json:"manufacturer"`
	Category     Category  `json:"category"`
	PurchaseDate time.Time `json:"purchase_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Description  string    `json:"description"`
	Documents    []string  `json:"documents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (w *Warranty) Validate() error {
	switch {
	case w.ID == "":
		return invalid("warranty", "id", "is required")
	case w.PropertyID == "":
		return invalid("warranty", "property_id", "is required")
	case strings.TrimSpace(w.ItemName) == "":
		return invalid("warranty", "item_name", "is required")
	case !w.Category.Valid():
		return invalid("warranty", "category", fmt.Sprintf("%q is not a known category", w.Category))
	case w.ExpiryDate.Before(w.PurchaseDate):
		return invalid("warranty", "expiry_date", "must not be before purchase_date")
	}
	return nil
}

// WarrantyDraft holds OCR hints used to pre-fill a new warranty.
// Any field may be empty; dates that could not be parsed stay zero.
type WarrantyDraft struct {
	ItemName     string     `json:"item_name"`
	Manufacturer string     `json:"manufacturer"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	Description  string     `json:"description"`
	RawText      string     `json:"raw_text"`
}
