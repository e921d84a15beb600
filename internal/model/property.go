package model

import (
	"strings"
	"time"
)

// Property is the root aggregate. Tasks and warranties reference it by PropertyID.
type Property struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Property) Validate() error {
	if p.ID == "" {
		return invalid("property", "id", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("property", "name", "is required")
	}
	return nil
}
