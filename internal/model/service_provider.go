package model

import (
	"fmt"
	"strings"
	"time"
)

// ServiceProvider is a contact for hired work. It is referenced by
// maintenance logs but owned by no property.
type ServiceProvider struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"category"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	Website    string     `json:"website"`
	Notes      string     `json:"notes"`
	Rating     int        `json:"rating"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (p *ServiceProvider) Validate() error {
	switch {
	case p.ID == "":
		return invalid("service provider", "id", "is required")
	case strings.TrimSpace(p.Name) == "":
		return invalid("service provider", "name", "is required")
	case len(p.Categories) == 0:
		return invalid("service provider", "category", "must contain at least one category")
	case p.Rating < 0 || p.Rating > 5:
		return invalid("service provider", "rating", "must be between 0 and 5")
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return invalid("service provider", "category", fmt.Sprintf("%q is not a known category", c))
		}
	}
	return nil
}
