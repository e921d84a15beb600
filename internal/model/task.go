package model

import (
	"fmt"
	"strings"
	"time"
)

type FrequencyUnit string

const (
	UnitDays   FrequencyUnit = "days"
	UnitWeeks  FrequencyUnit = "weeks"
	UnitMonths FrequencyUnit = "months"
	UnitYears  FrequencyUnit = "years"
)

func (u FrequencyUnit) Valid() bool {
	switch u {
	case UnitDays, UnitWeeks, UnitMonths, UnitYears:
		return true
	}
	return false
}

// Frequency is how often a maintenance task recurs, e.g. {3, months}.
type Frequency struct {
	Value int           `json:"value"`
	Unit  FrequencyUnit `json:"unit"`
}

func (f Frequency) String() string {
	return fmt.Sprintf("%d %s", f.Value, f.Unit)
}

type MaintenanceTask struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      Category   `json:"category"`
	Frequency     Frequency  `json:"frequency"`
	LastCompleted *time.Time `json:"last_completed"`
	NextDue       time.Time  `json:"next_due"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (t *MaintenanceTask) Validate() error {
	switch {
	case t.ID == "":
		return invalid("maintenance task", "id", "is required")
	case t.PropertyID == "":
		return invalid("maintenance task", "property_id", "is required")
	case strings.TrimSpace(t.Title) == "":
		return invalid("maintenance task", "title", "is required")
	case !t.Category.Valid():
		return invalid("maintenance task", "category", fmt.Sprintf("%q is not a known category", t.Category))
	case t.Frequency.Value < 1:
		return invalid("maintenance task", "frequency.value", "must be a positive integer")
	case !t.Frequency.Unit.Valid():
		return invalid("maintenance task", "frequency.unit", fmt.Sprintf("%q is not a known unit", t.Frequency.Unit))
	case t.NextDue.IsZero():
		return invalid("maintenance task", "next_due", "is required")
	}
	return nil
}
