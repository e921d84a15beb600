package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/homekeep/internal/model"
)

// ErrInvalidFrequencyUnit is returned for a unit outside days, weeks, months
// and years.
var ErrInvalidFrequencyUnit = errors.New("invalid frequency unit")

var unitFromName = map[string]model.FrequencyUnit{
	"days":   model.UnitDays,
	"day":    model.UnitDays,
	"weeks":  model.UnitWeeks,
	"week":   model.UnitWeeks,
	"months": model.UnitMonths,
	"month":  model.UnitMonths,
	"years":  model.UnitYears,
	"year":   model.UnitYears,
}

// ParseUnit parses a unit name such as "months". Singular forms and
// surrounding whitespace or case are tolerated.
func ParseUnit(s string) (model.FrequencyUnit, error) {
	u, ok := unitFromName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequencyUnit, s)
	}
	return u, nil
}

// Validate checks the frequency value and unit.
func Validate(f model.Frequency) error {
	if !f.Unit.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequencyUnit, f.Unit)
	}
	if f.Value < 1 {
		return fmt.Errorf("frequency value must be positive, got %d", f.Value)
	}
	return nil
}

// Describe returns a human-readable description of the frequency.
func Describe(f model.Frequency) string {
	singular := map[model.FrequencyUnit]string{
		model.UnitDays:   "Daily",
		model.UnitWeeks:  "Weekly",
		model.UnitMonths: "Monthly",
		model.UnitYears:  "Yearly",
	}
	if f.Value == 1 {
		if s, ok := singular[f.Unit]; ok {
			return s
		}
	}
	if f.Value == 2 && f.Unit == model.UnitWeeks {
		return "Every 2 weeks"
	}
	return fmt.Sprintf("Every %d %s", f.Value, f.Unit)
}
