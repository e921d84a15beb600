package recurrence

import (
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

// NextDue returns the due date that follows a completion on completed.
// Arithmetic is calendar based in UTC: months and years keep the day of
// month, clamped to the last day of a shorter target month, and the time
// of day is preserved.
func NextDue(completed time.Time, f model.Frequency) (time.Time, error) {
	if err := Validate(f); err != nil {
		return time.Time{}, err
	}

	c := completed.UTC()
	switch f.Unit {
	case model.UnitDays:
		return c.AddDate(0, 0, f.Value), nil
	case model.UnitWeeks:
		return c.AddDate(0, 0, 7*f.Value), nil
	case model.UnitMonths:
		return addMonths(c, f.Value), nil
	default:
		return addMonths(c, 12*f.Value), nil
	}
}

// Series applies NextDue n times starting at start and returns every
// intermediate due date. Clamping carries forward, so a series starting on
// Jan 31 continues from Feb 29 rather than returning to the 31st.
func Series(start time.Time, f model.Frequency, n int) ([]time.Time, error) {
	out := make([]time.Time, 0, n)
	cur := start
	for range n {
		next, err := NextDue(cur, f)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// Occurrences returns the due dates after start that fall inside
// [rangeStart, rangeEnd), at most limit of them.
func Occurrences(start time.Time, f model.Frequency, rangeStart, rangeEnd time.Time, limit int) ([]time.Time, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}

	var out []time.Time
	cur := start
	for len(out) < limit {
		next, err := NextDue(cur, f)
		if err != nil {
			return nil, err
		}
		if !next.Before(rangeEnd) {
			break
		}
		if !next.Before(rangeStart) {
			out = append(out, next)
		}
		cur = next
	}
	return out, nil
}

// addMonths moves t by n calendar months, clamping the day of month.
// time.AddDate would normalize Jan 31 + 1 month to Mar 2/3.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + n
	year += total / 12
	m := total % 12
	if m < 0 {
		m += 12
		year--
	}
	target := time.Month(m + 1)
	if last := daysInMonth(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
