// Package trial derives the trial and subscription state from the stored
// TrialInfo record.
package trial

import (
	"time"

	"github.com/dukerupert/homekeep/internal/model"
)

// Length is the fixed length of the unpaid trial window.
const Length = 14 * 24 * time.Hour

const day = 24 * time.Hour

// Status is the derived view of a TrialInfo at a given instant.
type Status struct {
	IsActive          bool      `json:"is_active"`
	DaysLeft          int       `json:"days_left"`
	IsPro             bool      `json:"is_pro"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
}

// Subscription is what the payment provider reports for a user.
type Subscription struct {
	Active            bool
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// New returns the trial record created on first use.
func New(now time.Time) *model.TrialInfo {
	now = now.UTC()
	return &model.TrialInfo{
		StartDate: now,
		EndDate:   now.Add(Length),
		IsActive:  true,
		UpdatedAt: now,
	}
}

// Derive computes activation and remaining days. The stored IsActive flag
// is ignored.
func Derive(now time.Time, info model.TrialInfo) Status {
	s := Status{
		IsPro:             info.IsPro,
		StartDate:         info.StartDate,
		EndDate:           info.EndDate,
		CancelAtPeriodEnd: info.CancelAtPeriodEnd,
	}
	if info.IsPro {
		s.IsActive = true
		return s
	}

	s.IsActive = !now.After(info.EndDate)
	s.DaysLeft = daysLeft(now, info.EndDate)
	return s
}

// daysLeft is ceil((end - now) / 1 day), never negative.
func daysLeft(now, end time.Time) int {
	remaining := end.Sub(now)
	if remaining <= 0 {
		return 0
	}
	n := int(remaining / day)
	if remaining%day != 0 {
		n++
	}
	return n
}

// Fold merges a provider subscription report into info and refreshes the
// IsActive cache. An inactive report clears IsPro but keeps EndDate.
func Fold(now time.Time, info model.TrialInfo, sub Subscription) model.TrialInfo {
	if sub.Active {
		info.IsPro = true
		if sub.CurrentPeriodEnd != nil {
			info.EndDate = sub.CurrentPeriodEnd.UTC()
		}
		info.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	} else {
		info.IsPro = false
		info.CancelAtPeriodEnd = false
	}
	info.IsActive = Derive(now, info).IsActive
	info.UpdatedAt = now.UTC()
	return info
}
