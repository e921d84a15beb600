package model

import "time"

// TrialKey is the fixed key of the trial singleton.
const TrialKey = "trial"

// TrialInfo holds the raw subscription state. IsActive is a cache written
// alongside the record; readers derive it again with trial.Derive.
type TrialInfo struct {
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	IsActive          bool      `json:"is_active"`
	IsPro             bool      `json:"is_pro"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	UpdatedAt         time.Time `json:"updated_at"`
}
