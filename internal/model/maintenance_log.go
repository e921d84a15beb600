package model

import "time"

// MaintenanceLog records one completed occurrence of a task. Logs are not
// edited after creation.
type MaintenanceLog struct {
	ID                string    `json:"id"`
	TaskID            string    `json:"task_id"`
	PropertyID        string    `json:"property_id"`
	CompletedDate     time.Time `json:"completed_date"`
	Cost              float64   `json:"cost"`
	Notes             string    `json:"notes"`
	ServiceProviderID *string   `json:"service_provider_id"`
	Documents         []string  `json:"documents"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (l *MaintenanceLog) Validate() error {
	switch {
	case l.ID == "":
		return invalid("maintenance log", "id", "is required")
	case l.TaskID == "":
		return invalid("maintenance log", "task_id", "is required")
	case l.CompletedDate.IsZero():
		return invalid("maintenance log", "completed_date", "is required")
	case l.Cost < 0:
		return invalid("maintenance log", "cost", "must not be negative")
	}
	return nil
}

// CompletionData is what a caller supplies when completing a task.
type CompletionData struct {
	CompletedDate     time.Time `json:"completed_date"`
	Cost              float64   `json:"cost"`
	Notes             string    `json:"notes"`
	ServiceProviderID *string   `json:"service_provider_id"`
	Documents         []string  `json:"documents"`
}
