package model

import "time"

// Notification kinds
const (
	NotifKindTaskDue        = "task_due"
	NotifKindWarrantyExpiry = "warranty_expiry"
)

// Notification is a persisted reminder. At most one unsent row exists per
// (Kind, RefID).
type Notification struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	RefID     string     `json:"ref_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	FireAt    time.Time  `json:"fire_at"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
}
