package model

import "time"

// NotificationKind enumerates notification types.
type NotificationKind string

const (
	KindVIPExpiringSoon      NotificationKind = "vip_expiring_soon"
	KindVIPExpired           NotificationKind = "vip_expired"
	KindVIPActivated         NotificationKind = "vip_activated"
	KindAppointmentConfirmed NotificationKind = "appointment_confirmed"
	KindAppointmentCancelled NotificationKind = "appointment_cancelled"
	KindAppointmentReminder  NotificationKind = "appointment_reminder"
	KindNewReview            NotificationKind = "new_review"
	KindPromotion            NotificationKind = "promotion"
)

// Priority tags a notification for presentation. It is metadata and never an
// ordering key for storage.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns 0 for low through 3 for urgent, -1 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return -1
	}
}

// Notification is a timestamped, priority-tagged alert. IsRead and ReadAt are
// the only fields mutated after creation.
type Notification struct {
	ID        string           `json:"id"`
	SubjectID string           `json:"subject_id"`
	Kind      NotificationKind `json:"kind"`
	Priority  Priority         `json:"priority"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	ActionURL string           `json:"action_url,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}
