package model

import "time"

// Notification types. The set is open; the feed treats Type as opaque.
const (
	NotificationTaskAssigned       = "task_assigned"
	NotificationTaskCompleted      = "task_completed"
	NotificationConnectionAccepted = "connection_accepted"
)

// Notification is a one-way fact delivered to a single user. Once Read is
// true it never reverts.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// UserID is the recipient.
	UserID string `json:"user_id"`

	// Type identifies what triggered the notification.
	Type string `json:"type"`

	// Title and Message are the human-readable text.
	Title   string `json:"title"`
	Message string `json:"message"`

	// Payload carries correlation ids such as task_id or connection_id.
	Payload map[string]string `json:"payload,omitempty"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
