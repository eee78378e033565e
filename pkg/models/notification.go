package models

// NotificationType classifies a user-facing notification.
type NotificationType string

const (
	NotificationExecutionSuccess NotificationType = "EXECUTION_SUCCESS"
	NotificationExecutionDelayed NotificationType = "EXECUTION_DELAYED"
	NotificationExecutionFailed  NotificationType = "EXECUTION_FAILED"
	NotificationIntentCreated    NotificationType = "INTENT_CREATED"
)

// Notification is the payload handed to the notification sink after an
// execution outcome or an intent lifecycle event.
type Notification struct {
	Type    NotificationType  `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}
