package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationType is display category of a notification
type NotificationType string

// notification type
const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// NormalizeNotificationType maps event names and unknown values onto known types
func NormalizeNotificationType(t string) NotificationType {
	switch nt := NotificationType(strings.ToLower(t)); nt {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return nt
	case "batch_completed":
		return NotificationSuccess
	}
	return NotificationInfo
}

// Notification is a message addressed to a user
type Notification struct {
	ID        string
	UserID    uint64
	Title     string
	Message   string
	Type      NotificationType
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

// NewNotificationID returns fresh notification id
func NewNotificationID() string {
	id := uuid.New()
	return "NOTIF-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}

// Notice is a request to notify a user about a state change
type Notice struct {
	UserID  uint64
	Title   string
	Message string
	Type    string
	Link    string

	// Event and OrderID describe the transition for event consumers
	Event   string
	OrderID string
}

// event names
const (
	EventOrderStatusChanged = "order.status_changed"
	EventMachineAssigned    = "order.machine_assigned"
	EventPaymentVerified    = "payment.verified"
	EventPaymentRejected    = "payment.rejected"
	EventBatchCompleted     = "batch.completed"
)
