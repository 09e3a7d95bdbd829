package models

import "time"

// Notification kinds emitted by the request lifecycle and chat subsystems.
const (
	NotificationRequestAccepted = "request_accepted"
	NotificationStatusChanged   = "status_changed"
	NotificationNewMessage      = "new_message"
	NotificationAccountBlocked  = "account_blocked"
)

// Notification is a durable, fire-and-forget notice targeted at one user.
// Writing one never blocks or rolls back the operation that produced it.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:64;not null" json:"type"`
	Message   string    `gorm:"size:2000;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
