package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message types carried in a chat thread.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeDocument = "document"
	MessageTypeLocation = "location"
)

// TypingExpiry is the quiet period after which a typing indicator reads as
// cleared. Expiry is evaluated lazily on read rather than by timers.
const TypingExpiry = 5 * time.Second

// ChatThread is the message channel bound one-to-one to an accepted help
// request. The participant pair (needy user + volunteer) is fixed at creation.
type ChatThread struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	HelpRequestID uint              `gorm:"not null;uniqueIndex" json:"help_request_id"`
	HelpRequest   *HelpRequest      `gorm:"foreignKey:HelpRequestID" json:"help_request,omitempty"`
	IsActive      bool              `gorm:"not null;default:true" json:"is_active"`
	LastMessageID *uint             `json:"last_message_id,omitempty"`
	LastActivity  time.Time         `gorm:"index" json:"last_activity"`
	Participants  []ChatParticipant `gorm:"foreignKey:ThreadID" json:"participants,omitempty"`
	Messages      []ChatMessage     `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ChatParticipant carries the per-member bookkeeping of a thread: the unread
// counter and the typing indicator.
type ChatParticipant struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ThreadID     uint       `gorm:"not null;uniqueIndex:idx_thread_user,priority:1" json:"thread_id"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_thread_user,priority:2;index" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	UnreadCount  int        `gorm:"not null;default:0" json:"unread_count"`
	IsTyping     bool       `gorm:"not null;default:false" json:"is_typing"`
	LastTypingAt *time.Time `json:"last_typing_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TypingActive reports whether the participant counts as typing at the given
// instant, applying the quiet-period expiry.
func (p ChatParticipant) TypingActive(now time.Time) bool {
	if !p.IsTyping || p.LastTypingAt == nil {
		return false
	}
	return now.Sub(*p.LastTypingAt) < TypingExpiry
}

// ChatMessage is one append-only entry in a thread's log. Only the read,
// edited and deleted flags mutate after creation, and only the sender may
// mark a message deleted. Deleted messages stay in the log for audit.
type ChatMessage struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ThreadID    uint           `gorm:"not null;index" json:"thread_id"`
	SenderID    uint           `gorm:"not null;index" json:"sender_id"`
	Sender      *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content     string         `gorm:"size:1000;not null" json:"content"`
	Type        string         `gorm:"size:16;not null;default:text" json:"type"`
	Attachments datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	IsRead      bool           `gorm:"not null;default:false" json:"is_read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	IsEdited    bool           `gorm:"not null;default:false" json:"is_edited"`
	EditedAt    *time.Time     `json:"edited_at,omitempty"`
	IsDeleted   bool           `gorm:"not null;default:false" json:"is_deleted"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
	ReplyToID   *uint          `json:"reply_to_id,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
