package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// MessageSendPayload is the body for POST /api/chat/:chatId/messages.
type MessageSendPayload struct {
	Content     string          `json:"content" validate:"required,min=1,max=1000"`
	MessageType string          `json:"message_type" validate:"omitempty,oneof=text image document location"`
	Attachments []UploadedAsset `json:"attachments" validate:"omitempty,max=5"`
	ReplyTo     *uint           `json:"reply_to"`
}

// TypingPayload toggles the caller's typing indicator.
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// MessagePageQuery paginates GET /api/chat/:chatId.
type MessagePageQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse serializes one chat message.
type MessageResponse struct {
	ID          uint            `json:"id"`
	ThreadID    uint            `json:"thread_id"`
	Sender      *UserSummary    `json:"sender,omitempty"`
	SenderID    uint            `json:"sender_id"`
	Content     string          `json:"content"`
	Type        string          `json:"type"`
	Attachments []UploadedAsset `json:"attachments,omitempty"`
	IsRead      bool            `json:"is_read"`
	ReadAt      *time.Time      `json:"read_at,omitempty"`
	IsEdited    bool            `json:"is_edited"`
	ReplyToID   *uint           `json:"reply_to_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TypingStateResponse reports one participant's live typing indicator.
type TypingStateResponse struct {
	UserID   uint `json:"user_id"`
	IsTyping bool `json:"is_typing"`
}

// ThreadSummaryResponse is the per-thread entry in GET /api/chat.
type ThreadSummaryResponse struct {
	ID            uint                  `json:"id"`
	HelpRequestID uint                  `json:"help_request_id"`
	RequestTitle  string                `json:"request_title,omitempty"`
	RequestStatus string                `json:"request_status,omitempty"`
	Participants  []UserSummary         `json:"participants"`
	LastMessage   *MessageResponse      `json:"last_message,omitempty"`
	LastActivity  time.Time             `json:"last_activity"`
	IsActive      bool                  `json:"is_active"`
	UnreadCount   int                   `json:"unread_count"`
	MessageCount  int64                 `json:"message_count"`
	Typing        []TypingStateResponse `json:"typing,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// ThreadMessagesResponse is the paginated message view of one thread.
type ThreadMessagesResponse struct {
	Thread     ThreadSummaryResponse `json:"thread"`
	Messages   []MessageResponse     `json:"messages"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewMessageResponse converts a message model to a DTO.
func NewMessageResponse(message models.ChatMessage) MessageResponse {
	response := MessageResponse{
		ID:        message.ID,
		ThreadID:  message.ThreadID,
		Sender:    NewUserSummary(message.Sender),
		SenderID:  message.SenderID,
		Content:   message.Content,
		Type:      message.Type,
		IsRead:    message.IsRead,
		ReadAt:    message.ReadAt,
		IsEdited:  message.IsEdited,
		ReplyToID: message.ReplyToID,
		CreatedAt: message.CreatedAt,
	}

	if len(message.Attachments) > 0 {
		_ = json.Unmarshal(message.Attachments, &response.Attachments)
	}

	return response
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}
