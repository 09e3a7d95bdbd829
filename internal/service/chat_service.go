package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/observability"
	"github.com/noah-isme/helphub-go-api/internal/repository"
)

// ChatService exposes the per-request chat threads. Every operation is gated
// on thread membership; non-members read as forbidden, never as not-found.
type ChatService interface {
	ListThreads(ctx context.Context, userID uint) ([]dto.ThreadSummaryResponse, error)
	Messages(ctx context.Context, threadID, userID uint, query dto.MessagePageQuery) (dto.ThreadMessagesResponse, error)
	SendMessage(ctx context.Context, threadID, senderID uint, payload dto.MessageSendPayload) (dto.MessageResponse, error)
	SendImageMessage(ctx context.Context, threadID, senderID uint, asset dto.UploadedAsset) (dto.MessageResponse, error)
	SetTyping(ctx context.Context, threadID, userID uint, isTyping bool) error
	MarkRead(ctx context.Context, threadID, userID uint) error
	DeleteMessage(ctx context.Context, threadID, messageID, requesterID uint) error
}

type chatService struct {
	repo          repository.ChatRepository
	events        EventPublisher
	notifications NotificationService
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewChatService creates a chat service instance.
func NewChatService(repo repository.ChatRepository, events EventPublisher, notifications NotificationService, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &chatService{
		repo:          repo,
		events:        events,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "chat_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/helphub-go-api/internal/service/chat"),
		sanitizer:     sanitizer,
	}
}

func (s *chatService) ListThreads(ctx context.Context, userID uint) ([]dto.ThreadSummaryResponse, error) {
	threads, err := s.repo.ListThreadsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]dto.ThreadSummaryResponse, 0, len(threads))
	for _, thread := range threads {
		summaries = append(summaries, s.summarize(ctx, thread, userID, now))
	}

	return summaries, nil
}

// Messages returns one page of the thread in chronological order and marks
// the caller's unread messages read as a side effect.
func (s *chatService) Messages(ctx context.Context, threadID, userID uint, query dto.MessagePageQuery) (dto.ThreadMessagesResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ThreadMessagesResponse{}, err
	}

	thread, err := s.memberThread(ctx, threadID, userID)
	if err != nil {
		return dto.ThreadMessagesResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 50
	}

	messages, total, err := s.repo.ListMessages(ctx, threadID, page, pageSize)
	if err != nil {
		return dto.ThreadMessagesResponse{}, err
	}

	if err := s.repo.MarkRead(ctx, threadID, userID, time.Now()); err != nil {
		s.logger.Warn().Err(err).Uint("thread_id", threadID).Msg("failed to mark messages read")
	}

	return dto.ThreadMessagesResponse{
		Thread:     s.summarize(ctx, thread, userID, time.Now()),
		Messages:   dto.NewMessageResponseSlice(messages),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *chatService) SendMessage(ctx context.Context, threadID, senderID uint, payload dto.MessageSendPayload) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	thread, err := s.memberThread(ctx, threadID, senderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !thread.IsActive {
		return dto.MessageResponse{}, errorf(ErrConflict, "thread is closed")
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if clean == "" {
		return dto.MessageResponse{}, errorf(ErrConflict, "message content empty after sanitization")
	}

	messageType := payload.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	if payload.ReplyTo != nil {
		if _, err := s.repo.FindMessage(ctx, threadID, *payload.ReplyTo); err != nil {
			return dto.MessageResponse{}, errorf(ErrNotFound, "reply target %d", *payload.ReplyTo)
		}
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.Int64("chat.thread_id", int64(threadID)),
		attribute.Int64("chat.sender_id", int64(senderID)),
		attribute.String("chat.type", messageType),
	))
	defer span.End()

	message := models.ChatMessage{
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   clean,
		Type:      messageType,
		ReplyToID: payload.ReplyTo,
	}
	if len(payload.Attachments) > 0 {
		raw, err := json.Marshal(payload.Attachments)
		if err != nil {
			return dto.MessageResponse{}, err
		}
		message.Attachments = datatypes.JSON(raw)
	}

	if err := s.repo.AppendMessage(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	observability.ChatMessagesSent().WithLabelValues(messageType).Inc()

	response := dto.NewMessageResponse(message)
	s.fanOut(spanCtx, thread, senderID, EventReceiveMessage, map[string]interface{}{
		"chat_id": threadID,
		"message": response,
	})

	if s.notifications != nil {
		preview := clean
		if len(preview) > 120 {
			preview = preview[:120]
		}
		for _, participant := range thread.Participants {
			if participant.UserID == senderID {
				continue
			}
			s.notifications.Notify(spanCtx, participant.UserID, models.NotificationNewMessage, preview)
		}
	}

	return response, nil
}

// SendImageMessage wraps an uploaded asset as an image message, using the
// asset url as content so older clients without attachment support still
// render something.
func (s *chatService) SendImageMessage(ctx context.Context, threadID, senderID uint, asset dto.UploadedAsset) (dto.MessageResponse, error) {
	return s.SendMessage(ctx, threadID, senderID, dto.MessageSendPayload{
		Content:     asset.URL,
		MessageType: models.MessageTypeImage,
		Attachments: []dto.UploadedAsset{asset},
	})
}

func (s *chatService) SetTyping(ctx context.Context, threadID, userID uint, isTyping bool) error {
	thread, err := s.memberThread(ctx, threadID, userID)
	if err != nil {
		return err
	}

	if err := s.repo.SetTyping(ctx, threadID, userID, isTyping, time.Now()); err != nil {
		return err
	}

	s.fanOut(ctx, thread, userID, EventUserTyping, map[string]interface{}{
		"chat_id":   threadID,
		"user_id":   userID,
		"is_typing": isTyping,
	})

	return nil
}

func (s *chatService) MarkRead(ctx context.Context, threadID, userID uint) error {
	if _, err := s.memberThread(ctx, threadID, userID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, threadID, userID, time.Now())
}

func (s *chatService) DeleteMessage(ctx context.Context, threadID, messageID, requesterID uint) error {
	if _, err := s.memberThread(ctx, threadID, requesterID); err != nil {
		return err
	}

	message, err := s.repo.FindMessage(ctx, threadID, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorf(ErrNotFound, "message %d", messageID)
		}
		return err
	}
	if message.SenderID != requesterID {
		return errorf(ErrForbidden, "only the sender may delete a message")
	}

	return s.repo.SoftDeleteMessage(ctx, threadID, messageID, time.Now())
}

// memberThread loads the thread and enforces membership.
func (s *chatService) memberThread(ctx context.Context, threadID, userID uint) (models.ChatThread, error) {
	thread, err := s.repo.FindThreadByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatThread{}, errorf(ErrNotFound, "thread %d", threadID)
		}
		return models.ChatThread{}, err
	}

	for _, participant := range thread.Participants {
		if participant.UserID == userID {
			return thread, nil
		}
	}

	return models.ChatThread{}, errorf(ErrForbidden, "not a participant of thread %d", threadID)
}

func (s *chatService) summarize(ctx context.Context, thread models.ChatThread, userID uint, now time.Time) dto.ThreadSummaryResponse {
	summary := dto.ThreadSummaryResponse{
		ID:            thread.ID,
		HelpRequestID: thread.HelpRequestID,
		LastActivity:  thread.LastActivity,
		IsActive:      thread.IsActive,
		CreatedAt:     thread.CreatedAt,
	}

	if thread.HelpRequest != nil {
		summary.RequestTitle = thread.HelpRequest.Title
		summary.RequestStatus = thread.HelpRequest.Status
	}

	for _, participant := range thread.Participants {
		if participant.User != nil {
			summary.Participants = append(summary.Participants, *dto.NewUserSummary(participant.User))
		}
		if participant.UserID == userID {
			summary.UnreadCount = participant.UnreadCount
			continue
		}
		if participant.TypingActive(now) {
			summary.Typing = append(summary.Typing, dto.TypingStateResponse{
				UserID:   participant.UserID,
				IsTyping: true,
			})
		}
	}

	if last, err := s.repo.LastMessage(ctx, thread.ID); err == nil {
		response := dto.NewMessageResponse(last)
		summary.LastMessage = &response
	}

	if _, total, err := s.repo.ListMessages(ctx, thread.ID, 1, 1); err == nil {
		summary.MessageCount = total
	}

	return summary
}

// fanOut delivers an event to every participant except the actor.
func (s *chatService) fanOut(ctx context.Context, thread models.ChatThread, actorID uint, event string, data interface{}) {
	if s.events == nil {
		return
	}
	for _, participant := range thread.Participants {
		if participant.UserID == actorID {
			continue
		}
		s.events.PublishToUser(ctx, participant.UserID, event, data)
	}
}
