package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/repository"
)

// NotificationService records and serves durable per-user notices. Notify is
// fire-and-forget: the lifecycle transitions that produce notices must never
// fail because a notice could not be written.
type NotificationService interface {
	Notify(ctx context.Context, userID uint, kind, message string)
	List(ctx context.Context, userID uint, page, pageSize int) ([]dto.NotificationResponse, dto.PaginationMeta, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

// NewNotificationService creates a notification service instance.
func NewNotificationService(repo repository.NotificationRepository, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *notificationService) Notify(ctx context.Context, userID uint, kind, message string) {
	notification := models.Notification{
		UserID:  userID,
		Type:    kind,
		Message: message,
	}
	if err := s.repo.Create(ctx, &notification); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Str("type", kind).Msg("failed to record notification")
	}
}

func (s *notificationService) List(ctx context.Context, userID uint, page, pageSize int) ([]dto.NotificationResponse, dto.PaginationMeta, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	notifications, total, err := s.repo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	return dto.NewNotificationResponseSlice(notifications), dto.NewPaginationMeta(page, pageSize, total), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id uint) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorf(ErrNotFound, "notification %d", id)
		}
		return err
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}
