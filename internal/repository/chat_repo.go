package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// ChatRepository persists chat threads, their participants and the append-only
// message log.
type ChatRepository interface {
	FindOrCreateThread(ctx context.Context, requestID, needyUserID, volunteerID uint) (models.ChatThread, error)
	FindThreadByID(ctx context.Context, id uint) (models.ChatThread, error)
	FindThreadByRequestID(ctx context.Context, requestID uint) (models.ChatThread, error)
	ListThreadsByUser(ctx context.Context, userID uint) ([]models.ChatThread, error)
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	FindMessage(ctx context.Context, threadID, messageID uint) (models.ChatMessage, error)
	ListMessages(ctx context.Context, threadID uint, page, pageSize int) ([]models.ChatMessage, int64, error)
	LastMessage(ctx context.Context, threadID uint) (models.ChatMessage, error)
	MarkRead(ctx context.Context, threadID, userID uint, at time.Time) error
	SetTyping(ctx context.Context, threadID, userID uint, isTyping bool, at time.Time) error
	SoftDeleteMessage(ctx context.Context, threadID, messageID uint, at time.Time) error
	UnreadCount(ctx context.Context, threadID, userID uint) (int, error)
	DeleteThreadByRequestID(ctx context.Context, requestID uint) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindOrCreateThread is idempotent: the unique index on help_request_id makes
// concurrent creations collapse onto a single row. Losers of the insert race
// re-read the winner's thread.
func (r *chatRepository) FindOrCreateThread(ctx context.Context, requestID, needyUserID, volunteerID uint) (models.ChatThread, error) {
	var thread models.ChatThread

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("help_request_id = ?", requestID).First(&thread).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		thread = models.ChatThread{
			HelpRequestID: requestID,
			IsActive:      true,
			LastActivity:  time.Now(),
			Participants: []models.ChatParticipant{
				{UserID: needyUserID},
				{UserID: volunteerID},
			},
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&thread).Error; err != nil {
			return err
		}
		if thread.ID != 0 {
			return nil
		}

		// Lost the race; pick up the winner.
		return tx.Where("help_request_id = ?", requestID).First(&thread).Error
	})
	if err != nil {
		return models.ChatThread{}, err
	}

	return r.FindThreadByID(ctx, thread.ID)
}

func (r *chatRepository) FindThreadByID(ctx context.Context, id uint) (models.ChatThread, error) {
	var thread models.ChatThread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("HelpRequest").
		First(&thread, id).Error
	if err != nil {
		return models.ChatThread{}, err
	}
	return thread, nil
}

func (r *chatRepository) FindThreadByRequestID(ctx context.Context, requestID uint) (models.ChatThread, error) {
	var thread models.ChatThread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Where("help_request_id = ?", requestID).
		First(&thread).Error
	if err != nil {
		return models.ChatThread{}, err
	}
	return thread, nil
}

func (r *chatRepository) ListThreadsByUser(ctx context.Context, userID uint) ([]models.ChatThread, error) {
	var threadIDs []uint
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("user_id = ?", userID).
		Pluck("thread_id", &threadIDs).Error
	if err != nil {
		return nil, err
	}
	if len(threadIDs) == 0 {
		return nil, nil
	}

	var threads []models.ChatThread
	err = r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		Preload("HelpRequest").
		Where("id IN ?", threadIDs).
		Order("last_activity DESC").
		Find(&threads).Error
	return threads, err
}

// AppendMessage is the thread's serialization point: the insert, the
// last-activity bump and the unread increments for every other participant
// commit in one transaction.
func (r *chatRepository) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ChatThread{}).
			Where("id = ?", message.ThreadID).
			Updates(map[string]interface{}{
				"last_message_id": message.ID,
				"last_activity":   message.CreatedAt,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.ChatParticipant{}).
			Where("thread_id = ? AND user_id <> ?", message.ThreadID, message.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	})
}

func (r *chatRepository) FindMessage(ctx context.Context, threadID, messageID uint) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		First(&message, messageID).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// ListMessages returns the requested page of non-deleted messages in
// chronological order. Pages are counted from the newest message backwards,
// mirroring how clients load history.
func (r *chatRepository) ListMessages(ctx context.Context, threadID uint, page, pageSize int) ([]models.ChatMessage, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	base := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("thread_id = ? AND is_deleted = ?", threadID, false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.ChatMessage
	err := base.
		Preload("Sender").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, total, nil
}

func (r *chatRepository) LastMessage(ctx context.Context, threadID uint) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("thread_id = ? AND is_deleted = ?", threadID, false).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// MarkRead is idempotent: messages already read and counters already at zero
// are left untouched.
func (r *chatRepository) MarkRead(ctx context.Context, threadID, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChatMessage{}).
			Where("thread_id = ? AND sender_id <> ? AND is_read = ?", threadID, userID, false).
			Updates(map[string]interface{}{
				"is_read": true,
				"read_at": at,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.ChatParticipant{}).
			Where("thread_id = ? AND user_id = ?", threadID, userID).
			UpdateColumn("unread_count", 0).Error
	})
}

func (r *chatRepository) SetTyping(ctx context.Context, threadID, userID uint, isTyping bool, at time.Time) error {
	updates := map[string]interface{}{
		"is_typing":      isTyping,
		"last_typing_at": at,
	}
	if !isTyping {
		updates["last_typing_at"] = nil
	}

	return r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Updates(updates).Error
}

// SoftDeleteMessage hides the message and, when it was still unread, hands the
// other participants their unread slot back in the same transaction, so the
// counter keeps matching the visible unread messages.
func (r *chatRepository) SoftDeleteMessage(ctx context.Context, threadID, messageID uint, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.ChatMessage
		if err := tx.Where("thread_id = ?", threadID).First(&message, messageID).Error; err != nil {
			return err
		}
		if message.IsDeleted {
			return nil
		}

		if err := tx.Model(&models.ChatMessage{}).
			Where("id = ?", message.ID).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"deleted_at": at,
			}).Error; err != nil {
			return err
		}

		if message.IsRead {
			return nil
		}

		return tx.Model(&models.ChatParticipant{}).
			Where("thread_id = ? AND user_id <> ? AND unread_count > 0", threadID, message.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count - 1")).Error
	})
}

func (r *chatRepository) UnreadCount(ctx context.Context, threadID, userID uint) (int, error) {
	var participant models.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		First(&participant).Error
	if err != nil {
		return 0, err
	}
	return participant.UnreadCount, nil
}

// DeleteThreadByRequestID hard-deletes the thread, its participants and its
// messages. Only the admin cascade calls this.
func (r *chatRepository) DeleteThreadByRequestID(ctx context.Context, requestID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread models.ChatThread
		err := tx.Where("help_request_id = ?", requestID).First(&thread).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("thread_id = ?", thread.ID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id = ?", thread.ID).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ChatThread{}, thread.ID).Error
	})
}
