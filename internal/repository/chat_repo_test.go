package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

func TestFindOrCreateThreadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	first, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Len(t, first.Participants, 2)
	require.True(t, first.IsActive)

	second, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, second.Participants, 2)
}

func TestAppendMessageBumpsThreadAndUnread(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	message := models.ChatMessage{
		ThreadID: thread.ID,
		SenderID: needy.ID,
		Content:  "the door code is 4711",
		Type:     models.MessageTypeText,
	}
	require.NoError(t, repo.AppendMessage(context.Background(), &message))
	require.NotZero(t, message.ID)

	unread, err := repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	// The sender's own counter is untouched.
	unread, err = repo.UnreadCount(context.Background(), thread.ID, needy.ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	stored, err := repo.FindThreadByID(context.Background(), thread.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageID)
	require.Equal(t, message.ID, *stored.LastMessageID)
}

func TestListMessagesChronologicalAndPaged(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		message := models.ChatMessage{
			ThreadID:  thread.ID,
			SenderID:  needy.ID,
			Content:   "note",
			Type:      models.MessageTypeText,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.AppendMessage(context.Background(), &message))
	}

	// First page holds the newest window, returned oldest-first.
	messages, total, err := repo.ListMessages(context.Background(), thread.ID, 1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, messages, 2)
	require.True(t, messages[0].CreatedAt.Before(messages[1].CreatedAt))

	older, _, err := repo.ListMessages(context.Background(), thread.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.True(t, older[1].CreatedAt.Before(messages[0].CreatedAt))
}

func TestSoftDeletedMessagesAreHidden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	keep := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "first", Type: models.MessageTypeText, CreatedAt: time.Now().Add(-2 * time.Minute)}
	drop := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "oops", Type: models.MessageTypeText, CreatedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, repo.AppendMessage(context.Background(), &keep))
	require.NoError(t, repo.AppendMessage(context.Background(), &drop))

	require.NoError(t, repo.SoftDeleteMessage(context.Background(), thread.ID, drop.ID, time.Now()))

	messages, total, err := repo.ListMessages(context.Background(), thread.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, messages, 1)
	require.Equal(t, keep.ID, messages[0].ID)

	last, err := repo.LastMessage(context.Background(), thread.ID)
	require.NoError(t, err)
	require.Equal(t, keep.ID, last.ID)
}

func TestSoftDeleteUnreadMessageReleasesCounter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	message := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "wrong address, ignore", Type: models.MessageTypeText}
	require.NoError(t, repo.AppendMessage(context.Background(), &message))

	unread, err := repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	require.NoError(t, repo.SoftDeleteMessage(context.Background(), thread.ID, message.ID, time.Now()))

	// The deleted message no longer counts against the recipient.
	unread, err = repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	_, total, err := repo.ListMessages(context.Background(), thread.ID, 1, 10)
	require.NoError(t, err)
	require.Zero(t, total)

	// Deleting twice does not drive the counter negative.
	require.NoError(t, repo.SoftDeleteMessage(context.Background(), thread.ID, message.ID, time.Now()))
	unread, err = repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestSoftDeleteReadMessageKeepsCounter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	read := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "first", Type: models.MessageTypeText, CreatedAt: time.Now().Add(-2 * time.Minute)}
	require.NoError(t, repo.AppendMessage(context.Background(), &read))
	require.NoError(t, repo.MarkRead(context.Background(), thread.ID, volunteer.ID, time.Now()))

	pending := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "second", Type: models.MessageTypeText, CreatedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, repo.AppendMessage(context.Background(), &pending))

	// Removing an already-read message leaves the outstanding unread intact.
	require.NoError(t, repo.SoftDeleteMessage(context.Background(), thread.ID, read.ID, time.Now()))

	unread, err := repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, unread)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	message := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "ping", Type: models.MessageTypeText}
	require.NoError(t, repo.AppendMessage(context.Background(), &message))

	require.NoError(t, repo.MarkRead(context.Background(), thread.ID, volunteer.ID, time.Now()))
	require.NoError(t, repo.MarkRead(context.Background(), thread.ID, volunteer.ID, time.Now()))

	unread, err := repo.UnreadCount(context.Background(), thread.ID, volunteer.ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	stored, err := repo.FindMessage(context.Background(), thread.ID, message.ID)
	require.NoError(t, err)
	require.True(t, stored.IsRead)
	require.NotNil(t, stored.ReadAt)
}

func TestSetTypingStampsAndClears(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	require.NoError(t, repo.SetTyping(context.Background(), thread.ID, volunteer.ID, true, time.Now()))

	stored, err := repo.FindThreadByID(context.Background(), thread.ID)
	require.NoError(t, err)
	for _, participant := range stored.Participants {
		if participant.UserID == volunteer.ID {
			require.True(t, participant.IsTyping)
			require.NotNil(t, participant.LastTypingAt)
			require.True(t, participant.TypingActive(time.Now()))
			require.False(t, participant.TypingActive(time.Now().Add(models.TypingExpiry+time.Second)))
		}
	}

	require.NoError(t, repo.SetTyping(context.Background(), thread.ID, volunteer.ID, false, time.Now()))

	stored, err = repo.FindThreadByID(context.Background(), thread.ID)
	require.NoError(t, err)
	for _, participant := range stored.Participants {
		if participant.UserID == volunteer.ID {
			require.False(t, participant.IsTyping)
			require.Nil(t, participant.LastTypingAt)
		}
	}
}

func TestDeleteThreadByRequestIDCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	needy, volunteer := seedUsers(t, db)
	request := seedRequest(t, db, needy.ID, nil)

	thread, err := repo.FindOrCreateThread(context.Background(), request.ID, needy.ID, volunteer.ID)
	require.NoError(t, err)

	message := models.ChatMessage{ThreadID: thread.ID, SenderID: needy.ID, Content: "bye", Type: models.MessageTypeText}
	require.NoError(t, repo.AppendMessage(context.Background(), &message))

	require.NoError(t, repo.DeleteThreadByRequestID(context.Background(), request.ID))

	_, err = repo.FindThreadByID(context.Background(), thread.ID)
	require.Error(t, err)

	var remaining int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Where("thread_id = ?", thread.ID).Count(&remaining).Error)
	require.Zero(t, remaining)

	// Deleting a request without a thread is a no-op.
	require.NoError(t, repo.DeleteThreadByRequestID(context.Background(), 9999))
}
