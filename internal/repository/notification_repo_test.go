package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

func TestNotificationInboxFlow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	needy, volunteer := seedUsers(t, db)

	for _, n := range []models.Notification{
		{UserID: needy.ID, Type: models.NotificationRequestAccepted, Message: "accepted"},
		{UserID: needy.ID, Type: models.NotificationStatusChanged, Message: "on the way"},
		{UserID: volunteer.ID, Type: models.NotificationNewMessage, Message: "hello"},
	} {
		notification := n
		require.NoError(t, repo.Create(context.Background(), &notification))
	}

	items, total, err := repo.ListByUser(context.Background(), needy.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, items, 2)

	count, err := repo.UnreadCount(context.Background(), needy.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	require.NoError(t, repo.MarkRead(context.Background(), needy.ID, items[0].ID))

	count, err = repo.UnreadCount(context.Background(), needy.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, repo.MarkAllRead(context.Background(), needy.ID))

	count, err = repo.UnreadCount(context.Background(), needy.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	// The other inbox is untouched.
	count, err = repo.UnreadCount(context.Background(), volunteer.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestNotificationMarkReadScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	needy, volunteer := seedUsers(t, db)

	notification := models.Notification{UserID: needy.ID, Type: models.NotificationNewMessage, Message: "hi"}
	require.NoError(t, repo.Create(context.Background(), &notification))

	err := repo.MarkRead(context.Background(), volunteer.ID, notification.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
