package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

func TestAwardCompletionAccumulatesAndUnlocksBadges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	_, volunteer := seedUsers(t, db)

	user, err := repo.AwardCompletion(context.Background(), volunteer.ID, 20)
	require.NoError(t, err)
	require.Equal(t, 20, user.Points)
	require.Equal(t, 1, user.RequestsCompleted)

	var badges []string
	require.NoError(t, json.Unmarshal(user.Badges, &badges))
	require.Contains(t, badges, models.BadgeBronze)
	require.NotContains(t, badges, models.BadgeSilver)

	user, err = repo.AwardCompletion(context.Background(), volunteer.ID, 80)
	require.NoError(t, err)
	require.Equal(t, 100, user.Points)
	require.Equal(t, 2, user.RequestsCompleted)

	badges = nil
	require.NoError(t, json.Unmarshal(user.Badges, &badges))
	require.Contains(t, badges, models.BadgeBronze)
	require.Contains(t, badges, models.BadgeSilver)

	_, err = repo.AwardCompletion(context.Background(), 9999, 10)
	require.Error(t, err)
}

func TestUpdateRatingStatsPersists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	_, volunteer := seedUsers(t, db)

	require.NoError(t, repo.UpdateRatingStats(context.Background(), volunteer.ID, 9, 2, 4.5))

	user, err := repo.FindByID(context.Background(), volunteer.ID)
	require.NoError(t, err)
	require.InDelta(t, 9.0, user.TotalRating, 0.001)
	require.Equal(t, 2, user.RatingCount)
	require.InDelta(t, 4.5, user.AverageRating, 0.001)
}

func TestLeaderboardOrdersVolunteersOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	users := []models.User{
		{Name: "Nadia", Email: "n@example.com", Role: models.RoleNeedy, Points: 500},
		{Name: "Viktor", Email: "v@example.com", Role: models.RoleVolunteer, Points: 60, RequestsCompleted: 2},
		{Name: "Wera", Email: "w@example.com", Role: models.RoleVolunteer, Points: 60, RequestsCompleted: 5},
		{Name: "Xena", Email: "x@example.com", Role: models.RoleVolunteer, Points: 110, RequestsCompleted: 3},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	board, err := repo.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, board, 3)
	require.Equal(t, "Xena", board[0].Name)
	// Points tie breaks on completions.
	require.Equal(t, "Wera", board[1].Name)
	require.Equal(t, "Viktor", board[2].Name)
}

func TestUserListSearchAndRoleCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	seedUsers(t, db)

	users, total, err := repo.List(context.Background(), UserFilter{Search: "NADIA"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Nadia", users[0].Name)

	blocked := true
	_, total, err = repo.List(context.Background(), UserFilter{IsBlocked: &blocked})
	require.NoError(t, err)
	require.Zero(t, total)

	counts, err := repo.CountsByRole(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[models.RoleNeedy])
	require.EqualValues(t, 1, counts[models.RoleVolunteer])
}

func TestTouchUpdatesLastActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	needy, _ := seedUsers(t, db)

	stamp := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Touch(context.Background(), needy.ID, stamp))

	user, err := repo.FindByID(context.Background(), needy.ID)
	require.NoError(t, err)
	require.WithinDuration(t, stamp, user.LastActiveAt, time.Second)
}
