package dto

import (
	"time"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// AdminUserListQuery filters GET /api/admin/users.
type AdminUserListQuery struct {
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Role       string `query:"role" validate:"omitempty,oneof=needy volunteer admin"`
	IsVerified *bool  `query:"is_verified"`
	IsBlocked  *bool  `query:"is_blocked"`
	Search     string `query:"search" validate:"omitempty,max=100"`
}

// AdminRequestListQuery filters GET /api/admin/requests.
type AdminRequestListQuery struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status    string `query:"status" validate:"omitempty,oneof=Pending Accepted 'On the Way' Completed Cancelled"`
	Category  string `query:"category" validate:"omitempty,oneof=Food Medical Shelter Education Transportation Other"`
	IsFlagged *bool  `query:"is_flagged"`
}

// UserStatusUpdatePayload changes moderation flags on an account.
type UserStatusUpdatePayload struct {
	IsBlocked  *bool  `json:"is_blocked"`
	IsVerified *bool  `json:"is_verified"`
	Role       string `json:"role" validate:"omitempty,oneof=needy volunteer admin"`
}

// AdminUserResponse is the moderation view of an account. RecentRatings is
// filled only on the single-user lookup.
type AdminUserResponse struct {
	ID                uint             `json:"id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Role              string           `json:"role"`
	IsVerified        bool             `json:"is_verified"`
	IsBlocked         bool             `json:"is_blocked"`
	RequestsCreated   int              `json:"requests_created"`
	RequestsCompleted int              `json:"requests_completed"`
	AverageRating     float64          `json:"average_rating"`
	Points            int              `json:"points"`
	RecentRatings     []RatingResponse `json:"recent_ratings,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// AdminUserListResponse is a page of accounts.
type AdminUserListResponse struct {
	Items      []AdminUserResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// DashboardOverview is the headline block of the admin dashboard.
type DashboardOverview struct {
	TotalUsers      int64 `json:"total_users"`
	TotalRequests   int64 `json:"total_requests"`
	TotalVolunteers int64 `json:"total_volunteers"`
	TotalNeedyUsers int64 `json:"total_needy_users"`
}

// MonthlyCount is one month's request volume.
type MonthlyCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// DashboardResponse aggregates the admin dashboard payload.
type DashboardResponse struct {
	Overview         DashboardOverview   `json:"overview"`
	RequestsByStatus map[string]int64    `json:"requests_by_status"`
	UsersByRole      map[string]int64    `json:"users_by_role"`
	RecentRequests   []RequestResponse   `json:"recent_requests"`
	RecentUsers      []AdminUserResponse `json:"recent_users"`
	MonthlyStats     []MonthlyCount      `json:"monthly_stats"`
	GeneratedAt      time.Time           `json:"generated_at"`
}

// LeaderboardEntry ranks one volunteer by points.
type LeaderboardEntry struct {
	UserID            uint     `json:"user_id"`
	Name              string   `json:"name"`
	Points            int      `json:"points"`
	RequestsCompleted int      `json:"requests_completed"`
	AverageRating     float64  `json:"average_rating"`
	Badges            []string `json:"badges,omitempty"`
}

// FlaggedContentResponse groups flagged requests and ratings for moderation.
type FlaggedContentResponse struct {
	Requests []RequestResponse `json:"requests"`
	Ratings  []RatingResponse  `json:"ratings"`
}

// NewAdminUserResponse converts an account to its moderation view.
func NewAdminUserResponse(user models.User) AdminUserResponse {
	return AdminUserResponse{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role,
		IsVerified:        user.IsVerified,
		IsBlocked:         user.IsBlocked,
		RequestsCreated:   user.RequestsCreated,
		RequestsCompleted: user.RequestsCompleted,
		AverageRating:     user.AverageRating,
		Points:            user.Points,
		CreatedAt:         user.CreatedAt,
	}
}

// NewAdminUserResponseSlice converts a slice of accounts.
func NewAdminUserResponseSlice(users []models.User) []AdminUserResponse {
	out := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewAdminUserResponse(user))
	}
	return out
}
