package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/repository"
)

const monthlyStatsWindow = 12

// AdminService serves the moderation surface: the dashboard, account
// management, request flagging and the hard-delete cascade.
type AdminService interface {
	Dashboard(ctx context.Context) (dto.DashboardResponse, error)
	ListUsers(ctx context.Context, query dto.AdminUserListQuery) (dto.AdminUserListResponse, error)
	GetUser(ctx context.Context, id uint) (dto.AdminUserResponse, error)
	UpdateUserStatus(ctx context.Context, id uint, payload dto.UserStatusUpdatePayload) (dto.AdminUserResponse, error)
	ListRequests(ctx context.Context, query dto.AdminRequestListQuery) (dto.RequestListResponse, error)
	FlagRequest(ctx context.Context, id uint, payload dto.FlagPayload) (dto.RequestResponse, error)
	FlagRating(ctx context.Context, id uint, payload dto.FlagPayload) (dto.RatingResponse, error)
	DeleteRequest(ctx context.Context, id uint) error
	FlaggedContent(ctx context.Context) (dto.FlaggedContentResponse, error)
	Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error)
}

type adminService struct {
	users         repository.UserRepository
	requests      repository.HelpRequestRepository
	chats         repository.ChatRepository
	ratings       repository.RatingRepository
	notifications NotificationService
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewAdminService creates an admin service instance.
func NewAdminService(
	users repository.UserRepository,
	requests repository.HelpRequestRepository,
	chats repository.ChatRepository,
	ratings repository.RatingRepository,
	notifications NotificationService,
	validate *validator.Validate,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		users:         users,
		requests:      requests,
		chats:         chats,
		ratings:       ratings,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) Dashboard(ctx context.Context) (dto.DashboardResponse, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	totalRequests, err := s.requests.Count(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	usersByRole, err := s.users.CountsByRole(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	requestsByStatus, err := s.requests.CountsByStatus(ctx)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	recentRequests, err := s.requests.Recent(ctx, 10)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	recentUsers, err := s.users.Recent(ctx, 10)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	monthly, err := s.monthlyStats(ctx, time.Now())
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	requestItems := make([]dto.RequestResponse, 0, len(recentRequests))
	for _, request := range recentRequests {
		requestItems = append(requestItems, dto.NewRequestResponse(request, nil))
	}

	return dto.DashboardResponse{
		Overview: dto.DashboardOverview{
			TotalUsers:      totalUsers,
			TotalRequests:   totalRequests,
			TotalVolunteers: usersByRole[models.RoleVolunteer],
			TotalNeedyUsers: usersByRole[models.RoleNeedy],
		},
		RequestsByStatus: requestsByStatus,
		UsersByRole:      usersByRole,
		RecentRequests:   requestItems,
		RecentUsers:      dto.NewAdminUserResponseSlice(recentUsers),
		MonthlyStats:     monthly,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

// monthlyStats buckets request volume per calendar month in Go, so the query
// stays portable between the postgres deployment and the sqlite test harness.
func (s *adminService) monthlyStats(ctx context.Context, now time.Time) ([]dto.MonthlyCount, error) {
	since := now.AddDate(0, -monthlyStatsWindow+1, 0)
	since = time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)

	requests, err := s.requests.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*dto.MonthlyCount)
	for _, request := range requests {
		created := request.CreatedAt.UTC()
		key := created.Format("2006-01")
		if bucket, ok := buckets[key]; ok {
			bucket.Count++
			continue
		}
		buckets[key] = &dto.MonthlyCount{
			Year:  created.Year(),
			Month: int(created.Month()),
			Count: 1,
		}
	}

	stats := make([]dto.MonthlyCount, 0, len(buckets))
	for _, bucket := range buckets {
		stats = append(stats, *bucket)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Year != stats[j].Year {
			return stats[i].Year < stats[j].Year
		}
		return stats[i].Month < stats[j].Month
	})

	return stats, nil
}

func (s *adminService) ListUsers(ctx context.Context, query dto.AdminUserListQuery) (dto.AdminUserListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AdminUserListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 20
	}

	users, total, err := s.users.List(ctx, repository.UserFilter{
		Page:       page,
		PageSize:   pageSize,
		Role:       query.Role,
		IsVerified: query.IsVerified,
		IsBlocked:  query.IsBlocked,
		Search:     query.Search,
	})
	if err != nil {
		return dto.AdminUserListResponse{}, err
	}

	return dto.AdminUserListResponse{
		Items:      dto.NewAdminUserResponseSlice(users),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// GetUser returns the moderation view of one account, including the latest
// ratings it received so a moderator can judge complaints in context.
func (s *adminService) GetUser(ctx context.Context, id uint) (dto.AdminUserResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return dto.AdminUserResponse{}, err
	}

	response := dto.NewAdminUserResponse(user)
	ratings, _, err := s.ratings.ListByRated(ctx, id, 1, 5)
	if err != nil {
		return dto.AdminUserResponse{}, err
	}
	for _, rating := range ratings {
		response.RecentRatings = append(response.RecentRatings, dto.NewRatingResponse(rating))
	}

	return response, nil
}

func (s *adminService) UpdateUserStatus(ctx context.Context, id uint, payload dto.UserStatusUpdatePayload) (dto.AdminUserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AdminUserResponse{}, err
	}

	user, err := s.findUser(ctx, id)
	if err != nil {
		return dto.AdminUserResponse{}, err
	}

	newlyBlocked := false
	if payload.IsBlocked != nil {
		newlyBlocked = *payload.IsBlocked && !user.IsBlocked
		user.IsBlocked = *payload.IsBlocked
	}
	if payload.IsVerified != nil {
		user.IsVerified = *payload.IsVerified
	}
	if payload.Role != "" {
		user.Role = strings.ToLower(payload.Role)
	}

	if err := s.users.Save(ctx, &user); err != nil {
		return dto.AdminUserResponse{}, err
	}

	if newlyBlocked {
		s.notifications.Notify(ctx, user.ID, models.NotificationAccountBlocked,
			"Your account has been blocked by a moderator")
	}

	return dto.NewAdminUserResponse(user), nil
}

func (s *adminService) ListRequests(ctx context.Context, query dto.AdminRequestListQuery) (dto.RequestListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.RequestListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 20
	}

	requests, total, err := s.requests.List(ctx, repository.RequestFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    query.Status,
		Category:  query.Category,
		IsFlagged: query.IsFlagged,
	})
	if err != nil {
		return dto.RequestListResponse{}, err
	}

	items := make([]dto.RequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.NewRequestResponse(request, nil))
	}

	return dto.RequestListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *adminService) FlagRequest(ctx context.Context, id uint, payload dto.FlagPayload) (dto.RequestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	request.IsFlagged = payload.IsFlagged
	if payload.IsFlagged {
		request.FlagReason = strings.TrimSpace(payload.FlagReason)
	} else {
		request.FlagReason = ""
	}

	if err := s.requests.Save(ctx, &request); err != nil {
		return dto.RequestResponse{}, err
	}

	return dto.NewRequestResponse(request, nil), nil
}

// FlagRating marks or clears a rating for moderation without touching the
// rated user's aggregate; flagged ratings surface in FlaggedContent.
func (s *adminService) FlagRating(ctx context.Context, id uint, payload dto.FlagPayload) (dto.RatingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RatingResponse{}, err
	}

	rating, err := s.findRating(ctx, id)
	if err != nil {
		return dto.RatingResponse{}, err
	}

	reason := ""
	if payload.IsFlagged {
		reason = strings.TrimSpace(payload.FlagReason)
	}
	if err := s.ratings.Flag(ctx, id, payload.IsFlagged, reason); err != nil {
		return dto.RatingResponse{}, err
	}

	rating.IsFlagged = payload.IsFlagged
	rating.FlagReason = reason
	return dto.NewRatingResponse(rating), nil
}

// DeleteRequest hard-deletes the request and cascades to its chat thread and
// ratings. Moderation only; owners go through the lifecycle rules.
func (s *adminService) DeleteRequest(ctx context.Context, id uint) error {
	if _, err := s.findRequest(ctx, id); err != nil {
		return err
	}

	if err := s.chats.DeleteThreadByRequestID(ctx, id); err != nil {
		return err
	}
	if err := s.ratings.DeleteByRequestID(ctx, id); err != nil {
		return err
	}
	return s.requests.Delete(ctx, id)
}

func (s *adminService) FlaggedContent(ctx context.Context) (dto.FlaggedContentResponse, error) {
	flagged := true
	requests, _, err := s.requests.List(ctx, repository.RequestFilter{
		Page:      1,
		PageSize:  50,
		IsFlagged: &flagged,
	})
	if err != nil {
		return dto.FlaggedContentResponse{}, err
	}

	ratings, err := s.ratings.ListFlagged(ctx, 50)
	if err != nil {
		return dto.FlaggedContentResponse{}, err
	}

	response := dto.FlaggedContentResponse{
		Requests: make([]dto.RequestResponse, 0, len(requests)),
		Ratings:  make([]dto.RatingResponse, 0, len(ratings)),
	}
	for _, request := range requests {
		response.Requests = append(response.Requests, dto.NewRequestResponse(request, nil))
	}
	for _, rating := range ratings {
		response.Ratings = append(response.Ratings, dto.NewRatingResponse(rating))
	}

	return response, nil
}

func (s *adminService) Leaderboard(ctx context.Context, limit int) ([]dto.LeaderboardEntry, error) {
	users, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(users))
	for _, user := range users {
		var badges []string
		if len(user.Badges) > 0 {
			_ = json.Unmarshal(user.Badges, &badges)
		}
		entries = append(entries, dto.LeaderboardEntry{
			UserID:            user.ID,
			Name:              user.Name,
			Points:            user.Points,
			RequestsCompleted: user.RequestsCompleted,
			AverageRating:     user.AverageRating,
			Badges:            badges,
		})
	}

	return entries, nil
}

func (s *adminService) findUser(ctx context.Context, id uint) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, errorf(ErrNotFound, "user %d", id)
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *adminService) findRating(ctx context.Context, id uint) (models.Rating, error) {
	rating, err := s.ratings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rating{}, errorf(ErrNotFound, "rating %d", id)
		}
		return models.Rating{}, err
	}
	return rating, nil
}

func (s *adminService) findRequest(ctx context.Context, id uint) (models.HelpRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HelpRequest{}, errorf(ErrNotFound, "request %d", id)
		}
		return models.HelpRequest{}, err
	}
	return request, nil
}
