package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// UserFilter narrows the admin account listing.
type UserFilter struct {
	Page       int
	PageSize   int
	Role       string
	IsVerified *bool
	IsBlocked  *bool
	Search     string
}

// UserRepository persists user accounts and their lifecycle-driven stats.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	Save(ctx context.Context, user *models.User) error
	IncrementRequestsCreated(ctx context.Context, id uint) error
	AwardCompletion(ctx context.Context, volunteerID uint, points int) (models.User, error)
	UpdateRatingStats(ctx context.Context, userID uint, total float64, count int, average float64) error
	CountByRole(ctx context.Context, role string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountsByRole(ctx context.Context) (map[string]int64, error)
	Recent(ctx context.Context, limit int) ([]models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]models.User, error)
	Touch(ctx context.Context, userID uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsVerified != nil {
		query = query.Where("is_verified = ?", *filter.IsVerified)
	}
	if filter.IsBlocked != nil {
		query = query.Where("is_blocked = ?", *filter.IsBlocked)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) IncrementRequestsCreated(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("requests_created", gorm.Expr("requests_created + 1")).Error
}

// AwardCompletion applies the point award, the completion counter and any
// newly unlocked badges under a row lock, so concurrent completions by the
// same volunteer accumulate instead of overwriting each other.
func (r *userRepository) AwardCompletion(ctx context.Context, volunteerID uint, points int) (models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, volunteerID).Error; err != nil {
			return err
		}

		user.Points += points
		user.RequestsCompleted++

		var badges []string
		if len(user.Badges) > 0 {
			if err := json.Unmarshal(user.Badges, &badges); err != nil {
				badges = nil
			}
		}
		merged, err := json.Marshal(models.MergeBadges(badges, user.Points))
		if err != nil {
			return err
		}
		user.Badges = datatypes.JSON(merged)

		return tx.Save(&user).Error
	})
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) UpdateRatingStats(ctx context.Context, userID uint, total float64, count int, average float64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"total_rating":   total,
			"rating_count":   count,
			"average_rating": average,
		}).Error
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *userRepository) CountsByRole(ctx context.Context) (map[string]int64, error) {
	type roleCount struct {
		Role  string
		Count int64
	}

	var rows []roleCount
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) as count").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

func (r *userRepository) Recent(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *userRepository) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.RoleVolunteer).
		Order("points DESC, requests_completed DESC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// Touch updates the account's last-active timestamp; failures are ignored by
// callers since presence is advisory.
func (r *userRepository) Touch(ctx context.Context, userID uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_active_at", at).Error
}
