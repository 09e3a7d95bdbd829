package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// RatingAggregate is the full-set summary for one rated user.
type RatingAggregate struct {
	Total   float64
	Count   int
	Average float64
}

// RatingRepository persists post-completion feedback.
type RatingRepository interface {
	Create(ctx context.Context, rating *models.Rating) error
	Exists(ctx context.Context, requestID, raterID, ratedID uint) (bool, error)
	FindByID(ctx context.Context, id uint) (models.Rating, error)
	ListByRated(ctx context.Context, ratedID uint, page, pageSize int) ([]models.Rating, int64, error)
	Aggregate(ctx context.Context, ratedID uint) (RatingAggregate, error)
	Flag(ctx context.Context, id uint, flagged bool, reason string) error
	ListFlagged(ctx context.Context, limit int) ([]models.Rating, error)
	DeleteByRequestID(ctx context.Context, requestID uint) error
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository constructs a rating repository backed by GORM.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Create(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *ratingRepository) Exists(ctx context.Context, requestID, raterID, ratedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("help_request_id = ? AND rater_id = ? AND rated_id = ?", requestID, raterID, ratedID).
		Count(&count).Error
	return count > 0, err
}

func (r *ratingRepository) FindByID(ctx context.Context, id uint) (models.Rating, error) {
	var rating models.Rating
	err := r.db.WithContext(ctx).
		Preload("Rater").
		Preload("Rated").
		First(&rating, id).Error
	if err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}

func (r *ratingRepository) ListByRated(ctx context.Context, ratedID uint, page, pageSize int) ([]models.Rating, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	base := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("rated_id = ?", ratedID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ratings []models.Rating
	err := base.
		Preload("Rater").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&ratings).Error
	if err != nil {
		return nil, 0, err
	}

	return ratings, total, nil
}

// Aggregate recomputes the rated user's stats over the full rating set rather
// than folding deltas into running totals.
func (r *ratingRepository) Aggregate(ctx context.Context, ratedID uint) (RatingAggregate, error) {
	type row struct {
		Total float64
		Count int64
	}

	var res row
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COALESCE(SUM(rating), 0) as total, COUNT(*) as count").
		Where("rated_id = ?", ratedID).
		Scan(&res).Error
	if err != nil {
		return RatingAggregate{}, err
	}

	agg := RatingAggregate{Total: res.Total, Count: int(res.Count)}
	if agg.Count > 0 {
		agg.Average = agg.Total / float64(agg.Count)
	}
	return agg, nil
}

func (r *ratingRepository) Flag(ctx context.Context, id uint, flagged bool, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_flagged":  flagged,
			"flag_reason": reason,
		}).Error
}

func (r *ratingRepository) ListFlagged(ctx context.Context, limit int) ([]models.Rating, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var ratings []models.Rating
	err := r.db.WithContext(ctx).
		Preload("Rater").
		Preload("Rated").
		Where("is_flagged = ?", true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&ratings).Error
	return ratings, err
}

func (r *ratingRepository) DeleteByRequestID(ctx context.Context, requestID uint) error {
	return r.db.WithContext(ctx).
		Where("help_request_id = ?", requestID).
		Delete(&models.Rating{}).Error
}
