package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// RequestFilter narrows list queries over help requests.
type RequestFilter struct {
	Page        int
	PageSize    int
	Category    string
	Urgency     string
	Status      string
	Statuses    []string
	NeedyUserID uint
	VolunteerID uint
	IsFlagged   *bool
}

// HelpRequestRepository persists help requests and their applications.
type HelpRequestRepository interface {
	Create(ctx context.Context, request *models.HelpRequest) error
	FindByID(ctx context.Context, id uint) (models.HelpRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]models.HelpRequest, int64, error)
	Save(ctx context.Context, request *models.HelpRequest) error
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
	Accept(ctx context.Context, id, volunteerID uint, at time.Time) (bool, error)
	Transition(ctx context.Context, id, volunteerID uint, from []string, updates map[string]interface{}) (bool, error)
	AddApplication(ctx context.Context, application *models.RequestApplication) error
	HasApplication(ctx context.Context, requestID, volunteerID uint) (bool, error)
	CountApplications(ctx context.Context, requestID uint) (int64, error)
	CountByVolunteer(ctx context.Context, volunteerID uint, statuses []string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountsByStatus(ctx context.Context) (map[string]int64, error)
	ListSince(ctx context.Context, since time.Time) ([]models.HelpRequest, error)
	Recent(ctx context.Context, limit int) ([]models.HelpRequest, error)
}

type helpRequestRepository struct {
	db *gorm.DB
}

// NewHelpRequestRepository constructs a repository backed by GORM.
func NewHelpRequestRepository(db *gorm.DB) HelpRequestRepository {
	return &helpRequestRepository{db: db}
}

func (r *helpRequestRepository) Create(ctx context.Context, request *models.HelpRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *helpRequestRepository) FindByID(ctx context.Context, id uint) (models.HelpRequest, error) {
	var request models.HelpRequest
	err := r.db.WithContext(ctx).
		Preload("NeedyUser").
		Preload("Volunteer").
		Preload("Applications", func(db *gorm.DB) *gorm.DB {
			return db.Order("applied_at ASC")
		}).
		Preload("Applications.Volunteer").
		First(&request, id).Error
	if err != nil {
		return models.HelpRequest{}, err
	}
	return request, nil
}

func (r *helpRequestRepository) List(ctx context.Context, filter RequestFilter) ([]models.HelpRequest, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	query := r.db.WithContext(ctx).Model(&models.HelpRequest{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Urgency != "" {
		query = query.Where("urgency = ?", filter.Urgency)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.NeedyUserID != 0 {
		query = query.Where("needy_user_id = ?", filter.NeedyUserID)
	}
	if filter.VolunteerID != 0 {
		query = query.Where("volunteer_id = ?", filter.VolunteerID)
	}
	if filter.IsFlagged != nil {
		query = query.Where("is_flagged = ?", *filter.IsFlagged)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.HelpRequest
	err := query.
		Preload("NeedyUser").
		Preload("Volunteer").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *helpRequestRepository) Save(ctx context.Context, request *models.HelpRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *helpRequestRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("help_request_id = ?", id).Delete(&models.RequestApplication{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.HelpRequest{}, id).Error
	})
}

func (r *helpRequestRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// Accept performs the compare-and-set transition Pending -> Accepted. Exactly
// one of any number of concurrent callers observes rows affected == 1.
func (r *helpRequestRepository) Accept(ctx context.Context, id, volunteerID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Where("id = ? AND status = ? AND volunteer_id IS NULL", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":       models.StatusAccepted,
			"volunteer_id": volunteerID,
			"accepted_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Transition applies updates only while the request is assigned to the given
// volunteer and currently in one of the expected states.
func (r *helpRequestRepository) Transition(ctx context.Context, id, volunteerID uint, from []string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Where("id = ? AND volunteer_id = ? AND status IN ?", id, volunteerID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *helpRequestRepository) AddApplication(ctx context.Context, application *models.RequestApplication) error {
	return r.db.WithContext(ctx).Create(application).Error
}

func (r *helpRequestRepository) HasApplication(ctx context.Context, requestID, volunteerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequestApplication{}).
		Where("help_request_id = ? AND volunteer_id = ?", requestID, volunteerID).
		Count(&count).Error
	return count > 0, err
}

func (r *helpRequestRepository) CountApplications(ctx context.Context, requestID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequestApplication{}).
		Where("help_request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

func (r *helpRequestRepository) CountByVolunteer(ctx context.Context, volunteerID uint, statuses []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Where("volunteer_id = ?", volunteerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *helpRequestRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.HelpRequest{}).Count(&count).Error
	return count, err
}

func (r *helpRequestRepository) CountsByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *helpRequestRepository) ListSince(ctx context.Context, since time.Time) ([]models.HelpRequest, error) {
	var requests []models.HelpRequest
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Find(&requests).Error
	return requests, err
}

func (r *helpRequestRepository) Recent(ctx context.Context, limit int) ([]models.HelpRequest, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var requests []models.HelpRequest
	err := r.db.WithContext(ctx).
		Preload("NeedyUser").
		Preload("Volunteer").
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}
