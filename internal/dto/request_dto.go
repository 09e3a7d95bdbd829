package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/helphub-go-api/internal/models"
)

// LocationPayload carries the coordinates and address of a help request.
type LocationPayload struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Address   string  `json:"address" validate:"required,min=3,max=255"`
	City      string  `json:"city" validate:"omitempty,max=100"`
	State     string  `json:"state" validate:"omitempty,max=100"`
	ZipCode   string  `json:"zip_code" validate:"omitempty,max=20"`
}

// RequestCreatePayload is the body for POST /api/requests.
type RequestCreatePayload struct {
	Title                   string           `json:"title" validate:"required,min=5,max=100"`
	Description             string           `json:"description" validate:"required,min=10,max=1000"`
	Category                string           `json:"category" validate:"required,oneof=Food Medical Shelter Education Transportation Other"`
	Urgency                 string           `json:"urgency" validate:"required,oneof=Low Medium High"`
	Location                *LocationPayload `json:"location" validate:"required"`
	EstimatedCompletionTime *time.Time       `json:"estimated_completion_time"`
}

// RequestUpdatePayload is the body for PUT /api/requests/:id. Only the owner
// may update, and only while the request is Pending.
type RequestUpdatePayload struct {
	Title                   string           `json:"title" validate:"omitempty,min=5,max=100"`
	Description             string           `json:"description" validate:"omitempty,min=10,max=1000"`
	Category                string           `json:"category" validate:"omitempty,oneof=Food Medical Shelter Education Transportation Other"`
	Urgency                 string           `json:"urgency" validate:"omitempty,oneof=Low Medium High"`
	Location                *LocationPayload `json:"location"`
	EstimatedCompletionTime *time.Time       `json:"estimated_completion_time"`
}

// StatusUpdatePayload advances a request along the lifecycle.
type StatusUpdatePayload struct {
	Status                  string     `json:"status" validate:"required,oneof=Accepted 'On the Way' Completed Cancelled"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time"`
}

// ApplyPayload is a volunteer's application message.
type ApplyPayload struct {
	Message string `json:"message" validate:"omitempty,max=500"`
}

// CancelPayload carries the optional cancellation reason.
type CancelPayload struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// RateCategoryScore is a single category sub-score in a rating.
type RateCategoryScore struct {
	Category string `json:"category" validate:"required,oneof=Punctuality Communication Helpfulness Professionalism Overall"`
	Score    int    `json:"score" validate:"required,min=1,max=5"`
}

// RatePayload is the body for POST /api/requests/:id/rate.
type RatePayload struct {
	Rating      int                 `json:"rating" validate:"required,min=1,max=5"`
	Review      string              `json:"review" validate:"omitempty,max=500"`
	Categories  []RateCategoryScore `json:"categories" validate:"omitempty,dive"`
	IsAnonymous bool                `json:"is_anonymous"`
}

// FlagPayload flags or unflags a request (admin moderation).
type FlagPayload struct {
	IsFlagged  bool   `json:"is_flagged"`
	FlagReason string `json:"flag_reason" validate:"omitempty,max=500"`
}

// RequestListQuery filters GET /api/requests.
type RequestListQuery struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Category string `query:"category" validate:"omitempty,oneof=Food Medical Shelter Education Transportation Other"`
	Urgency  string `query:"urgency" validate:"omitempty,oneof=Low Medium High"`
	Status   string `query:"status" validate:"omitempty,oneof=Pending Accepted 'On the Way' Completed Cancelled"`
}

// ApplicationResponse serializes one volunteer application.
type ApplicationResponse struct {
	ID        uint         `json:"id"`
	Volunteer *UserSummary `json:"volunteer,omitempty"`
	Message   string       `json:"message,omitempty"`
	Status    string       `json:"status"`
	AppliedAt time.Time    `json:"applied_at"`
}

// RequestResponse serializes a help request.
type RequestResponse struct {
	ID                      uint                  `json:"id"`
	Title                   string                `json:"title"`
	Description             string                `json:"description"`
	Category                string                `json:"category"`
	Urgency                 string                `json:"urgency"`
	Status                  string                `json:"status"`
	Location                LocationPayload       `json:"location"`
	Images                  []UploadedAsset       `json:"images,omitempty"`
	NeedyUser               *UserSummary          `json:"needy_user,omitempty"`
	Volunteer               *UserSummary          `json:"volunteer,omitempty"`
	AcceptedAt              *time.Time            `json:"accepted_at,omitempty"`
	CompletedAt             *time.Time            `json:"completed_at,omitempty"`
	CancelledAt             *time.Time            `json:"cancelled_at,omitempty"`
	CancellationReason      string                `json:"cancellation_reason,omitempty"`
	EstimatedCompletionTime *time.Time            `json:"estimated_completion_time,omitempty"`
	ActualCompletionTime    *time.Time            `json:"actual_completion_time,omitempty"`
	IsUrgent                bool                  `json:"is_urgent"`
	IsVerified              bool                  `json:"is_verified"`
	IsFlagged               bool                  `json:"is_flagged"`
	FlagReason              string                `json:"flag_reason,omitempty"`
	Priority                int                   `json:"priority"`
	Views                   int                   `json:"views"`
	ChatThreadID            *uint                 `json:"chat_thread_id,omitempty"`
	Applications            []ApplicationResponse `json:"applications,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
}

// RequestListResponse is a page of requests plus pagination meta.
type RequestListResponse struct {
	Items      []RequestResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// VolunteerStatsResponse summarises a volunteer's track record.
type VolunteerStatsResponse struct {
	TotalRequests     int64    `json:"total_requests"`
	AcceptedRequests  int64    `json:"accepted_requests"`
	CompletedRequests int64    `json:"completed_requests"`
	AverageRating     float64  `json:"average_rating"`
	Points            int      `json:"points"`
	Badges            []string `json:"badges"`
}

// RatingResponse serializes a stored rating.
type RatingResponse struct {
	ID            uint                `json:"id"`
	HelpRequestID uint                `json:"help_request_id"`
	Rater         *UserSummary        `json:"rater,omitempty"`
	Rated         *UserSummary        `json:"rated,omitempty"`
	Rating        int                 `json:"rating"`
	Review        string              `json:"review,omitempty"`
	Categories    []RateCategoryScore `json:"categories,omitempty"`
	IsAnonymous   bool                `json:"is_anonymous"`
	IsFlagged     bool                `json:"is_flagged"`
	FlagReason    string              `json:"flag_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewUserSummary converts a user model to its public projection.
func NewUserSummary(user *models.User) *UserSummary {
	if user == nil {
		return nil
	}

	var badges []string
	if len(user.Badges) > 0 {
		_ = json.Unmarshal(user.Badges, &badges)
	}

	return &UserSummary{
		ID:            user.ID,
		Name:          user.Name,
		Role:          user.Role,
		AvatarURL:     user.AvatarURL,
		AverageRating: user.AverageRating,
		Points:        user.Points,
		Badges:        badges,
		IsVerified:    user.IsVerified,
	}
}

// NewRequestResponse converts a model into a DTO. The chat thread id is
// resolved separately because the binding lives on the thread side.
func NewRequestResponse(request models.HelpRequest, chatThreadID *uint) RequestResponse {
	response := RequestResponse{
		ID:          request.ID,
		Title:       request.Title,
		Description: request.Description,
		Category:    request.Category,
		Urgency:     request.Urgency,
		Status:      request.Status,
		Location: LocationPayload{
			Latitude:  request.Latitude,
			Longitude: request.Longitude,
			Address:   request.Address,
			City:      request.City,
			State:     request.State,
			ZipCode:   request.ZipCode,
		},
		NeedyUser:               NewUserSummary(request.NeedyUser),
		Volunteer:               NewUserSummary(request.Volunteer),
		AcceptedAt:              request.AcceptedAt,
		CompletedAt:             request.CompletedAt,
		CancelledAt:             request.CancelledAt,
		CancellationReason:      request.CancellationReason,
		EstimatedCompletionTime: request.EstimatedCompletionTime,
		ActualCompletionTime:    request.ActualCompletionTime,
		IsUrgent:                request.IsUrgent,
		IsVerified:              request.IsVerified,
		IsFlagged:               request.IsFlagged,
		FlagReason:              request.FlagReason,
		Priority:                request.Priority,
		Views:                   request.Views,
		ChatThreadID:            chatThreadID,
		CreatedAt:               request.CreatedAt,
		UpdatedAt:               request.UpdatedAt,
	}

	if len(request.Images) > 0 {
		_ = json.Unmarshal(request.Images, &response.Images)
	}

	for _, application := range request.Applications {
		response.Applications = append(response.Applications, NewApplicationResponse(application))
	}

	return response
}

// NewApplicationResponse converts an application model to a DTO.
func NewApplicationResponse(application models.RequestApplication) ApplicationResponse {
	return ApplicationResponse{
		ID:        application.ID,
		Volunteer: NewUserSummary(application.Volunteer),
		Message:   application.Message,
		Status:    application.Status,
		AppliedAt: application.AppliedAt,
	}
}

// NewRatingResponse converts a rating model to a DTO.
func NewRatingResponse(rating models.Rating) RatingResponse {
	response := RatingResponse{
		ID:            rating.ID,
		HelpRequestID: rating.HelpRequestID,
		Rated:         NewUserSummary(rating.Rated),
		Rating:        rating.Rating,
		Review:        rating.Review,
		IsAnonymous:   rating.IsAnonymous,
		IsFlagged:     rating.IsFlagged,
		FlagReason:    rating.FlagReason,
		CreatedAt:     rating.CreatedAt,
	}

	if !rating.IsAnonymous {
		response.Rater = NewUserSummary(rating.Rater)
	}

	if len(rating.Categories) > 0 {
		_ = json.Unmarshal(rating.Categories, &response.Categories)
	}

	return response
}
