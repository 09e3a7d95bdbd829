package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/observability"
	"github.com/noah-isme/helphub-go-api/internal/repository"
)

// RequestService drives the help request lifecycle: creation, applications,
// the accept compare-and-set, status advancement with point awards, ratings
// and role-scoped reads.
type RequestService interface {
	Create(ctx context.Context, userID uint, payload dto.RequestCreatePayload) (dto.RequestResponse, error)
	List(ctx context.Context, userID uint, role string, query dto.RequestListQuery) (dto.RequestListResponse, error)
	Get(ctx context.Context, id uint) (dto.RequestResponse, error)
	Update(ctx context.Context, id, userID uint, payload dto.RequestUpdatePayload) (dto.RequestResponse, error)
	Delete(ctx context.Context, id, userID uint) error
	Cancel(ctx context.Context, id, userID uint, payload dto.CancelPayload) (dto.RequestResponse, error)
	Accept(ctx context.Context, id, volunteerID uint) (dto.RequestResponse, error)
	UpdateStatus(ctx context.Context, id, volunteerID uint, payload dto.StatusUpdatePayload) (dto.RequestResponse, error)
	Apply(ctx context.Context, id, volunteerID uint, payload dto.ApplyPayload) (dto.ApplicationResponse, error)
	Rate(ctx context.Context, id, raterID uint, payload dto.RatePayload) (dto.RatingResponse, error)
	AttachImages(ctx context.Context, id, userID uint, assets []dto.UploadedAsset) (dto.RequestResponse, error)
	VolunteerStats(ctx context.Context, volunteerID uint) (dto.VolunteerStatsResponse, error)
	VolunteerRequests(ctx context.Context, volunteerID uint, query dto.RequestListQuery) (dto.RequestListResponse, error)
}

type requestService struct {
	requests      repository.HelpRequestRepository
	users         repository.UserRepository
	chats         repository.ChatRepository
	ratings       repository.RatingRepository
	notifications NotificationService
	events        EventPublisher
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewRequestService creates a request lifecycle service instance.
func NewRequestService(
	requests repository.HelpRequestRepository,
	users repository.UserRepository,
	chats repository.ChatRepository,
	ratings repository.RatingRepository,
	notifications NotificationService,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) RequestService {
	return &requestService{
		requests:      requests,
		users:         users,
		chats:         chats,
		ratings:       ratings,
		notifications: notifications,
		events:        events,
		validator:     validate,
		logger:        logger.With().Str("component", "request_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/helphub-go-api/internal/service/request"),
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

func (s *requestService) Create(ctx context.Context, userID uint, payload dto.RequestCreatePayload) (dto.RequestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestResponse{}, err
	}

	request := models.HelpRequest{
		Title:                   strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Description:             strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Category:                payload.Category,
		Urgency:                 payload.Urgency,
		Status:                  models.StatusPending,
		Latitude:                payload.Location.Latitude,
		Longitude:               payload.Location.Longitude,
		Address:                 strings.TrimSpace(payload.Location.Address),
		City:                    strings.TrimSpace(payload.Location.City),
		State:                   strings.TrimSpace(payload.Location.State),
		ZipCode:                 strings.TrimSpace(payload.Location.ZipCode),
		NeedyUserID:             userID,
		EstimatedCompletionTime: payload.EstimatedCompletionTime,
		IsUrgent:                payload.Urgency == models.UrgencyHigh,
	}

	if err := s.requests.Create(ctx, &request); err != nil {
		return dto.RequestResponse{}, err
	}

	if err := s.users.IncrementRequestsCreated(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to bump requests_created")
	}

	created, err := s.requests.FindByID(ctx, request.ID)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	return dto.NewRequestResponse(created, nil), nil
}

// List is role-scoped: volunteers browse the open pool, needy users see their
// own requests, admins see everything.
func (s *requestService) List(ctx context.Context, userID uint, role string, query dto.RequestListQuery) (dto.RequestListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.RequestListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 10
	}

	filter := repository.RequestFilter{
		Page:     page,
		PageSize: pageSize,
		Category: query.Category,
		Urgency:  query.Urgency,
		Status:   query.Status,
	}

	switch role {
	case models.RoleVolunteer:
		filter.Status = models.StatusPending
	case models.RoleNeedy:
		filter.NeedyUserID = userID
	}

	requests, total, err := s.requests.List(ctx, filter)
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

func (s *requestService) Get(ctx context.Context, id uint) (dto.RequestResponse, error) {
	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	if err := s.requests.IncrementViews(ctx, id); err != nil {
		s.logger.Warn().Err(err).Uint("request_id", id).Msg("failed to bump views")
	}
	request.Views++

	return dto.NewRequestResponse(request, s.threadID(ctx, id)), nil
}

func (s *requestService) Update(ctx context.Context, id, userID uint, payload dto.RequestUpdatePayload) (dto.RequestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if request.NeedyUserID != userID {
		return dto.RequestResponse{}, errorf(ErrForbidden, "only the owner may update a request")
	}
	if request.Status != models.StatusPending {
		return dto.RequestResponse{}, errorf(ErrConflict, "only pending requests can be updated")
	}

	if payload.Title != "" {
		request.Title = strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	}
	if payload.Description != "" {
		request.Description = strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))
	}
	if payload.Category != "" {
		request.Category = payload.Category
	}
	if payload.Urgency != "" {
		request.Urgency = payload.Urgency
		request.IsUrgent = payload.Urgency == models.UrgencyHigh
	}
	if payload.Location != nil {
		request.Latitude = payload.Location.Latitude
		request.Longitude = payload.Location.Longitude
		request.Address = strings.TrimSpace(payload.Location.Address)
		request.City = strings.TrimSpace(payload.Location.City)
		request.State = strings.TrimSpace(payload.Location.State)
		request.ZipCode = strings.TrimSpace(payload.Location.ZipCode)
	}
	if payload.EstimatedCompletionTime != nil {
		request.EstimatedCompletionTime = payload.EstimatedCompletionTime
	}

	if err := s.requests.Save(ctx, &request); err != nil {
		return dto.RequestResponse{}, err
	}

	return dto.NewRequestResponse(request, nil), nil
}

func (s *requestService) Delete(ctx context.Context, id, userID uint) error {
	request, err := s.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if request.NeedyUserID != userID {
		return errorf(ErrForbidden, "only the owner may delete a request")
	}
	if request.Status != models.StatusPending {
		return errorf(ErrConflict, "only pending requests can be deleted")
	}

	return s.requests.Delete(ctx, id)
}

func (s *requestService) Cancel(ctx context.Context, id, userID uint, payload dto.CancelPayload) (dto.RequestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if request.NeedyUserID != userID {
		return dto.RequestResponse{}, errorf(ErrForbidden, "only the owner may cancel a request")
	}
	if request.Status != models.StatusPending {
		return dto.RequestResponse{}, errorf(ErrConflict, "only pending requests can be cancelled")
	}

	now := time.Now()
	request.Status = models.StatusCancelled
	request.CancelledAt = &now
	request.CancellationReason = strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason))

	if err := s.requests.Save(ctx, &request); err != nil {
		return dto.RequestResponse{}, err
	}

	observability.RequestTransitions().WithLabelValues(models.StatusCancelled).Inc()

	return dto.NewRequestResponse(request, nil), nil
}

// Accept races concurrent volunteers through a compare-and-set update;
// exactly one caller wins, everyone else observes a conflict. The winner's
// chat thread creation is idempotent on the request id.
func (s *requestService) Accept(ctx context.Context, id, volunteerID uint) (dto.RequestResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "request.accept", trace.WithAttributes(
		attribute.Int64("request.id", int64(id)),
		attribute.Int64("volunteer.id", int64(volunteerID)),
	))
	defer span.End()

	request, err := s.findRequest(spanCtx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if request.NeedyUserID == volunteerID {
		return dto.RequestResponse{}, errorf(ErrForbidden, "cannot accept your own request")
	}

	won, err := s.requests.Accept(spanCtx, id, volunteerID, time.Now())
	if err != nil {
		span.RecordError(err)
		return dto.RequestResponse{}, err
	}
	if !won {
		return dto.RequestResponse{}, errorf(ErrConflict, "request is no longer available")
	}

	observability.RequestTransitions().WithLabelValues(models.StatusAccepted).Inc()

	thread, err := s.chats.FindOrCreateThread(spanCtx, id, request.NeedyUserID, volunteerID)
	if err != nil {
		span.RecordError(err)
		return dto.RequestResponse{}, err
	}

	accepted, err := s.requests.FindByID(spanCtx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	s.notifications.Notify(spanCtx, request.NeedyUserID, models.NotificationRequestAccepted,
		fmt.Sprintf("A volunteer accepted your request %q", request.Title))
	s.publishStatusChange(spanCtx, accepted)

	threadID := thread.ID
	return dto.NewRequestResponse(accepted, &threadID), nil
}

// UpdateStatus advances the request within the assigned volunteer's reach:
// Accepted -> On the Way, and Accepted/On the Way -> Completed. Completion
// awards points and re-evaluates badges atomically on the volunteer row.
func (s *requestService) UpdateStatus(ctx context.Context, id, volunteerID uint, payload dto.StatusUpdatePayload) (dto.RequestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if request.VolunteerID == nil || *request.VolunteerID != volunteerID {
		return dto.RequestResponse{}, errorf(ErrForbidden, "request is not assigned to you")
	}

	now := time.Now()

	switch payload.Status {
	case models.StatusOnTheWay:
		updates := map[string]interface{}{"status": models.StatusOnTheWay}
		if payload.EstimatedCompletionTime != nil {
			updates["estimated_completion_time"] = payload.EstimatedCompletionTime
		}
		applied, err := s.requests.Transition(ctx, id, volunteerID, []string{models.StatusAccepted}, updates)
		if err != nil {
			return dto.RequestResponse{}, err
		}
		if !applied {
			return dto.RequestResponse{}, errorf(ErrConflict, "cannot move to On the Way from %s", request.Status)
		}

	case models.StatusCompleted:
		applied, err := s.requests.Transition(ctx, id, volunteerID,
			[]string{models.StatusAccepted, models.StatusOnTheWay},
			map[string]interface{}{
				"status":                 models.StatusCompleted,
				"completed_at":           now,
				"actual_completion_time": now,
			})
		if err != nil {
			return dto.RequestResponse{}, err
		}
		if !applied {
			return dto.RequestResponse{}, errorf(ErrConflict, "cannot complete from %s", request.Status)
		}

		points := models.PointsForUrgency(request.Urgency)
		if _, err := s.users.AwardCompletion(ctx, volunteerID, points); err != nil {
			s.logger.Error().Err(err).Uint("volunteer_id", volunteerID).Msg("failed to award completion points")
		}

	default:
		return dto.RequestResponse{}, errorf(ErrConflict, "transition to %s is not allowed here", payload.Status)
	}

	observability.RequestTransitions().WithLabelValues(payload.Status).Inc()

	updated, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	s.notifications.Notify(ctx, request.NeedyUserID, models.NotificationStatusChanged,
		fmt.Sprintf("Your request %q is now %s", request.Title, payload.Status))
	s.publishStatusChange(ctx, updated)

	return dto.NewRequestResponse(updated, s.threadID(ctx, id)), nil
}

func (s *requestService) Apply(ctx context.Context, id, volunteerID uint, payload dto.ApplyPayload) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ApplicationResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, err
	}
	if request.Status != models.StatusPending {
		return dto.ApplicationResponse{}, errorf(ErrConflict, "applications are closed for this request")
	}
	if request.NeedyUserID == volunteerID {
		return dto.ApplicationResponse{}, errorf(ErrForbidden, "cannot apply to your own request")
	}

	exists, err := s.requests.HasApplication(ctx, id, volunteerID)
	if err != nil {
		return dto.ApplicationResponse{}, err
	}
	if exists {
		return dto.ApplicationResponse{}, errorf(ErrConflict, "you already applied to this request")
	}

	application := models.RequestApplication{
		HelpRequestID: id,
		VolunteerID:   volunteerID,
		Message:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Message)),
		Status:        models.ApplicationPending,
		AppliedAt:     time.Now(),
	}
	if err := s.requests.AddApplication(ctx, &application); err != nil {
		return dto.ApplicationResponse{}, err
	}

	return dto.NewApplicationResponse(application), nil
}

// Rate records the owner's feedback once the request is Completed. The rated
// volunteer's average is recomputed over the full rating set.
func (s *requestService) Rate(ctx context.Context, id, raterID uint, payload dto.RatePayload) (dto.RatingResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RatingResponse{}, err
	}

	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RatingResponse{}, err
	}
	if request.NeedyUserID != raterID {
		return dto.RatingResponse{}, errorf(ErrForbidden, "only the request owner may rate")
	}
	if request.Status != models.StatusCompleted {
		return dto.RatingResponse{}, errorf(ErrConflict, "only completed requests can be rated")
	}
	if request.VolunteerID == nil {
		return dto.RatingResponse{}, errorf(ErrConflict, "request has no volunteer to rate")
	}
	ratedID := *request.VolunteerID

	exists, err := s.ratings.Exists(ctx, id, raterID, ratedID)
	if err != nil {
		return dto.RatingResponse{}, err
	}
	if exists {
		return dto.RatingResponse{}, errorf(ErrConflict, "you already rated this request")
	}

	rating := models.Rating{
		HelpRequestID: id,
		RaterID:       raterID,
		RatedID:       ratedID,
		Rating:        payload.Rating,
		Review:        strings.TrimSpace(s.sanitizer.Sanitize(payload.Review)),
		IsAnonymous:   payload.IsAnonymous,
	}
	if len(payload.Categories) > 0 {
		raw, err := json.Marshal(payload.Categories)
		if err != nil {
			return dto.RatingResponse{}, err
		}
		rating.Categories = datatypes.JSON(raw)
	}

	if err := s.ratings.Create(ctx, &rating); err != nil {
		return dto.RatingResponse{}, err
	}

	aggregate, err := s.ratings.Aggregate(ctx, ratedID)
	if err != nil {
		return dto.RatingResponse{}, err
	}
	if err := s.users.UpdateRatingStats(ctx, ratedID, aggregate.Total, aggregate.Count, aggregate.Average); err != nil {
		s.logger.Error().Err(err).Uint("user_id", ratedID).Msg("failed to update rating stats")
	}

	stored, err := s.ratings.FindByID(ctx, rating.ID)
	if err != nil {
		return dto.RatingResponse{}, err
	}

	return dto.NewRatingResponse(stored), nil
}

func (s *requestService) AttachImages(ctx context.Context, id, userID uint, assets []dto.UploadedAsset) (dto.RequestResponse, error) {
	request, err := s.findRequest(ctx, id)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if request.NeedyUserID != userID {
		return dto.RequestResponse{}, errorf(ErrForbidden, "only the owner may attach images")
	}

	var images []dto.UploadedAsset
	if len(request.Images) > 0 {
		if err := json.Unmarshal(request.Images, &images); err != nil {
			images = nil
		}
	}
	images = append(images, assets...)

	raw, err := json.Marshal(images)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	request.Images = datatypes.JSON(raw)

	if err := s.requests.Save(ctx, &request); err != nil {
		return dto.RequestResponse{}, err
	}

	return dto.NewRequestResponse(request, nil), nil
}

func (s *requestService) VolunteerStats(ctx context.Context, volunteerID uint) (dto.VolunteerStatsResponse, error) {
	user, err := s.users.FindByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VolunteerStatsResponse{}, errorf(ErrNotFound, "user %d", volunteerID)
		}
		return dto.VolunteerStatsResponse{}, err
	}

	total, err := s.requests.CountByVolunteer(ctx, volunteerID, nil)
	if err != nil {
		return dto.VolunteerStatsResponse{}, err
	}
	active, err := s.requests.CountByVolunteer(ctx, volunteerID, []string{models.StatusAccepted, models.StatusOnTheWay})
	if err != nil {
		return dto.VolunteerStatsResponse{}, err
	}
	completed, err := s.requests.CountByVolunteer(ctx, volunteerID, []string{models.StatusCompleted})
	if err != nil {
		return dto.VolunteerStatsResponse{}, err
	}

	var badges []string
	if len(user.Badges) > 0 {
		_ = json.Unmarshal(user.Badges, &badges)
	}

	return dto.VolunteerStatsResponse{
		TotalRequests:     total,
		AcceptedRequests:  active,
		CompletedRequests: completed,
		AverageRating:     user.AverageRating,
		Points:            user.Points,
		Badges:            badges,
	}, nil
}

func (s *requestService) VolunteerRequests(ctx context.Context, volunteerID uint, query dto.RequestListQuery) (dto.RequestListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.RequestListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.Limit
	if pageSize <= 0 {
		pageSize = 10
	}

	requests, total, err := s.requests.List(ctx, repository.RequestFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      query.Status,
		VolunteerID: volunteerID,
	})
	if err != nil {
		return dto.RequestListResponse{}, err
	}

	items := make([]dto.RequestResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.NewRequestResponse(request, s.threadID(ctx, request.ID)))
	}

	return dto.RequestListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *requestService) findRequest(ctx context.Context, id uint) (models.HelpRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HelpRequest{}, errorf(ErrNotFound, "request %d", id)
		}
		return models.HelpRequest{}, err
	}
	return request, nil
}

func (s *requestService) threadID(ctx context.Context, requestID uint) *uint {
	thread, err := s.chats.FindThreadByRequestID(ctx, requestID)
	if err != nil {
		return nil
	}
	id := thread.ID
	return &id
}

// publishStatusChange notifies both parties' live connections; failures stay
// inside the hub.
func (s *requestService) publishStatusChange(ctx context.Context, request models.HelpRequest) {
	if s.events == nil {
		return
	}

	data := map[string]interface{}{
		"request_id": request.ID,
		"status":     request.Status,
		"title":      request.Title,
	}

	s.events.PublishToUser(ctx, request.NeedyUserID, EventRequestStatusChanged, data)
	if request.VolunteerID != nil {
		s.events.PublishToUser(ctx, *request.VolunteerID, EventRequestStatusChanged, data)
	}
}
