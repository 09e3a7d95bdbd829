package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/helphub-go-api/internal/dto"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// recordedEvent captures one EventPublisher delivery.
type recordedEvent struct {
	UserID uint
	Event  string
	Data   interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) PublishToUser(_ context.Context, userID uint, event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Event: event, Data: data})
}

func (r *eventRecorder) forUser(userID uint) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, event := range r.events {
		if event.UserID == userID {
			out = append(out, event)
		}
	}
	return out
}

type recordedNotice struct {
	UserID  uint
	Kind    string
	Message string
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *noticeRecorder) Notify(_ context.Context, userID uint, kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{UserID: userID, Kind: kind, Message: message})
}

func (n *noticeRecorder) List(context.Context, uint, int, int) ([]dto.NotificationResponse, dto.PaginationMeta, error) {
	return nil, dto.PaginationMeta{}, nil
}

func (n *noticeRecorder) UnreadCount(context.Context, uint) (int64, error) { return 0, nil }
func (n *noticeRecorder) MarkRead(context.Context, uint, uint) error      { return nil }
func (n *noticeRecorder) MarkAllRead(context.Context, uint) error         { return nil }

// fakeUserRepo keeps accounts in memory with the same award semantics as the
// GORM implementation.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint]*models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uint]*models.User)}
	for i := range users {
		user := users[i]
		repo.users[user.ID] = &user
	}
	return repo
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uint) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return *user, nil
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, user := range r.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.IsBlocked != nil && user.IsBlocked != *filter.IsBlocked {
			continue
		}
		out = append(out, *user)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) IncrementRequestsCreated(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.RequestsCreated++
	}
	return nil
}

func (r *fakeUserRepo) AwardCompletion(_ context.Context, volunteerID uint, points int) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[volunteerID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	user.Points += points
	user.RequestsCompleted++

	var badges []string
	if len(user.Badges) > 0 {
		_ = json.Unmarshal(user.Badges, &badges)
	}
	merged, _ := json.Marshal(models.MergeBadges(badges, user.Points))
	user.Badges = datatypes.JSON(merged)

	return *user, nil
}

func (r *fakeUserRepo) UpdateRatingStats(_ context.Context, userID uint, total float64, count int, average float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.TotalRating = total
		user.RatingCount = count
		user.AverageRating = average
	}
	return nil
}

func (r *fakeUserRepo) Touch(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		user.LastActiveAt = at
	}
	return nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	counts, _ := r.CountsByRole(context.Background())
	return counts[role], nil
}

func (r *fakeUserRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) CountsByRole(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, user := range r.users {
		counts[user.Role]++
	}
	return counts, nil
}

func (r *fakeUserRepo) Recent(_ context.Context, limit int) ([]models.User, error) {
	users, _, _ := r.List(context.Background(), repository.UserFilter{})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *fakeUserRepo) Leaderboard(_ context.Context, limit int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, user := range r.users {
		if user.Role == models.RoleVolunteer {
			out = append(out, *user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeRequestRepo mirrors the compare-and-set semantics of the SQL layer.
type fakeRequestRepo struct {
	mu           sync.Mutex
	nextID       uint
	requests     map[uint]*models.HelpRequest
	applications []models.RequestApplication
}

func newFakeRequestRepo(requests ...models.HelpRequest) *fakeRequestRepo {
	repo := &fakeRequestRepo{requests: make(map[uint]*models.HelpRequest)}
	for i := range requests {
		request := requests[i]
		if request.ID == 0 {
			repo.nextID++
			request.ID = repo.nextID
		} else if request.ID > repo.nextID {
			repo.nextID = request.ID
		}
		if request.CreatedAt.IsZero() {
			request.CreatedAt = time.Now()
		}
		repo.requests[request.ID] = &request
	}
	return repo
}

func (r *fakeRequestRepo) Create(_ context.Context, request *models.HelpRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	request.ID = r.nextID
	request.CreatedAt = time.Now()
	stored := *request
	r.requests[request.ID] = &stored
	return nil
}

func (r *fakeRequestRepo) FindByID(_ context.Context, id uint) (models.HelpRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return models.HelpRequest{}, gorm.ErrRecordNotFound
	}
	copied := *request
	for _, application := range r.applications {
		if application.HelpRequestID == id {
			copied.Applications = append(copied.Applications, application)
		}
	}
	return copied, nil
}

func (r *fakeRequestRepo) List(_ context.Context, filter repository.RequestFilter) ([]models.HelpRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HelpRequest
	for _, request := range r.requests {
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		if filter.Category != "" && request.Category != filter.Category {
			continue
		}
		if filter.Urgency != "" && request.Urgency != filter.Urgency {
			continue
		}
		if filter.NeedyUserID != 0 && request.NeedyUserID != filter.NeedyUserID {
			continue
		}
		if filter.VolunteerID != 0 && (request.VolunteerID == nil || *request.VolunteerID != filter.VolunteerID) {
			continue
		}
		if filter.IsFlagged != nil && request.IsFlagged != *filter.IsFlagged {
			continue
		}
		out = append(out, *request)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) Save(_ context.Context, request *models.HelpRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *request
	stored.Applications = nil
	r.requests[request.ID] = &stored
	return nil
}

func (r *fakeRequestRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, id)
	kept := r.applications[:0]
	for _, application := range r.applications {
		if application.HelpRequestID != id {
			kept = append(kept, application)
		}
	}
	r.applications = kept
	return nil
}

func (r *fakeRequestRepo) IncrementViews(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request, ok := r.requests[id]; ok {
		request.Views++
	}
	return nil
}

func (r *fakeRequestRepo) Accept(_ context.Context, id, volunteerID uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return false, nil
	}
	if request.Status != models.StatusPending || request.VolunteerID != nil {
		return false, nil
	}
	request.Status = models.StatusAccepted
	request.VolunteerID = &volunteerID
	request.AcceptedAt = &at
	return true, nil
}

func (r *fakeRequestRepo) Transition(_ context.Context, id, volunteerID uint, from []string, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok || request.VolunteerID == nil || *request.VolunteerID != volunteerID {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if request.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	if status, ok := updates["status"].(string); ok {
		request.Status = status
	}
	if completedAt, ok := updates["completed_at"].(time.Time); ok {
		request.CompletedAt = &completedAt
	}
	if actual, ok := updates["actual_completion_time"].(time.Time); ok {
		request.ActualCompletionTime = &actual
	}
	if estimated, ok := updates["estimated_completion_time"].(*time.Time); ok {
		request.EstimatedCompletionTime = estimated
	}
	return true, nil
}

func (r *fakeRequestRepo) AddApplication(_ context.Context, application *models.RequestApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	application.ID = uint(len(r.applications) + 1)
	r.applications = append(r.applications, *application)
	return nil
}

func (r *fakeRequestRepo) HasApplication(_ context.Context, requestID, volunteerID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, application := range r.applications {
		if application.HelpRequestID == requestID && application.VolunteerID == volunteerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRequestRepo) CountApplications(_ context.Context, requestID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, application := range r.applications {
		if application.HelpRequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRequestRepo) CountByVolunteer(_ context.Context, volunteerID uint, statuses []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, request := range r.requests {
		if request.VolunteerID == nil || *request.VolunteerID != volunteerID {
			continue
		}
		if len(statuses) == 0 {
			count++
			continue
		}
		for _, status := range statuses {
			if request.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeRequestRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.requests)), nil
}

func (r *fakeRequestRepo) CountsByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, request := range r.requests {
		counts[request.Status]++
	}
	return counts, nil
}

func (r *fakeRequestRepo) ListSince(_ context.Context, since time.Time) ([]models.HelpRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HelpRequest
	for _, request := range r.requests {
		if !request.CreatedAt.Before(since) {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (r *fakeRequestRepo) Recent(_ context.Context, limit int) ([]models.HelpRequest, error) {
	requests, _, _ := r.List(context.Background(), repository.RequestFilter{})
	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

// fakeChatRepo keeps threads and messages in memory; thread creation is
// idempotent on the request id like the unique-index-backed implementation.
type fakeChatRepo struct {
	mu         sync.Mutex
	nextThread uint
	nextMsg    uint
	threads    map[uint]*models.ChatThread
	byRequest  map[uint]uint
	messages   map[uint][]*models.ChatMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		threads:   make(map[uint]*models.ChatThread),
		byRequest: make(map[uint]uint),
		messages:  make(map[uint][]*models.ChatMessage),
	}
}

func (r *fakeChatRepo) FindOrCreateThread(_ context.Context, requestID, needyUserID, volunteerID uint) (models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byRequest[requestID]; ok {
		return r.cloneThread(id), nil
	}
	r.nextThread++
	thread := &models.ChatThread{
		ID:            r.nextThread,
		HelpRequestID: requestID,
		IsActive:      true,
		LastActivity:  time.Now(),
		Participants: []models.ChatParticipant{
			{ID: r.nextThread*10 + 1, ThreadID: r.nextThread, UserID: needyUserID},
			{ID: r.nextThread*10 + 2, ThreadID: r.nextThread, UserID: volunteerID},
		},
		CreatedAt: time.Now(),
	}
	r.threads[thread.ID] = thread
	r.byRequest[requestID] = thread.ID
	return r.cloneThread(thread.ID), nil
}

func (r *fakeChatRepo) cloneThread(id uint) models.ChatThread {
	thread := *r.threads[id]
	thread.Participants = append([]models.ChatParticipant(nil), r.threads[id].Participants...)
	return thread
}

func (r *fakeChatRepo) FindThreadByID(_ context.Context, id uint) (models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[id]; !ok {
		return models.ChatThread{}, gorm.ErrRecordNotFound
	}
	return r.cloneThread(id), nil
}

func (r *fakeChatRepo) FindThreadByRequestID(_ context.Context, requestID uint) (models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRequest[requestID]
	if !ok {
		return models.ChatThread{}, gorm.ErrRecordNotFound
	}
	return r.cloneThread(id), nil
}

func (r *fakeChatRepo) ListThreadsByUser(_ context.Context, userID uint) ([]models.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatThread
	for id, thread := range r.threads {
		for _, participant := range thread.Participants {
			if participant.UserID == userID {
				out = append(out, r.cloneThread(id))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r *fakeChatRepo) AppendMessage(_ context.Context, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[message.ThreadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.nextMsg++
	message.ID = r.nextMsg
	message.CreatedAt = time.Now()
	stored := *message
	r.messages[message.ThreadID] = append(r.messages[message.ThreadID], &stored)
	thread.LastMessageID = &stored.ID
	thread.LastActivity = stored.CreatedAt
	for i := range thread.Participants {
		if thread.Participants[i].UserID != message.SenderID {
			thread.Participants[i].UnreadCount++
		}
	}
	return nil
}

func (r *fakeChatRepo) FindMessage(_ context.Context, threadID, messageID uint) (models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages[threadID] {
		if message.ID == messageID {
			return *message, nil
		}
	}
	return models.ChatMessage{}, gorm.ErrRecordNotFound
}

func (r *fakeChatRepo) ListMessages(_ context.Context, threadID uint, page, pageSize int) ([]models.ChatMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	var visible []models.ChatMessage
	for _, message := range r.messages[threadID] {
		if !message.IsDeleted {
			visible = append(visible, *message)
		}
	}
	total := int64(len(visible))
	// Newest-first paging, returned chronologically.
	start := len(visible) - page*pageSize
	end := len(visible) - (page-1)*pageSize
	if end < 0 {
		end = 0
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return visible[start:end], total, nil
}

func (r *fakeChatRepo) LastMessage(_ context.Context, threadID uint) (models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := r.messages[threadID]
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsDeleted {
			return *messages[i], nil
		}
	}
	return models.ChatMessage{}, gorm.ErrRecordNotFound
}

func (r *fakeChatRepo) MarkRead(_ context.Context, threadID, userID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, message := range r.messages[threadID] {
		if message.SenderID != userID && !message.IsRead {
			message.IsRead = true
			readAt := at
			message.ReadAt = &readAt
		}
	}
	for i := range thread.Participants {
		if thread.Participants[i].UserID == userID {
			thread.Participants[i].UnreadCount = 0
		}
	}
	return nil
}

func (r *fakeChatRepo) SetTyping(_ context.Context, threadID, userID uint, isTyping bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range thread.Participants {
		if thread.Participants[i].UserID == userID {
			thread.Participants[i].IsTyping = isTyping
			if isTyping {
				stamp := at
				thread.Participants[i].LastTypingAt = &stamp
			} else {
				thread.Participants[i].LastTypingAt = nil
			}
		}
	}
	return nil
}

func (r *fakeChatRepo) SoftDeleteMessage(_ context.Context, threadID, messageID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, message := range r.messages[threadID] {
		if message.ID != messageID {
			continue
		}
		if message.IsDeleted {
			return nil
		}
		message.IsDeleted = true
		stamp := at
		message.DeletedAt = &stamp
		if !message.IsRead {
			for i := range thread.Participants {
				if thread.Participants[i].UserID != message.SenderID && thread.Participants[i].UnreadCount > 0 {
					thread.Participants[i].UnreadCount--
				}
			}
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeChatRepo) UnreadCount(_ context.Context, threadID, userID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	for _, participant := range thread.Participants {
		if participant.UserID == userID {
			return participant.UnreadCount, nil
		}
	}
	return 0, gorm.ErrRecordNotFound
}

func (r *fakeChatRepo) DeleteThreadByRequestID(_ context.Context, requestID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRequest[requestID]
	if !ok {
		return nil
	}
	delete(r.threads, id)
	delete(r.messages, id)
	delete(r.byRequest, requestID)
	return nil
}

// setParticipantTyping backdates a typing stamp; used to exercise lazy expiry.
func (r *fakeChatRepo) setParticipantTyping(threadID, userID uint, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread := r.threads[threadID]
	for i := range thread.Participants {
		if thread.Participants[i].UserID == userID {
			thread.Participants[i].IsTyping = true
			stamp := at
			thread.Participants[i].LastTypingAt = &stamp
		}
	}
}

// fakeRatingRepo stores ratings in memory with the unique-triple constraint.
type fakeRatingRepo struct {
	mu      sync.Mutex
	nextID  uint
	ratings []*models.Rating
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{}
}

func (r *fakeRatingRepo) Create(_ context.Context, rating *models.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ratings {
		if existing.HelpRequestID == rating.HelpRequestID &&
			existing.RaterID == rating.RaterID && existing.RatedID == rating.RatedID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	rating.ID = r.nextID
	rating.CreatedAt = time.Now()
	stored := *rating
	r.ratings = append(r.ratings, &stored)
	return nil
}

func (r *fakeRatingRepo) Exists(_ context.Context, requestID, raterID, ratedID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rating := range r.ratings {
		if rating.HelpRequestID == requestID && rating.RaterID == raterID && rating.RatedID == ratedID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRatingRepo) FindByID(_ context.Context, id uint) (models.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rating := range r.ratings {
		if rating.ID == id {
			return *rating, nil
		}
	}
	return models.Rating{}, gorm.ErrRecordNotFound
}

func (r *fakeRatingRepo) ListByRated(_ context.Context, ratedID uint, page, pageSize int) ([]models.Rating, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Rating
	for _, rating := range r.ratings {
		if rating.RatedID == ratedID {
			out = append(out, *rating)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRatingRepo) Aggregate(_ context.Context, ratedID uint) (repository.RatingAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	aggregate := repository.RatingAggregate{}
	for _, rating := range r.ratings {
		if rating.RatedID == ratedID {
			aggregate.Total += float64(rating.Rating)
			aggregate.Count++
		}
	}
	if aggregate.Count > 0 {
		aggregate.Average = aggregate.Total / float64(aggregate.Count)
	}
	return aggregate, nil
}

func (r *fakeRatingRepo) Flag(_ context.Context, id uint, flagged bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rating := range r.ratings {
		if rating.ID == id {
			rating.IsFlagged = flagged
			rating.FlagReason = reason
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRatingRepo) ListFlagged(_ context.Context, limit int) ([]models.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Rating
	for _, rating := range r.ratings {
		if rating.IsFlagged {
			out = append(out, *rating)
		}
	}
	return out, nil
}

func (r *fakeRatingRepo) DeleteByRequestID(_ context.Context, requestID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.ratings[:0]
	for _, rating := range r.ratings {
		if rating.HelpRequestID != requestID {
			kept = append(kept, rating)
		}
	}
	r.ratings = kept
	return nil
}

func containsBadge(badges datatypes.JSON, badge string) bool {
	var parsed []string
	if err := json.Unmarshal(badges, &parsed); err != nil {
		return false
	}
	for _, b := range parsed {
		if strings.EqualFold(b, badge) {
			return true
		}
	}
	return false
}
