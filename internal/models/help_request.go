package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Help request statuses. "On the Way" keeps the wire value the mobile and web
// clients already display verbatim.
const (
	StatusPending   = "Pending"
	StatusAccepted  = "Accepted"
	StatusOnTheWay  = "On the Way"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// Help request categories.
const (
	CategoryFood           = "Food"
	CategoryMedical        = "Medical"
	CategoryShelter        = "Shelter"
	CategoryEducation      = "Education"
	CategoryTransportation = "Transportation"
	CategoryOther          = "Other"
)

// Urgency levels.
const (
	UrgencyLow    = "Low"
	UrgencyMedium = "Medium"
	UrgencyHigh   = "High"
)

// Application statuses within a help request.
const (
	ApplicationPending  = "Pending"
	ApplicationAccepted = "Accepted"
	ApplicationRejected = "Rejected"
)

// HelpRequest is one assistance need posted by a needy user. The status only
// ever advances Pending -> Accepted -> On the Way -> Completed; Cancelled is
// reachable from Pending alone. VolunteerID is set exactly once, on accept.
type HelpRequest struct {
	ID                      uint           `gorm:"primaryKey" json:"id"`
	Title                   string         `gorm:"size:100;not null" json:"title"`
	Description             string         `gorm:"size:1000;not null" json:"description"`
	Category                string         `gorm:"size:32;not null;index:idx_requests_status_category,priority:2" json:"category"`
	Urgency                 string         `gorm:"size:16;not null;default:Medium" json:"urgency"`
	Status                  string         `gorm:"size:16;not null;default:Pending;index:idx_requests_status_category,priority:1" json:"status"`
	Latitude                float64        `json:"latitude"`
	Longitude               float64        `json:"longitude"`
	Address                 string         `gorm:"size:255;not null" json:"address"`
	City                    string         `gorm:"size:100" json:"city,omitempty"`
	State                   string         `gorm:"size:100" json:"state,omitempty"`
	ZipCode                 string         `gorm:"size:20" json:"zip_code,omitempty"`
	Images                  datatypes.JSON `gorm:"type:json" json:"images"`
	NeedyUserID             uint           `gorm:"not null;index" json:"needy_user_id"`
	NeedyUser               *User          `gorm:"foreignKey:NeedyUserID" json:"needy_user,omitempty"`
	VolunteerID             *uint          `gorm:"index" json:"volunteer_id,omitempty"`
	Volunteer               *User          `gorm:"foreignKey:VolunteerID" json:"volunteer,omitempty"`
	AcceptedAt              *time.Time     `json:"accepted_at,omitempty"`
	CompletedAt             *time.Time     `json:"completed_at,omitempty"`
	CancelledAt             *time.Time     `json:"cancelled_at,omitempty"`
	CancellationReason      string         `gorm:"size:500" json:"cancellation_reason,omitempty"`
	EstimatedCompletionTime *time.Time     `json:"estimated_completion_time,omitempty"`
	ActualCompletionTime    *time.Time     `json:"actual_completion_time,omitempty"`
	IsUrgent                bool           `gorm:"not null;default:false" json:"is_urgent"`
	IsVerified              bool           `gorm:"not null;default:false" json:"is_verified"`
	IsFlagged               bool           `gorm:"not null;default:false;index" json:"is_flagged"`
	FlagReason              string         `gorm:"size:500" json:"flag_reason,omitempty"`
	Priority                int            `gorm:"not null;default:0" json:"priority"`
	Views                   int            `gorm:"not null;default:0" json:"views"`
	Applications            []RequestApplication `gorm:"foreignKey:HelpRequestID" json:"applications,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// RequestApplication is a volunteer's offer to take a pending request. A
// volunteer may apply to a given request at most once.
type RequestApplication struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	HelpRequestID uint      `gorm:"not null;uniqueIndex:idx_request_volunteer,priority:1" json:"help_request_id"`
	VolunteerID   uint      `gorm:"not null;uniqueIndex:idx_request_volunteer,priority:2" json:"volunteer_id"`
	Volunteer     *User     `gorm:"foreignKey:VolunteerID" json:"volunteer,omitempty"`
	Message       string    `gorm:"size:500" json:"message,omitempty"`
	Status        string    `gorm:"size:16;not null;default:Pending" json:"status"`
	AppliedAt     time.Time `json:"applied_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// PointsForUrgency returns the completion award for a request of the given
// urgency.
func PointsForUrgency(urgency string) int {
	switch urgency {
	case UrgencyHigh:
		return 50
	case UrgencyMedium:
		return 30
	default:
		return 20
	}
}

// CalculatePriority derives the advisory priority score: urgency weight plus
// a recency bonus plus a category weight. Consumers treat it as a sort key
// only; nothing schedules work off it.
func (r *HelpRequest) CalculatePriority(now time.Time) int {
	priority := 0

	switch r.Urgency {
	case UrgencyHigh:
		priority += 30
	case UrgencyMedium:
		priority += 20
	case UrgencyLow:
		priority += 10
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	hours := now.Sub(createdAt).Hours()
	switch {
	case hours < 1:
		priority += 25
	case hours < 6:
		priority += 20
	case hours < 24:
		priority += 15
	case hours < 72:
		priority += 10
	}

	switch r.Category {
	case CategoryMedical:
		priority += 20
	case CategoryShelter:
		priority += 15
	case CategoryFood:
		priority += 10
	default:
		priority += 5
	}

	return priority
}

// BeforeSave recomputes the priority score on every persist.
func (r *HelpRequest) BeforeSave(_ *gorm.DB) error {
	r.Priority = r.CalculatePriority(time.Now())
	return nil
}
