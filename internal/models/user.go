package models

import (
	"time"

	"gorm.io/datatypes"
)

// User roles recognised by the platform.
const (
	RoleNeedy     = "needy"
	RoleVolunteer = "volunteer"
	RoleAdmin     = "admin"
)

// Badge tiers awarded to volunteers as their points accumulate. A badge is
// granted at most once and never revoked.
const (
	BadgeBronze = "Bronze"
	BadgeSilver = "Silver"
	BadgeGold   = "Gold"
	BadgeHero   = "Hero"
)

// badgeThresholds maps the minimum point total to the tier it unlocks.
var badgeThresholds = []struct {
	Points int
	Badge  string
}{
	{10, BadgeBronze},
	{100, BadgeSilver},
	{500, BadgeGold},
	{1000, BadgeHero},
}

// User represents a platform account. Authentication lives in a separate
// service; this API only consumes the authenticated {id, role} pair, but the
// stats fields below are mutated by the request lifecycle.
type User struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"size:50;not null" json:"name"`
	Email             string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone             string         `gorm:"size:20" json:"phone,omitempty"`
	Role              string         `gorm:"size:16;not null;default:needy;index" json:"role"`
	AvatarURL         string         `gorm:"size:512" json:"avatar_url,omitempty"`
	IsVerified        bool           `gorm:"not null;default:false" json:"is_verified"`
	IsBlocked         bool           `gorm:"not null;default:false" json:"is_blocked"`
	RequestsCreated   int            `gorm:"not null;default:0" json:"requests_created"`
	RequestsCompleted int            `gorm:"not null;default:0" json:"requests_completed"`
	TotalRating       float64        `gorm:"not null;default:0" json:"total_rating"`
	RatingCount       int            `gorm:"not null;default:0" json:"rating_count"`
	AverageRating     float64        `gorm:"not null;default:0" json:"average_rating"`
	Points            int            `gorm:"not null;default:0" json:"points"`
	Badges            datatypes.JSON `gorm:"type:json" json:"badges"`
	LastActiveAt      time.Time      `json:"last_active_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// BadgesForPoints returns every badge tier unlocked by the given point total.
func BadgesForPoints(points int) []string {
	earned := make([]string, 0, len(badgeThresholds))
	for _, threshold := range badgeThresholds {
		if points >= threshold.Points {
			earned = append(earned, threshold.Badge)
		}
	}
	return earned
}

// MergeBadges combines the already-granted set with the tiers unlocked by the
// new point total, preserving order and granting each tier at most once.
func MergeBadges(current []string, points int) []string {
	seen := make(map[string]struct{}, len(current))
	merged := make([]string, 0, len(current)+1)
	for _, badge := range current {
		if _, ok := seen[badge]; ok {
			continue
		}
		seen[badge] = struct{}{}
		merged = append(merged, badge)
	}
	for _, badge := range BadgesForPoints(points) {
		if _, ok := seen[badge]; ok {
			continue
		}
		seen[badge] = struct{}{}
		merged = append(merged, badge)
	}
	return merged
}
