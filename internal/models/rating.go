package models

import (
	"time"

	"gorm.io/datatypes"
)

// Rating category labels accepted in the sub-score breakdown.
const (
	RatingCategoryPunctuality     = "Punctuality"
	RatingCategoryCommunication   = "Communication"
	RatingCategoryHelpfulness     = "Helpfulness"
	RatingCategoryProfessionalism = "Professionalism"
	RatingCategoryOverall         = "Overall"
)

// Rating is feedback left by the needy user about the volunteer once the
// bound request is Completed. The (request, rater, rated) triple is unique.
type Rating struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	HelpRequestID uint           `gorm:"not null;uniqueIndex:idx_rating_triple,priority:1" json:"help_request_id"`
	RaterID       uint           `gorm:"not null;uniqueIndex:idx_rating_triple,priority:2" json:"rater_id"`
	Rater         *User          `gorm:"foreignKey:RaterID" json:"rater,omitempty"`
	RatedID       uint           `gorm:"not null;uniqueIndex:idx_rating_triple,priority:3;index" json:"rated_id"`
	Rated         *User          `gorm:"foreignKey:RatedID" json:"rated,omitempty"`
	Rating        int            `gorm:"not null" json:"rating"`
	Review        string         `gorm:"size:500" json:"review,omitempty"`
	Categories    datatypes.JSON `gorm:"type:json" json:"categories,omitempty"`
	IsAnonymous   bool           `gorm:"not null;default:false" json:"is_anonymous"`
	IsFlagged     bool           `gorm:"not null;default:false;index" json:"is_flagged"`
	FlagReason    string         `gorm:"size:500" json:"flag_reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
