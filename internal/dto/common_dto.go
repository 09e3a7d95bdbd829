package dto

// PaginationMeta describes the page window returned by list endpoints.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// NewPaginationMeta derives the meta block from a page window and total count.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		HasMore:    int64(page*pageSize) < total,
	}
}

// UserSummary is the public slice of a user embedded in other payloads.
type UserSummary struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
	AverageRating float64  `json:"average_rating"`
	Points        int      `json:"points"`
	Badges        []string `json:"badges,omitempty"`
	IsVerified    bool     `json:"is_verified"`
}

// UploadedAsset is the {url, public_id} pair handed back by object storage.
type UploadedAsset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
}
