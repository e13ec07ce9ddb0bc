package models

import (
	"time"
)

// Campaign is a time-boxed mood poll owned by the admin who created it.
type Campaign struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"size:200;not null" json:"name"`
	Description      string     `gorm:"type:text" json:"description"` // Markdown, optional
	CreatedBy        uint       `gorm:"not null;index" json:"created_by"`
	Owner            User       `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ExpiresAt        *time.Time `json:"expires_at"`
	Archived         bool       `gorm:"default:false;not null;index" json:"archived"`
	CommentsRequired bool       `gorm:"default:false;not null" json:"comments_required"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	PollLinks []PollLink `json:"-"`
}

// IsExpired reports whether the campaign deadline has passed at now.
func (c *Campaign) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
