package models

import (
	"time"
)

// Vote is never updated or deleted once written.
// idx_vote_link_ip is the storage-level guard of one vote per link and address.
type Vote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PollLinkID uint      `gorm:"not null;index;uniqueIndex:idx_vote_link_ip" json:"poll_link_id"`
	PollLink   PollLink  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CampaignID uint      `gorm:"not null;index" json:"campaign_id"` // denormalized from PollLink
	Campaign   Campaign  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Mood       Mood      `gorm:"type:varchar(10);not null" json:"mood"`
	Comment    *string   `gorm:"type:text" json:"comment"`
	IPAddress  string    `gorm:"size:64;not null;uniqueIndex:idx_vote_link_ip" json:"-"`
	UserAgent  string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// CommentText returns the comment or an empty string.
func (v *Vote) CommentText() string {
	if v.Comment == nil {
		return ""
	}
	return *v.Comment
}
