package models

import (
	"time"
)

// PollLink maps one manager/team of a campaign to the token shared with voters.
type PollLink struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CampaignID  uint      `gorm:"not null;index;uniqueIndex:idx_link_campaign_manager" json:"campaign_id"`
	Campaign    Campaign  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token       string    `gorm:"uniqueIndex;size:32;not null" json:"token"`
	ManagerName string    `gorm:"size:200;not null;uniqueIndex:idx_link_campaign_manager" json:"manager_name"`
	CreatedAt   time.Time `json:"created_at"`
}
