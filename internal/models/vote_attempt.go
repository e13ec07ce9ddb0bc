package models

import (
	"time"
)

const (
	AttemptReasonPending   = "attempt"
	AttemptReasonDuplicate = "duplicate"
	AttemptReasonSuccess   = "success"
	AttemptReasonInvalid   = "invalid"
)

// VoteAttempt audits every submission, successful or not.
type VoteAttempt struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PollLinkID uint      `gorm:"not null;index" json:"poll_link_id"`
	PollLink   PollLink  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	IPAddress  string    `gorm:"size:64;not null" json:"ip_address"`
	UserAgent  string    `gorm:"type:text" json:"user_agent"`
	Success    bool      `gorm:"default:false;not null" json:"success"`
	Reason     string    `gorm:"size:50;not null" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
