package services

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"mood/internal/metrics"
	"mood/internal/models"
	"mood/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ClosedPollPath   = "/poll/closed"
	MaxCommentLength = 2000
)

// Submitter identifies who is voting. IP must already be normalized.
type Submitter struct {
	IP        string
	UserAgent string
}

type VoteService struct {
	db      *gorm.DB
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewVoteService(db *gorm.DB, logger *zap.SugaredLogger, m *metrics.Metrics) *VoteService {
	return &VoteService{db: db, logger: logger, metrics: m}
}

func duplicateVote() *Error {
	return &Error{
		Kind:     KindConflict,
		Message:  "Vous avez déjà voté pour ce sondage",
		Redirect: ClosedPollPath,
	}
}

// findLink resolves a poll token, returning nil when it does not exist.
func findLink(ctx context.Context, db *gorm.DB, token string) (*models.PollLink, error) {
	var link models.PollLink
	err := db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// SubmitVote records one vote for the link behind token and returns its id.
// At most one vote per link and submitter address is ever stored: the
// existence check answers the common case, the unique index on votes
// settles concurrent submissions.
func (s *VoteService) SubmitVote(ctx context.Context, token string, mood models.Mood, comment string, sub Submitter) (uint, error) {
	if sub.UserAgent == "" {
		sub.UserAgent = "unknown"
	}

	link, err := findLink(ctx, s.db, token)
	if err != nil {
		return 0, Internal("find poll link", err)
	}
	if link == nil {
		s.metrics.Vote(metrics.OutcomeRejected)
		return 0, NotFound("Lien de sondage introuvable ou expiré")
	}

	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, link.CampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.Vote(metrics.OutcomeRejected)
			return 0, NotFound("Campagne introuvable")
		}
		return 0, Internal("find campaign", err)
	}

	comment, err = validateVote(&campaign, mood, comment)
	if err != nil {
		s.recordAttempt(ctx, link.ID, sub, models.AttemptReasonInvalid)
		s.metrics.Vote(metrics.OutcomeRejected)
		return 0, err
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("poll_link_id = ? AND ip_address = ?", link.ID, sub.IP).
		Count(&existing).Error
	if err != nil {
		return 0, Internal("check existing vote", err)
	}
	if existing > 0 {
		s.recordAttempt(ctx, link.ID, sub, models.AttemptReasonDuplicate)
		s.metrics.Vote(metrics.OutcomeDuplicate)
		return 0, duplicateVote()
	}

	attempt := s.recordAttempt(ctx, link.ID, sub, models.AttemptReasonPending)

	vote := models.Vote{
		PollLinkID: link.ID,
		CampaignID: link.CampaignID,
		Mood:       mood,
		IPAddress:  sub.IP,
		UserAgent:  sub.UserAgent,
	}
	if comment != "" {
		vote.Comment = &comment
	}

	if err := s.db.WithContext(ctx).Create(&vote).Error; err != nil {
		if isUniqueViolation(err) {
			s.finishAttempt(ctx, attempt, false, models.AttemptReasonDuplicate)
			s.metrics.Vote(metrics.OutcomeDuplicate)
			return 0, duplicateVote()
		}
		return 0, Internal("create vote", err)
	}

	s.finishAttempt(ctx, attempt, true, models.AttemptReasonSuccess)
	s.metrics.Vote(metrics.OutcomeAccepted)
	s.logger.Debugw("vote recorded", "vote_id", vote.ID, "poll_link_id", link.ID, "campaign_id", link.CampaignID)
	return vote.ID, nil
}

// validateVote checks mood and comment against the campaign rules and
// returns the sanitized comment.
func validateVote(campaign *models.Campaign, mood models.Mood, comment string) (string, error) {
	if !mood.Valid() {
		return "", BadRequest("Humeur invalide")
	}
	comment = utils.StripMarkup(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return "", BadRequest("Le commentaire est trop long")
	}
	if campaign.CommentsRequired && comment == "" {
		return "", BadRequest("Un commentaire est requis pour ce sondage")
	}
	return comment, nil
}

// recordAttempt writes the audit row. A failure here never blocks the vote.
func (s *VoteService) recordAttempt(ctx context.Context, linkID uint, sub Submitter, reason string) *models.VoteAttempt {
	attempt := models.VoteAttempt{
		PollLinkID: linkID,
		IPAddress:  sub.IP,
		UserAgent:  sub.UserAgent,
		Success:    false,
		Reason:     reason,
	}
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		s.logger.Warnw("failed to record vote attempt", "poll_link_id", linkID, "reason", reason, "error", err)
		return nil
	}
	return &attempt
}

func (s *VoteService) finishAttempt(ctx context.Context, attempt *models.VoteAttempt, success bool, reason string) {
	if attempt == nil {
		return
	}
	err := s.db.WithContext(ctx).Model(attempt).Updates(map[string]interface{}{
		"success": success,
		"reason":  reason,
	}).Error
	if err != nil {
		s.logger.Warnw("failed to update vote attempt", "attempt_id", attempt.ID, "error", err)
	}
}

// HasVoted reports whether sub already has a vote on the link of token.
// An unknown token simply has no votes.
func (s *VoteService) HasVoted(ctx context.Context, token string, sub Submitter) (bool, error) {
	link, err := findLink(ctx, s.db, token)
	if err != nil {
		return false, Internal("find poll link", err)
	}
	if link == nil {
		return false, nil
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("poll_link_id = ? AND ip_address = ?", link.ID, sub.IP).
		Count(&count).Error
	if err != nil {
		return false, Internal("check existing vote", err)
	}
	return count > 0, nil
}

// PollInfo is what the voting page shows about a link.
type PollInfo struct {
	Token            string        `json:"token"`
	ManagerName      string        `json:"managerName"`
	CampaignName     string        `json:"campaignName"`
	Description      template.HTML `json:"description"`
	CommentsRequired bool          `json:"commentsRequired"`
	Archived         bool          `json:"archived"`
}

func (s *VoteService) PollInfo(ctx context.Context, token string) (*PollInfo, error) {
	token = strings.TrimSpace(token)
	link, err := findLink(ctx, s.db, token)
	if err != nil {
		return nil, Internal("find poll link", err)
	}
	if link == nil {
		return nil, NotFound("Lien de sondage invalide ou expiré")
	}

	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, link.CampaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Lien de sondage invalide ou expiré")
		}
		return nil, Internal("find campaign", err)
	}

	return &PollInfo{
		Token:            link.Token,
		ManagerName:      link.ManagerName,
		CampaignName:     campaign.Name,
		Description:      utils.RenderMarkdown(campaign.Description),
		CommentsRequired: campaign.CommentsRequired,
		Archived:         campaign.Archived || campaign.IsExpired(time.Now()),
	}, nil
}
