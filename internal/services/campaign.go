package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mood/internal/metrics"
	"mood/internal/models"
	"mood/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const MaxNameLength = 200

type CampaignInput struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Managers         []string   `json:"managers"`
	ExpiresAt        *time.Time `json:"expiresAt"`
	CommentsRequired bool       `json:"commentsRequired"`
}

type LinkView struct {
	ID          uint      `json:"id"`
	ManagerName string    `json:"managerName"`
	Token       string    `json:"token"`
	URL         string    `json:"url"`
	Votes       int       `json:"votes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreatedCampaign struct {
	CampaignID     uint       `json:"campaignId"`
	CampaignName   string     `json:"campaignName"`
	GeneratedLinks []LinkView `json:"generatedLinks"`
}

type CampaignSummary struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	ManagerCount     int        `json:"managerCount"`
	TotalVotes       int        `json:"totalVotes"`
	Progress         int        `json:"progress"`
	CreationDate     string     `json:"creationDate"`
	ExpiresAt        *time.Time `json:"expiresAt"`
	CommentsRequired bool       `json:"commentsRequired"`
	Archived         bool       `json:"archived"`
}

type CampaignService struct {
	db      *gorm.DB
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	pollURL func(token string) string
	now     func() time.Time
}

// NewCampaignService builds the service; pollURL turns a token into the
// public link handed to a team.
func NewCampaignService(db *gorm.DB, logger *zap.SugaredLogger, m *metrics.Metrics, pollURL func(token string) string) *CampaignService {
	return &CampaignService{db: db, logger: logger, metrics: m, pollURL: pollURL, now: time.Now}
}

func (s *CampaignService) linkView(l models.PollLink, votes int) LinkView {
	return LinkView{
		ID:          l.ID,
		ManagerName: l.ManagerName,
		Token:       l.Token,
		URL:         s.pollURL(l.Token),
		Votes:       votes,
		CreatedAt:   l.CreatedAt,
	}
}

func newLink(campaignID uint, manager string) (models.PollLink, error) {
	token, err := utils.GenerateToken()
	if err != nil {
		return models.PollLink{}, err
	}
	return models.PollLink{CampaignID: campaignID, ManagerName: manager, Token: token}, nil
}

// CreateCampaign stores the campaign and one poll link per distinct manager
// in a single transaction.
func (s *CampaignService) CreateCampaign(ctx context.Context, ownerID uint, in CampaignInput) (*CreatedCampaign, error) {
	name := utils.NormalizeName(in.Name)
	managers := utils.NormalizeNames(in.Managers)
	if name == "" || len(managers) == 0 {
		return nil, BadRequest("Nom de campagne et au moins un manager sont requis")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, BadRequest("Nom de campagne trop long")
	}
	for _, m := range managers {
		if utf8.RuneCountInString(m) > MaxNameLength {
			return nil, BadRequest("Nom de manager trop long")
		}
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, BadRequest("La date d'expiration doit être dans le futur")
	}

	campaign := models.Campaign{
		Name:             name,
		Description:      strings.TrimSpace(in.Description),
		CreatedBy:        ownerID,
		ExpiresAt:        in.ExpiresAt,
		CommentsRequired: in.CommentsRequired,
	}
	links := make([]models.PollLink, 0, len(managers))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}
		for _, m := range managers {
			link, err := newLink(campaign.ID, m)
			if err != nil {
				return err
			}
			links = append(links, link)
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		return nil, Internal("create campaign", err)
	}

	s.metrics.CampaignCreated(len(links))
	s.logger.Infow("campaign created", "campaign_id", campaign.ID, "owner_id", ownerID, "links", len(links))

	out := &CreatedCampaign{
		CampaignID:     campaign.ID,
		CampaignName:   campaign.Name,
		GeneratedLinks: make([]LinkView, 0, len(links)),
	}
	for _, l := range links {
		out.GeneratedLinks = append(out.GeneratedLinks, s.linkView(l, 0))
	}
	return out, nil
}

// archiveExpired flags expired campaigns as archived, only those of owner
// when ownerID is not zero.
func (s *CampaignService) archiveExpired(ctx context.Context, ownerID uint) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("archived = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, s.now().UTC())
	if ownerID != 0 {
		q = q.Where("created_by = ?", ownerID)
	}
	res := q.Update("archived", true)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.logger.Infow("archived expired campaigns", "owner_id", ownerID, "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// ArchiveExpired archives the expired campaigns of every owner.
func (s *CampaignService) ArchiveExpired(ctx context.Context) (int64, error) {
	n, err := s.archiveExpired(ctx, 0)
	if err != nil {
		return 0, Internal("archive expired campaigns", err)
	}
	return n, nil
}

// owned loads a campaign of owner; any other campaign is reported as not found.
func (s *CampaignService) owned(ctx context.Context, ownerID, campaignID uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := s.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", campaignID, ownerID).
		First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("Campagne introuvable")
	}
	if err != nil {
		return nil, Internal("find campaign", err)
	}
	return &campaign, nil
}

type campaignCount struct {
	CampaignID uint
	N          int
}

func (s *CampaignService) countBy(ctx context.Context, model interface{}, expr string, ids []uint) (map[uint]int, error) {
	var rows []campaignCount
	err := s.db.WithContext(ctx).Model(model).
		Select("campaign_id, "+expr+" AS n").
		Where("campaign_id IN ?", ids).
		Group("campaign_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.CampaignID] = r.N
	}
	return out, nil
}

// ListCampaigns returns the owner's campaigns newest first, archiving the
// expired ones on the way.
func (s *CampaignService) ListCampaigns(ctx context.Context, ownerID uint) ([]CampaignSummary, error) {
	if _, err := s.archiveExpired(ctx, ownerID); err != nil {
		return nil, Internal("archive expired campaigns", err)
	}

	var campaigns []models.Campaign
	err := s.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, Internal("list campaigns", err)
	}

	summaries := make([]CampaignSummary, 0, len(campaigns))
	if len(campaigns) == 0 {
		return summaries, nil
	}

	ids := make([]uint, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	links, err := s.countBy(ctx, &models.PollLink{}, "COUNT(*)", ids)
	if err != nil {
		return nil, Internal("count poll links", err)
	}
	votes, err := s.countBy(ctx, &models.Vote{}, "COUNT(*)", ids)
	if err != nil {
		return nil, Internal("count votes", err)
	}
	voted, err := s.countBy(ctx, &models.Vote{}, "COUNT(DISTINCT poll_link_id)", ids)
	if err != nil {
		return nil, Internal("count voted links", err)
	}

	for _, c := range campaigns {
		summaries = append(summaries, CampaignSummary{
			ID:               c.ID,
			Name:             c.Name,
			ManagerCount:     links[c.ID],
			TotalVotes:       votes[c.ID],
			Progress:         ParticipationRate(voted[c.ID], links[c.ID]),
			CreationDate:     c.CreatedAt.Format("02/01/2006"),
			ExpiresAt:        c.ExpiresAt,
			CommentsRequired: c.CommentsRequired,
			Archived:         c.Archived,
		})
	}
	return summaries, nil
}

// GetCampaign returns one campaign of owner, archiving it if it expired.
func (s *CampaignService) GetCampaign(ctx context.Context, ownerID, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.owned(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Archived && campaign.IsExpired(s.now()) {
		if err := s.db.WithContext(ctx).Model(campaign).Update("archived", true).Error; err != nil {
			return nil, Internal("archive campaign", err)
		}
		campaign.Archived = true
	}
	return campaign, nil
}

// AddManager generates a link for a new manager of an existing campaign.
func (s *CampaignService) AddManager(ctx context.Context, ownerID, campaignID uint, name string) (*LinkView, error) {
	name = utils.NormalizeName(name)
	if name == "" {
		return nil, BadRequest("Le nom du manager est requis")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, BadRequest("Nom de manager trop long")
	}

	campaign, err := s.owned(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.PollLink{}).
		Where("campaign_id = ? AND manager_name = ?", campaign.ID, name).
		Count(&existing).Error
	if err != nil {
		return nil, Internal("check manager", err)
	}
	if existing > 0 {
		return nil, Conflict("Ce manager existe déjà pour cette campagne")
	}

	link, err := newLink(campaign.ID, name)
	if err != nil {
		return nil, Internal("generate token", err)
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, Conflict("Ce manager existe déjà pour cette campagne")
		}
		return nil, Internal("create poll link", err)
	}

	s.metrics.LinkCreated()
	s.logger.Infow("manager added", "campaign_id", campaign.ID, "poll_link_id", link.ID)
	view := s.linkView(link, 0)
	return &view, nil
}

func (s *CampaignService) SetArchived(ctx context.Context, ownerID, campaignID uint, archived bool) (*models.Campaign, error) {
	campaign, err := s.owned(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(campaign).Update("archived", archived).Error; err != nil {
		return nil, Internal("update campaign", err)
	}
	campaign.Archived = archived
	return campaign, nil
}

// Links lists the poll links of a campaign with their vote counts.
func (s *CampaignService) Links(ctx context.Context, ownerID, campaignID uint) ([]LinkView, error) {
	campaign, err := s.owned(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}

	var links []models.PollLink
	err = s.db.WithContext(ctx).
		Where("campaign_id = ?", campaign.ID).
		Order("manager_name ASC").
		Find(&links).Error
	if err != nil {
		return nil, Internal("list poll links", err)
	}

	type linkCount struct {
		PollLinkID uint
		N          int
	}
	var counts []linkCount
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("poll_link_id, COUNT(*) AS n").
		Where("campaign_id = ?", campaign.ID).
		Group("poll_link_id").
		Scan(&counts).Error
	if err != nil {
		return nil, Internal("count votes", err)
	}
	byLink := make(map[uint]int, len(counts))
	for _, c := range counts {
		byLink[c.PollLinkID] = c.N
	}

	views := make([]LinkView, 0, len(links))
	for _, l := range links {
		views = append(views, s.linkView(l, byLink[l.ID]))
	}
	return views, nil
}

// ManagerNames returns the distinct manager names of one campaign, or of
// every campaign of owner when campaignID is nil.
func (s *CampaignService) ManagerNames(ctx context.Context, ownerID uint, campaignID *uint) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.PollLink{}).
		Joins("JOIN campaigns ON campaigns.id = poll_links.campaign_id").
		Where("campaigns.created_by = ?", ownerID)
	if campaignID != nil {
		if _, err := s.owned(ctx, ownerID, *campaignID); err != nil {
			return nil, err
		}
		q = q.Where("poll_links.campaign_id = ?", *campaignID)
	}

	names := []string{}
	if err := q.Distinct().Order("poll_links.manager_name ASC").Pluck("poll_links.manager_name", &names).Error; err != nil {
		return nil, Internal("list managers", err)
	}
	return names, nil
}
