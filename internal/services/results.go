package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mood/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	AllCampaignsName = "Toutes les campagnes"
	AnonymousUser    = "Anonyme"
	NoDominantMood   = "N/A"
	NoDominantEmoji  = "🤔"
)

// ResultsFilter narrows the votes aggregated for one owner.
// Nil CampaignID and empty Manager mean every campaign and every manager.
type ResultsFilter struct {
	CampaignID *uint
	Manager    string
	From       *time.Time
	To         *time.Time
}

type MoodBucket struct {
	Mood  models.Mood `json:"mood"`
	Name  string      `json:"name"`
	Votes int         `json:"votes"`
	Fill  string      `json:"fill"`
	Emoji string      `json:"emoji"`
}

type CommentEntry struct {
	User    string      `json:"user"`
	Manager string      `json:"manager"`
	Comment string      `json:"comment"`
	Mood    models.Mood `json:"mood"`
}

// ExportRow is one vote flattened for the CSV export.
type ExportRow struct {
	Date     string `json:"date"`
	Campaign string `json:"campaign"`
	Manager  string `json:"manager"`
	User     string `json:"user"`
	Mood     string `json:"mood"`
	Comment  string `json:"comment"`
}

type Results struct {
	TotalVotes        int            `json:"totalVotes"`
	MoodDistribution  []MoodBucket   `json:"moodDistribution"`
	DominantMood      string         `json:"dominantMood"`
	DominantMoodEmoji string         `json:"dominantMoodEmoji"`
	ParticipationRate string         `json:"participationRate"`
	Comments          []CommentEntry `json:"comments"`
	CampaignName      string         `json:"campaignName"`
	ExportRows        []ExportRow    `json:"exportRows"`
}

type CampaignOption struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ResultsService struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewResultsService(db *gorm.DB, logger *zap.SugaredLogger) *ResultsService {
	return &ResultsService{db: db, logger: logger}
}

type voteRow struct {
	ID           uint
	PollLinkID   uint
	Mood         models.Mood
	Comment      *string
	CreatedAt    time.Time
	ManagerName  string
	CampaignName string
}

// scope restricts q, which must join poll_links and campaigns, to the owner
// and the campaign/manager filters.
func (f ResultsFilter) scope(q *gorm.DB, ownerID uint) *gorm.DB {
	q = q.Where("campaigns.created_by = ?", ownerID)
	if f.CampaignID != nil {
		q = q.Where("campaigns.id = ?", *f.CampaignID)
	}
	if f.Manager != "" {
		q = q.Where("poll_links.manager_name = ?", f.Manager)
	}
	return q
}

// GetFilteredResults aggregates the owner's votes matching filter.
// A campaign the owner does not own is reported as not found.
func (s *ResultsService) GetFilteredResults(ctx context.Context, filter ResultsFilter, ownerID uint) (*Results, error) {
	campaignName := AllCampaignsName
	if filter.CampaignID != nil {
		var campaign models.Campaign
		err := s.db.WithContext(ctx).
			Where("id = ? AND created_by = ?", *filter.CampaignID, ownerID).
			First(&campaign).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Campagne introuvable")
		}
		if err != nil {
			return nil, Internal("find campaign", err)
		}
		campaignName = campaign.Name
	}

	q := s.db.WithContext(ctx).Table("votes").
		Select("votes.id, votes.poll_link_id, votes.mood, votes.comment, votes.created_at, poll_links.manager_name, campaigns.name AS campaign_name").
		Joins("JOIN poll_links ON poll_links.id = votes.poll_link_id").
		Joins("JOIN campaigns ON campaigns.id = votes.campaign_id")
	q = filter.scope(q, ownerID)
	if filter.From != nil {
		q = q.Where("votes.created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("votes.created_at <= ?", filter.To.UTC())
	}

	var rows []voteRow
	if err := q.Order("votes.created_at DESC, votes.id DESC").Scan(&rows).Error; err != nil {
		return nil, Internal("load votes", err)
	}

	var totalLinks int64
	lq := s.db.WithContext(ctx).Table("poll_links").
		Joins("JOIN campaigns ON campaigns.id = poll_links.campaign_id")
	if err := filter.scope(lq, ownerID).Count(&totalLinks).Error; err != nil {
		return nil, Internal("count poll links", err)
	}

	res := aggregate(rows, int(totalLinks))
	res.CampaignName = campaignName
	return res, nil
}

// aggregate tallies rows, which must be ordered newest first.
func aggregate(rows []voteRow, totalLinks int) *Results {
	counts := make(map[models.Mood]int, len(models.Moods))
	votedLinks := make(map[uint]struct{})
	res := &Results{
		TotalVotes: len(rows),
		Comments:   []CommentEntry{},
		ExportRows: make([]ExportRow, 0, len(rows)),
	}

	for _, r := range rows {
		counts[r.Mood]++
		votedLinks[r.PollLinkID] = struct{}{}

		comment := ""
		if r.Comment != nil {
			comment = *r.Comment
		}
		if comment != "" {
			res.Comments = append(res.Comments, CommentEntry{
				User:    AnonymousUser,
				Manager: r.ManagerName,
				Comment: comment,
				Mood:    r.Mood,
			})
		}
		res.ExportRows = append(res.ExportRows, ExportRow{
			Date:     r.CreatedAt.UTC().Format(time.RFC3339),
			Campaign: r.CampaignName,
			Manager:  r.ManagerName,
			User:     AnonymousUser,
			Mood:     r.Mood.Label(),
			Comment:  comment,
		})
	}

	res.MoodDistribution = make([]MoodBucket, 0, len(models.Moods))
	for _, meta := range models.Moods {
		res.MoodDistribution = append(res.MoodDistribution, MoodBucket{
			Mood:  meta.Mood,
			Name:  meta.Label,
			Votes: counts[meta.Mood],
			Fill:  meta.Color,
			Emoji: meta.Emoji,
		})
	}

	res.DominantMood, res.DominantMoodEmoji = dominantMood(res.MoodDistribution)
	res.ParticipationRate = FormatRate(ParticipationRate(len(votedLinks), totalLinks))
	return res
}

// dominantMood picks the largest bucket; on a tie the earlier bucket wins.
func dominantMood(buckets []MoodBucket) (string, string) {
	best := -1
	for i, b := range buckets {
		if b.Votes == 0 {
			continue
		}
		if best < 0 || b.Votes > buckets[best].Votes {
			best = i
		}
	}
	if best < 0 {
		return NoDominantMood, NoDominantEmoji
	}
	return buckets[best].Name, buckets[best].Emoji
}

// ParticipationRate is round(100 * voted / total) with halves rounded up,
// and 0 when there are no links.
func ParticipationRate(voted, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*voted + total) / (2 * total)
}

func FormatRate(rate int) string {
	return fmt.Sprintf("%d%%", rate)
}

// CampaignOptions lists the owner's campaigns by name for the filter bar.
func (s *ResultsService) CampaignOptions(ctx context.Context, ownerID uint) ([]CampaignOption, error) {
	var options []CampaignOption
	err := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Select("id, name").
		Where("created_by = ?", ownerID).
		Order("name ASC, id ASC").
		Scan(&options).Error
	if err != nil {
		return nil, Internal("list campaign options", err)
	}
	return options, nil
}
