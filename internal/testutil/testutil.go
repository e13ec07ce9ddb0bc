// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"mood/internal/config"
	"mood/internal/db"
	"mood/internal/metrics"
	"mood/internal/models"
	"mood/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	dbSeq      atomic.Int64
	unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Logger returns a logger that discards everything.
func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Metrics returns collectors bound to a private registry.
func Metrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// NewDB opens a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("%s_%d", unsafeName.ReplaceAllString(t.Name(), "_"), dbSeq.Add(1))
	cfg := config.Database{
		Driver: config.DriverSQLite,
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name),
	}

	conn, err := db.Open(cfg, Logger())
	require.NoError(t, err)
	conn.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	require.NoError(t, db.Migrate(conn, Logger()))

	t.Cleanup(func() { db.Close(conn, Logger()) })
	return conn
}

// CreateUser inserts an admin whose password is "password123".
func CreateUser(t testing.TB, conn *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{Email: email, Username: email, Password: hash}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// CreateCampaign inserts a campaign owned by ownerID with one link per manager.
func CreateCampaign(t testing.TB, conn *gorm.DB, ownerID uint, name string, managers ...string) (*models.Campaign, []models.PollLink) {
	t.Helper()
	campaign := &models.Campaign{Name: name, CreatedBy: ownerID}
	require.NoError(t, conn.Create(campaign).Error)

	links := make([]models.PollLink, 0, len(managers))
	for _, m := range managers {
		token, err := utils.GenerateToken()
		require.NoError(t, err)
		link := models.PollLink{CampaignID: campaign.ID, ManagerName: m, Token: token}
		require.NoError(t, conn.Create(&link).Error)
		links = append(links, link)
	}
	return campaign, links
}

// CreateVote inserts a vote directly, bypassing the vote service.
func CreateVote(t testing.TB, conn *gorm.DB, link models.PollLink, mood models.Mood, comment string, ip string, at time.Time) *models.Vote {
	t.Helper()
	vote := &models.Vote{
		PollLinkID: link.ID,
		CampaignID: link.CampaignID,
		Mood:       mood,
		IPAddress:  ip,
		UserAgent:  "go-test",
		CreatedAt:  at.UTC(),
	}
	if comment != "" {
		vote.Comment = &comment
	}
	require.NoError(t, conn.Create(vote).Error)
	return vote
}
