package db

import (
	"testing"

	"mood/internal/config"
	"mood/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestMigrateCreatesSchema(t *testing.T) {
	logger := zap.NewNop().Sugar()
	conn, err := Open(config.Database{
		Driver: config.DriverSQLite,
		URL:    "file:db_migrate?mode=memory&cache=shared&_pragma=foreign_keys(1)",
	}, logger)
	require.NoError(t, err)
	defer Close(conn, logger)

	require.NoError(t, Migrate(conn, logger))
	// Running twice is a no-op
	require.NoError(t, Migrate(conn, logger))

	for _, model := range models.AllModels {
		assert.True(t, conn.Migrator().HasTable(model))
	}
	assert.True(t, conn.Migrator().HasIndex(&models.Vote{}, "idx_vote_link_ip"))
	assert.True(t, conn.Migrator().HasIndex(&models.PollLink{}, "idx_link_campaign_manager"))
}

func TestVoteUniqueIndex(t *testing.T) {
	logger := zap.NewNop().Sugar()
	conn, err := Open(config.Database{
		Driver: config.DriverSQLite,
		URL:    "file:db_unique?mode=memory&cache=shared&_pragma=foreign_keys(1)",
	}, logger)
	require.NoError(t, err)
	defer Close(conn, logger)
	require.NoError(t, Migrate(conn, logger))

	user := models.User{Email: "a@example.com", Username: "a", Password: "x"}
	require.NoError(t, conn.Create(&user).Error)
	campaign := models.Campaign{Name: "Q1", CreatedBy: user.ID}
	require.NoError(t, conn.Create(&campaign).Error)
	link := models.PollLink{CampaignID: campaign.ID, ManagerName: "Alice", Token: "tok1234567"}
	require.NoError(t, conn.Create(&link).Error)

	first := models.Vote{PollLinkID: link.ID, CampaignID: campaign.ID, Mood: models.MoodGreen, IPAddress: "203.0.113.5"}
	require.NoError(t, conn.Create(&first).Error)
	second := models.Vote{PollLinkID: link.ID, CampaignID: campaign.ID, Mood: models.MoodRed, IPAddress: "203.0.113.5"}
	assert.Error(t, conn.Create(&second).Error)
}
