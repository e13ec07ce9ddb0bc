package db

import (
	"fmt"
	"time"

	"mood/internal/config"
	"mood/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Open connects to the configured database. Unique violations are translated
// to gorm.ErrDuplicatedKey by the dialector.
func Open(cfg config.Database, logger *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.URL)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := gormlogger.Warn
	if cfg.Debug {
		logLevel = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
		// Stored timestamps are compared as text by SQLite
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to configure tracing: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite allows a single writer
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Infow("database connection established", "driver", cfg.Driver)
	return conn, nil
}

// Migrate creates or updates every table and index.
func Migrate(conn *gorm.DB, logger *zap.SugaredLogger) error {
	if err := conn.AutoMigrate(models.AllModels...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database migration completed")
	return nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB, logger *zap.SugaredLogger) {
	sqlDB, err := conn.DB()
	if err != nil {
		logger.Warnw("failed to get database handle", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warnw("failed to close database", "error", err)
	}
}
