// Package jobs runs the periodic maintenance tasks of the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Archiver closes campaigns past their expiry date.
type Archiver interface {
	ArchiveExpired(ctx context.Context) (int64, error)
}

// Scheduler wraps gocron with the jobs of the server.
type Scheduler struct {
	cron   *gocron.Scheduler
	logger *zap.SugaredLogger
}

func NewScheduler(logger *zap.SugaredLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A slow run is never overlapped by the next tick
	s.SingletonModeAll()
	return &Scheduler{cron: s, logger: logger}
}

// ArchiveEvery sweeps expired campaigns every interval, starting right away.
func (s *Scheduler) ArchiveEvery(interval time.Duration, archiver Archiver) error {
	_, err := s.cron.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		n, err := archiver.ArchiveExpired(ctx)
		if err != nil {
			s.logger.Errorw("archive sweep failed", "error", err)
			return
		}
		s.logger.Debugw("archive sweep done", "archived", n)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule archive sweep: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
