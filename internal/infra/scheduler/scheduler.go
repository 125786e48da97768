package scheduler

import (
	"context"
	"time"

	"ippt_reminder_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is the daily batch pass: reminders plus deferment expiry.
type Sweeper interface {
	RunDailySweep(ctx context.Context) (app.SweepStats, error)
}

// SweepScheduler triggers the daily sweep on a cron spec in the configured
// location.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeper    Sweeper
	logger     *logrus.Entry
	cronSpec   string
}

func NewSweepScheduler(sweeper Sweeper, logger *logrus.Entry, cronSpec string, location *time.Location) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(location)),
		sweeper:    sweeper,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

func (s *SweepScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for daily sweep")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.sweeper.RunDailySweep(ctx); err != nil {
			s.logger.WithError(err).Error("Daily sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Sweep scheduler started")
	return nil
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // Waits for a running job to finish.
	<-ctx.Done()
	s.logger.Info("Sweep scheduler stopped")
}
