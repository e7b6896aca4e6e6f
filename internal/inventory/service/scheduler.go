package service

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryCheckScheduler triggers the daily expiry check on a cron schedule.
// A scheduled trigger never forces: if a manual run already completed the
// date, the scheduled one records nothing.
type ExpiryCheckScheduler struct {
	checks   *ExpiryCheckService
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewExpiryCheckScheduler creates a new expiry check scheduler
func NewExpiryCheckScheduler(checks *ExpiryCheckService, schedule string, log *logger.Logger) *ExpiryCheckScheduler {
	return &ExpiryCheckScheduler{
		checks:   checks,
		schedule: schedule,
		logger:   log.WithComponent("expiry-scheduler"),
	}
}

// Start registers the cron entry and starts the scheduler.
func (s *ExpiryCheckScheduler) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx := context.Background()
		result, err := s.checks.Run(ctx, domain.TriggerScheduled, false)
		if err != nil {
			if errors.Is(err, errors.ErrTimeout) {
				s.logger.Error().Err(err).Msg("scheduled expiry check timed out")
				return
			}
			s.logger.Error().Err(err).Msg("scheduled expiry check failed")
			return
		}
		if result.AlreadyCompleted {
			s.logger.Debug().Msg("scheduled expiry check skipped, date already checked")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("expiry check scheduler started")
	return nil
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *ExpiryCheckScheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info().Msg("expiry check scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out waiting for running job")
	}
}
