package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryCheckService orchestrates expiry check runs: registering the run,
// scanning, generating alerts, and recording the outcome.
type ExpiryCheckService struct {
	runs         CheckRunRegistry
	scanner      *ExpiryScanner
	generator    *AlertGenerator
	alerts       AlertStore
	publisher    *events.InventoryEventPublisher
	scanTimeout  time.Duration
	historyLimit int
	logger       *logger.Logger
	now          func() time.Time
}

// NewExpiryCheckService creates a new expiry check service
func NewExpiryCheckService(
	runs CheckRunRegistry,
	scanner *ExpiryScanner,
	generator *AlertGenerator,
	alerts AlertStore,
	publisher *events.InventoryEventPublisher,
	scanTimeout time.Duration,
	historyLimit int,
	log *logger.Logger,
) *ExpiryCheckService {
	return &ExpiryCheckService{
		runs:         runs,
		scanner:      scanner,
		generator:    generator,
		alerts:       alerts,
		publisher:    publisher,
		scanTimeout:  scanTimeout,
		historyLimit: historyLimit,
		logger:       log.WithComponent("expiry-check"),
		now:          time.Now,
	}
}

// RunResult is the outcome of a trigger. When a completed run already
// exists for the date and the trigger was not forced, AlreadyCompleted is
// set and Run is nil.
type RunResult struct {
	Run              *domain.ExpiryCheckRun `json:"run,omitempty"`
	AlreadyCompleted bool                   `json:"already_completed"`
}

// Run executes one expiry check. Unless force is set, a date that already
// has a completed run yields an AlreadyCompleted result without scanning.
func (s *ExpiryCheckService) Run(ctx context.Context, trigger domain.TriggerKind, force bool) (*RunResult, error) {
	started := s.now()
	// The check date is the UTC calendar day, independent of the server's
	// zone, so the once-per-day guard agrees across deployments.
	day := started.UTC()
	checkDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	run, err := s.runs.StartRun(ctx, checkDate, trigger, force)
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyCompleted) {
			s.logger.Info().
				Str("check_date", checkDate.Format("2006-01-02")).
				Str("trigger", string(trigger)).
				Msg("expiry check skipped, already completed for date")
			return &RunResult{AlreadyCompleted: true}, nil
		}
		return nil, err
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("check_date", checkDate.Format("2006-01-02")).
		Str("trigger", string(trigger)).
		Bool("forced", force).
		Msg("expiry check started")

	scanCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	result, err := s.scanner.Scan(scanCtx, started)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Timeout("expiry scan exceeded " + s.scanTimeout.String())
		}
		return nil, s.fail(ctx, run, err)
	}

	generated := s.generator.Generate(run.ID, result)
	if err := s.alerts.CreateAll(ctx, generated.Alerts); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	metrics := domain.RunMetrics{
		ProductsChecked:   result.ProductsChecked,
		AlertsGenerated:   len(generated.Alerts),
		AlertsBySeverity:  generated.BySeverity,
		AlertsByDaysRange: generated.ByDaysRange,
		ExecutionMs:       time.Since(started).Milliseconds(),
	}
	if err := s.runs.CompleteRun(ctx, run.ID, metrics); err != nil {
		return nil, s.fail(ctx, run, err)
	}

	completed := s.now()
	run.Status = domain.RunStatusCompleted
	run.CompletedAt = &completed
	run.ExecutionMs = &metrics.ExecutionMs
	run.ProductsChecked = metrics.ProductsChecked
	run.AlertsGenerated = metrics.AlertsGenerated
	run.AlertsBySeverity = metrics.AlertsBySeverity
	run.AlertsByDaysRange = metrics.AlertsByDaysRange

	for _, alert := range generated.Alerts {
		s.publisher.PublishAlertGenerated(ctx, alert)
	}
	s.publisher.PublishCheckCompleted(ctx, run)

	s.logger.Info().
		Str("run_id", run.ID).
		Int("products_checked", run.ProductsChecked).
		Int("alerts_generated", run.AlertsGenerated).
		Int64("execution_ms", metrics.ExecutionMs).
		Msg("expiry check completed")

	return &RunResult{Run: run}, nil
}

// fail records the run as failed and returns the original error. The
// caller's context may already be canceled (client disconnect on a manual
// trigger); the failure record must still reach the registry or the run
// stays running forever.
func (s *ExpiryCheckService) fail(ctx context.Context, run *domain.ExpiryCheckRun, cause error) error {
	s.logger.Error().Err(cause).Str("run_id", run.ID).Msg("expiry check failed")

	if err := s.runs.FailRun(context.WithoutCancel(ctx), run.ID, cause.Error()); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to record run failure")
	}
	return cause
}

// History returns recent runs, most recently started first.
func (s *ExpiryCheckService) History(ctx context.Context) ([]*domain.ExpiryCheckRun, error) {
	return s.runs.ListRecent(ctx, s.historyLimit)
}

// Dashboard aggregates the recent run history for the monitoring surface.
type Dashboard struct {
	TotalRuns          int                      `json:"total_runs"`
	CompletedRuns      int                      `json:"completed_runs"`
	FailedRuns         int                      `json:"failed_runs"`
	SuccessRate        float64                  `json:"success_rate"`
	AvgProductsChecked float64                  `json:"avg_products_checked"`
	AvgAlertsGenerated float64                  `json:"avg_alerts_generated"`
	AvgExecutionMs     float64                  `json:"avg_execution_ms"`
	LastRun            *domain.ExpiryCheckRun   `json:"last_run,omitempty"`
	RecentRuns         []*domain.ExpiryCheckRun `json:"recent_runs"`
}

// GetDashboard computes aggregate figures over the recent run history.
// Averages cover completed runs only; the success rate is completed over
// terminal runs.
func (s *ExpiryCheckService) GetDashboard(ctx context.Context) (*Dashboard, error) {
	runs, err := s.runs.ListRecent(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{
		TotalRuns:  len(runs),
		RecentRuns: runs,
	}
	if len(runs) > 0 {
		dash.LastRun = runs[0]
	}

	var products, alerts, execMs int64
	for _, run := range runs {
		switch run.Status {
		case domain.RunStatusCompleted:
			dash.CompletedRuns++
			products += int64(run.ProductsChecked)
			alerts += int64(run.AlertsGenerated)
			if run.ExecutionMs != nil {
				execMs += *run.ExecutionMs
			}
		case domain.RunStatusFailed:
			dash.FailedRuns++
		}
	}

	if dash.CompletedRuns > 0 {
		n := float64(dash.CompletedRuns)
		dash.AvgProductsChecked = float64(products) / n
		dash.AvgAlertsGenerated = float64(alerts) / n
		dash.AvgExecutionMs = float64(execMs) / n
	}
	if terminal := dash.CompletedRuns + dash.FailedRuns; terminal > 0 {
		dash.SuccessRate = float64(dash.CompletedRuns) / float64(terminal) * 100
	}

	return dash, nil
}
