package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// CheckRunRepository enforces the one-completed-run-per-day contract and
// records run outcomes.
type CheckRunRepository struct {
	db *database.DB
}

// NewCheckRunRepository creates a new check run repository
func NewCheckRunRepository(db *database.DB) *CheckRunRepository {
	return &CheckRunRepository{db: db}
}

// StartRun registers a new run for the date. Unless forced, the insert is
// guarded by a check for an existing completed run in the same statement,
// so two concurrent triggers cannot both believe they are first.
func (r *CheckRunRepository) StartRun(ctx context.Context, date time.Time, trigger domain.TriggerKind, force bool) (*domain.ExpiryCheckRun, error) {
	run := &domain.ExpiryCheckRun{
		ID:                uuid.New().String(),
		CheckDate:         date,
		Status:            domain.RunStatusRunning,
		TriggerKind:       trigger,
		Forced:            force,
		AlertsBySeverity:  domain.CountMap{},
		AlertsByDaysRange: domain.CountMap{},
	}

	var query string
	if force {
		query = `
			INSERT INTO expiry_check_runs (id, check_date, status, trigger_kind, forced, started_at)
			VALUES ($1, $2, 'running', $3, TRUE, NOW())
			RETURNING started_at
		`
	} else {
		query = `
			INSERT INTO expiry_check_runs (id, check_date, status, trigger_kind, forced, started_at)
			SELECT $1, $2, 'running', $3, FALSE, NOW()
			WHERE NOT EXISTS (
				SELECT 1 FROM expiry_check_runs
				WHERE check_date = $2 AND status = 'completed'
			)
			RETURNING started_at
		`
	}

	err := r.db.QueryRowxContext(ctx, query, run.ID, date, trigger).Scan(&run.StartedAt)
	if err == sql.ErrNoRows {
		return nil, errors.AlreadyCompleted("a completed expiry check already exists for " + date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteRun transitions a running run to completed and records its
// metrics. A run already in a terminal state fails with an invalid state
// error; a second unforced completion for the date is rejected by the
// partial unique index and surfaces as already completed.
func (r *CheckRunRepository) CompleteRun(ctx context.Context, runID string, metrics domain.RunMetrics) error {
	query := `
		UPDATE expiry_check_runs SET
			status = 'completed', completed_at = NOW(), execution_ms = $2,
			products_checked = $3, alerts_generated = $4,
			alerts_by_severity = $5, alerts_by_days_range = $6
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, runID, metrics.ExecutionMs,
		metrics.ProductsChecked, metrics.AlertsGenerated,
		metrics.AlertsBySeverity, metrics.AlertsByDaysRange)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			if errors.Is(appErr, errors.ErrConflict) {
				return errors.AlreadyCompleted("a completed expiry check already exists for this date")
			}
			return appErr
		}
		return err
	}

	return r.checkTransitioned(ctx, result, runID)
}

// FailRun transitions a running run to failed with the error message.
func (r *CheckRunRepository) FailRun(ctx context.Context, runID string, message string) error {
	query := `
		UPDATE expiry_check_runs SET
			status = 'failed', completed_at = NOW(), error_message = $2
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, runID, message)
	if err != nil {
		return err
	}

	return r.checkTransitioned(ctx, result, runID)
}

// checkTransitioned distinguishes "run does not exist" from "run already
// terminal" when a status-guarded update matched no rows.
func (r *CheckRunRepository) checkTransitioned(ctx context.Context, result sql.Result, runID string) error {
	affected, _ := result.RowsAffected()
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM expiry_check_runs WHERE id = $1)`, runID); err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("expiry check run")
	}
	return errors.InvalidState("expiry check run is already in a terminal state")
}

// GetByID gets a run by ID
func (r *CheckRunRepository) GetByID(ctx context.Context, id string) (*domain.ExpiryCheckRun, error) {
	var run domain.ExpiryCheckRun
	query := `SELECT * FROM expiry_check_runs WHERE id = $1`
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("expiry check run")
		}
		return nil, err
	}
	return &run, nil
}

// ListRecent lists runs, most recently started first.
func (r *CheckRunRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ExpiryCheckRun, error) {
	var runs []*domain.ExpiryCheckRun
	query := `SELECT * FROM expiry_check_runs ORDER BY started_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}
