package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// AlertRepository handles expiry alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateAll inserts the alerts produced by one check run in a single
// transaction, so a run's alert set is recorded completely or not at all.
func (r *AlertRepository) CreateAll(ctx context.Context, alerts []*domain.ExpiryAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO expiry_alerts (
				id, run_id, product_id, batch_id, batch_number, severity,
				days_range, days_until_expiry, message
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`

		for _, alert := range alerts {
			if alert.ID == "" {
				alert.ID = uuid.New().String()
			}
			if err := tx.QueryRowxContext(ctx, query,
				alert.ID, alert.RunID, alert.ProductID, alert.BatchID,
				alert.BatchNumber, alert.Severity, alert.DaysRange,
				alert.DaysUntilExpiry, alert.Message,
			).Scan(&alert.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// List lists alerts, optionally filtered by acknowledgement state,
// critical first, newest first within a severity.
func (r *AlertRepository) List(ctx context.Context, acknowledged *bool, page, perPage int) ([]*domain.ExpiryAlert, int64, error) {
	var total int64
	args := []interface{}{}

	countQuery := `SELECT COUNT(*) FROM expiry_alerts`
	query := `SELECT * FROM expiry_alerts`

	if acknowledged != nil {
		countQuery += ` WHERE is_acknowledged = $1`
		query += ` WHERE is_acknowledged = $1`
		args = append(args, *acknowledged)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += `
		ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END,
			created_at DESC
	`

	offset := (page - 1) * perPage
	if acknowledged != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, offset)

	var alerts []*domain.ExpiryAlert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

// Acknowledge acknowledges an alert
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string) error {
	query := `
		UPDATE expiry_alerts
		SET is_acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}

	return nil
}

// CountUnacknowledged counts alerts awaiting acknowledgement
func (r *AlertRepository) CountUnacknowledged(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM expiry_alerts WHERE is_acknowledged = FALSE`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}
