package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// BatchRepository handles batch and adjustment-ledger persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch. A duplicate batch number for the same product
// maps to a conflict via the unique constraint.
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (
			id, product_id, batch_number, initial_quantity, current_quantity,
			expiry_date, manufacture_date, supplier_ref, cost_per_unit, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.ProductID, batch.BatchNumber, batch.InitialQuantity,
		batch.CurrentQuantity, batch.ExpiryDate, batch.ManufactureDate,
		batch.SupplierRef, batch.CostPerUnit, batch.Status, batch.Notes,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByProduct lists a product's batches in consumption priority order:
// soonest expiry first, then manufacture date, then creation time.
func (r *BatchRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM batches
		WHERE product_id = $1
		ORDER BY expiry_date, manufacture_date NULLS LAST, created_at
	`
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListForScan lists batches the expiry scan considers: active batches to be
// classified and expired batches that still warrant an expired alert.
// Depleted and quarantined batches are excluded.
func (r *BatchRepository) ListForScan(ctx context.Context) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM batches
		WHERE status IN ('active', 'expired')
		ORDER BY expiry_date, created_at
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// ApplyAdjustment persists the outcome of a stock adjustment: the batch's
// new quantities and status together with the appended ledger record, in a
// single transaction.
func (r *BatchRepository) ApplyAdjustment(ctx context.Context, batch *domain.Batch, adj *domain.StockAdjustment) error {
	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		update := `
			UPDATE batches SET
				initial_quantity = $2, current_quantity = $3, status = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		if err := tx.QueryRowxContext(ctx, update,
			batch.ID, batch.InitialQuantity, batch.CurrentQuantity, batch.Status,
		).Scan(&batch.UpdatedAt); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("batch")
			}
			return err
		}

		insert := `
			INSERT INTO stock_adjustments (
				id, batch_id, product_id, adjustment_type, quantity,
				previous_quantity, resulting_quantity, reason, performed_by, performed_by_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at
		`
		return tx.QueryRowxContext(ctx, insert,
			adj.ID, adj.BatchID, adj.ProductID, adj.AdjustmentType, adj.Quantity,
			adj.PreviousQuantity, adj.ResultingQuantity, adj.Reason,
			adj.PerformedBy, adj.PerformedByName,
		).Scan(&adj.CreatedAt)
	})
}

// MarkExpired transitions a batch to expired. Only active batches
// transition; anything else is left untouched.
func (r *BatchRepository) MarkExpired(ctx context.Context, id string) error {
	query := `UPDATE batches SET status = 'expired', updated_at = NOW() WHERE id = $1 AND status = 'active'`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ListAdjustments lists the adjustment ledger for a batch, oldest first.
func (r *BatchRepository) ListAdjustments(ctx context.Context, batchID string) ([]*domain.StockAdjustment, error) {
	var adjustments []*domain.StockAdjustment
	query := `
		SELECT * FROM stock_adjustments
		WHERE batch_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &adjustments, query, batchID); err != nil {
		return nil, err
	}
	return adjustments, nil
}
