package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the lifecycle state of an inventory batch.
// Batches are never deleted, only status-transitioned, so the adjustment
// ledger always has a batch to refer to.
type BatchStatus string

const (
	BatchStatusActive      BatchStatus = "active"
	BatchStatusDepleted    BatchStatus = "depleted"
	BatchStatusExpired     BatchStatus = "expired"
	BatchStatusQuarantined BatchStatus = "quarantined"
)

// AdjustmentType identifies a stock adjustment operation.
type AdjustmentType string

const (
	AdjustmentAdd        AdjustmentType = "add"
	AdjustmentConsume    AdjustmentType = "consume"
	AdjustmentAdjust     AdjustmentType = "adjust"
	AdjustmentQuarantine AdjustmentType = "quarantine"
)

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentAdd, AdjustmentConsume, AdjustmentAdjust, AdjustmentQuarantine:
		return true
	}
	return false
}

// Batch represents a product batch and its stock level.
//
// BatchNumber is unique per product and immutable after creation.
// InitialQuantity is set once; the only operation allowed to move it is an
// upward ADJUST, which re-bases it so utilization stays well-defined.
type Batch struct {
	ID              string           `db:"id" json:"id"`
	ProductID       string           `db:"product_id" json:"product_id"`
	BatchNumber     string           `db:"batch_number" json:"batch_number"`
	InitialQuantity int              `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int              `db:"current_quantity" json:"current_quantity"`
	ExpiryDate      time.Time        `db:"expiry_date" json:"expiry_date"`
	ManufactureDate *time.Time       `db:"manufacture_date" json:"manufacture_date,omitempty"`
	SupplierRef     *string          `db:"supplier_ref" json:"supplier_ref,omitempty"`
	CostPerUnit     *decimal.Decimal `db:"cost_per_unit" json:"cost_per_unit,omitempty"`
	Status          BatchStatus      `db:"status" json:"status"`
	Notes           *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// DaysUntilExpiry returns the number of whole days until the batch expires,
// rounded up, measured from ref. Zero or negative means the batch is overdue.
func (b *Batch) DaysUntilExpiry(ref time.Time) int {
	return DaysUntilExpiry(ref, b.ExpiryDate)
}

// UtilizationPercent returns how much of the batch has been consumed,
// as a percentage of the initial quantity.
func (b *Batch) UtilizationPercent() float64 {
	if b.InitialQuantity == 0 {
		return 0
	}
	return float64(b.InitialQuantity-b.CurrentQuantity) / float64(b.InitialQuantity) * 100
}

// TotalValue returns current quantity times cost per unit.
// Zero when no cost is recorded.
func (b *Batch) TotalValue() decimal.Decimal {
	if b.CostPerUnit == nil {
		return decimal.Zero
	}
	return b.CostPerUnit.Mul(decimal.NewFromInt(int64(b.CurrentQuantity)))
}

// BatchView is a Batch with its derived read-only fields attached.
type BatchView struct {
	*Batch
	DaysUntilExpiry    int             `json:"days_until_expiry"`
	UtilizationPercent float64         `json:"utilization_percent"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// NewBatchView computes the derived fields for a batch as of ref.
func NewBatchView(b *Batch, ref time.Time) *BatchView {
	return &BatchView{
		Batch:              b,
		DaysUntilExpiry:    b.DaysUntilExpiry(ref),
		UtilizationPercent: b.UtilizationPercent(),
		TotalValue:         b.TotalValue(),
	}
}

// StockAdjustment is one row of the append-only stock ledger. Records are
// immutable once written; a batch's current quantity equals its initial
// quantity plus the net effect of its adjustments in order.
type StockAdjustment struct {
	ID                string         `db:"id" json:"id"`
	BatchID           string         `db:"batch_id" json:"batch_id"`
	ProductID         string         `db:"product_id" json:"product_id"`
	AdjustmentType    AdjustmentType `db:"adjustment_type" json:"adjustment_type"`
	Quantity          int            `db:"quantity" json:"quantity"`
	PreviousQuantity  int            `db:"previous_quantity" json:"previous_quantity"`
	ResultingQuantity int            `db:"resulting_quantity" json:"resulting_quantity"`
	Reason            string         `db:"reason" json:"reason"`
	PerformedBy       string         `db:"performed_by" json:"performed_by"`
	PerformedByName   *string        `db:"performed_by_name" json:"performed_by_name,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
