package domain

import "time"

// ExpiryAlert is generated by an expiry check run for a batch at risk.
// Alerts start unacknowledged; delivery and notification preferences are
// handled downstream.
type ExpiryAlert struct {
	ID              string     `db:"id" json:"id"`
	RunID           string     `db:"run_id" json:"run_id"`
	ProductID       string     `db:"product_id" json:"product_id"`
	BatchID         string     `db:"batch_id" json:"batch_id"`
	BatchNumber     string     `db:"batch_number" json:"batch_number"`
	Severity        Severity   `db:"severity" json:"severity"`
	DaysRange       string     `db:"days_range" json:"days_range"`
	DaysUntilExpiry int        `db:"days_until_expiry" json:"days_until_expiry"`
	Message         string     `db:"message" json:"message"`
	IsAcknowledged  bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedBy  *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
