package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
)

// BatchStore is the persistence contract for batches and the adjustment
// ledger. Satisfied by repository.BatchRepository.
type BatchStore interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	ListByProduct(ctx context.Context, productID string) ([]*domain.Batch, error)
	ListForScan(ctx context.Context) ([]*domain.Batch, error)
	ApplyAdjustment(ctx context.Context, batch *domain.Batch, adj *domain.StockAdjustment) error
	MarkExpired(ctx context.Context, id string) error
	ListAdjustments(ctx context.Context, batchID string) ([]*domain.StockAdjustment, error)
}

// CheckRunRegistry is the persistence contract for expiry check runs.
// Satisfied by repository.CheckRunRepository.
type CheckRunRegistry interface {
	StartRun(ctx context.Context, date time.Time, trigger domain.TriggerKind, force bool) (*domain.ExpiryCheckRun, error)
	CompleteRun(ctx context.Context, runID string, metrics domain.RunMetrics) error
	FailRun(ctx context.Context, runID string, message string) error
	ListRecent(ctx context.Context, limit int) ([]*domain.ExpiryCheckRun, error)
}

// AlertStore is the persistence contract for expiry alerts.
// Satisfied by repository.AlertRepository.
type AlertStore interface {
	CreateAll(ctx context.Context, alerts []*domain.ExpiryAlert) error
}
