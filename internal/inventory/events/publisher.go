package events

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events.
// A nil publisher is safe to call; every method is a no-op then, so
// services can run without a broker in tests.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishBatchCreated publishes a batch created event
func (p *InventoryEventPublisher) PublishBatchCreated(ctx context.Context, batch *domain.Batch) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		BatchID:     batch.ID,
		ProductID:   batch.ProductID,
		BatchNumber: batch.BatchNumber,
		Quantity:    batch.CurrentQuantity,
		ExpiryDate:  batch.ExpiryDate.Format("2006-01-02"),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, batch *domain.Batch, adj *domain.StockAdjustment) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		BatchID:           adj.BatchID,
		ProductID:         adj.ProductID,
		AdjustmentType:    string(adj.AdjustmentType),
		Quantity:          adj.Quantity,
		ResultingQuantity: adj.ResultingQuantity,
		BatchStatus:       string(batch.Status),
		PerformedBy:       adj.PerformedBy,
		Reason:            adj.Reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", adj.BatchID).Msg("failed to publish stock adjusted event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *domain.ExpiryAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:         alert.ID,
		ProductID:       alert.ProductID,
		BatchID:         alert.BatchID,
		Severity:        string(alert.Severity),
		DaysRange:       alert.DaysRange,
		DaysUntilExpiry: alert.DaysUntilExpiry,
		Message:         alert.Message,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

// PublishCheckCompleted publishes an expiry check completed event
func (p *InventoryEventPublisher) PublishCheckCompleted(ctx context.Context, run *domain.ExpiryCheckRun) {
	if p == nil {
		return
	}

	var executionMs int64
	if run.ExecutionMs != nil {
		executionMs = *run.ExecutionMs
	}

	data := messaging.ExpiryCheckCompletedEvent{
		RunID:            run.ID,
		CheckDate:        run.CheckDate.Format("2006-01-02"),
		TriggerKind:      string(run.TriggerKind),
		ProductsChecked:  run.ProductsChecked,
		AlertsGenerated:  run.AlertsGenerated,
		AlertsBySeverity: map[string]int(run.AlertsBySeverity),
		ExecutionMs:      executionMs,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExpiryCheckCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to publish expiry check completed event")
	}
}
