package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/events"
	"github.com/pharmstock/pharmstock-backend/pkg/actor"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// batchLocks serializes adjustments per batch so two concurrent adjustments
// against the same batch apply one after the other, each reading the
// quantity the previous one produced.
type batchLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBatchLocks() *batchLocks {
	return &batchLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *batchLocks) get(batchID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[batchID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[batchID] = m
	}
	return m
}

// StockService manages batch registration and stock adjustments.
type StockService struct {
	batches   BatchStore
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
	locks     *batchLocks
	now       func() time.Time
}

// NewStockService creates a new stock service
func NewStockService(batches BatchStore, publisher *events.InventoryEventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		batches:   batches,
		publisher: publisher,
		logger:    log.WithComponent("stock-service"),
		locks:     newBatchLocks(),
		now:       time.Now,
	}
}

// CreateBatchInput carries the fields accepted when registering a batch.
type CreateBatchInput struct {
	ProductID       string
	BatchNumber     string
	Quantity        int
	ExpiryDate      time.Time
	ManufactureDate *time.Time
	SupplierRef     *string
	CostPerUnit     *decimal.Decimal
	Notes           *string
}

func (in *CreateBatchInput) validate(now time.Time) *errors.AppError {
	details := map[string]string{}

	if strings.TrimSpace(in.BatchNumber) == "" {
		details["batch_number"] = "batch number is required"
	}
	if in.Quantity <= 0 {
		details["quantity"] = "quantity must be greater than 0"
	}
	if in.ExpiryDate.IsZero() {
		details["expiry_date"] = "expiry date is required"
	} else if !in.ExpiryDate.After(now) {
		details["expiry_date"] = "expiry date must be in the future"
	}
	if in.ManufactureDate != nil && !in.ExpiryDate.IsZero() && !in.ManufactureDate.Before(in.ExpiryDate) {
		details["manufacture_date"] = "manufacture date must be before the expiry date"
	}
	if in.CostPerUnit != nil && in.CostPerUnit.IsNegative() {
		details["cost_per_unit"] = "cost per unit must not be negative"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// CreateBatch registers a new batch for a product. The batch starts active
// with current quantity equal to the received quantity.
func (s *StockService) CreateBatch(ctx context.Context, input CreateBatchInput) (*domain.BatchView, error) {
	now := s.now()
	if err := input.validate(now); err != nil {
		return nil, err
	}

	batch := &domain.Batch{
		ProductID:       input.ProductID,
		BatchNumber:     strings.TrimSpace(input.BatchNumber),
		InitialQuantity: input.Quantity,
		CurrentQuantity: input.Quantity,
		ExpiryDate:      input.ExpiryDate,
		ManufactureDate: input.ManufactureDate,
		SupplierRef:     input.SupplierRef,
		CostPerUnit:     input.CostPerUnit,
		Status:          domain.BatchStatusActive,
		Notes:           input.Notes,
	}

	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("product_id", batch.ProductID).
		Str("batch_number", batch.BatchNumber).
		Int("quantity", batch.InitialQuantity).
		Msg("batch created")

	s.publisher.PublishBatchCreated(ctx, batch)

	return domain.NewBatchView(batch, now), nil
}

// GetBatch returns a single batch with its derived fields.
func (s *StockService) GetBatch(ctx context.Context, batchID string) (*domain.BatchView, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return domain.NewBatchView(batch, s.now()), nil
}

// ListBatches returns a product's batches in consumption priority order.
func (s *StockService) ListBatches(ctx context.Context, productID string) ([]*domain.BatchView, error) {
	batches, err := s.batches.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	domain.SortFIFO(batches)

	now := s.now()
	views := make([]*domain.BatchView, len(batches))
	for i, b := range batches {
		views[i] = domain.NewBatchView(b, now)
	}
	return views, nil
}

// AdjustInput carries a stock adjustment request. Quantity is a pointer so
// a missing quantity and an explicit zero are distinguishable; quarantine
// ignores it entirely.
type AdjustInput struct {
	Type     domain.AdjustmentType
	Quantity *int
	Reason   string
}

// Adjust applies a stock adjustment to a batch and appends the ledger
// record. Adjustments to the same batch are serialized, so each one sees
// the quantity the previous one left behind.
func (s *StockService) Adjust(ctx context.Context, batchID string, input AdjustInput) (*domain.BatchView, error) {
	if !input.Type.Valid() {
		return nil, errors.Validation(map[string]string{
			"adjustment_type": "must be one of add, consume, adjust, quarantine",
		})
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, errors.Validation(map[string]string{"reason": "reason is required"})
	}

	lock := s.locks.get(batchID)
	lock.Lock()
	defer lock.Unlock()

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	previous := batch.CurrentQuantity
	recorded := 0

	switch input.Type {
	case domain.AdjustmentAdd:
		qty, err := requireQuantity(input.Quantity)
		if err != nil {
			return nil, err
		}
		if batch.Status == domain.BatchStatusQuarantined {
			return nil, errors.InvalidState("cannot add stock to a quarantined batch")
		}
		if previous+qty > batch.InitialQuantity {
			return nil, errors.Validation(map[string]string{
				"quantity": fmt.Sprintf("adding %d would exceed the batch's initial quantity of %d; use adjust to re-base", qty, batch.InitialQuantity),
			})
		}
		batch.CurrentQuantity = previous + qty
		if batch.Status == domain.BatchStatusDepleted {
			batch.Status = domain.BatchStatusActive
		}
		recorded = qty

	case domain.AdjustmentConsume:
		qty, err := requireQuantity(input.Quantity)
		if err != nil {
			return nil, err
		}
		if batch.Status != domain.BatchStatusActive {
			return nil, errors.InvalidState(fmt.Sprintf("cannot consume from a %s batch", batch.Status))
		}
		if qty > previous {
			return nil, errors.InsufficientStock(previous)
		}
		batch.CurrentQuantity = previous - qty
		if batch.CurrentQuantity == 0 {
			batch.Status = domain.BatchStatusDepleted
		}
		recorded = qty

	case domain.AdjustmentAdjust:
		if input.Quantity == nil {
			return nil, errors.Validation(map[string]string{"quantity": "quantity is required"})
		}
		qty := *input.Quantity
		if qty < 0 {
			return nil, errors.Validation(map[string]string{"quantity": "quantity must not be negative"})
		}
		if batch.Status == domain.BatchStatusDepleted || batch.Status == domain.BatchStatusExpired {
			return nil, errors.InvalidState(fmt.Sprintf("cannot adjust a %s batch", batch.Status))
		}
		batch.CurrentQuantity = qty
		if qty > batch.InitialQuantity {
			// Stocktake found more than was ever received; re-base so
			// utilization stays within 0-100%.
			batch.InitialQuantity = qty
		}
		recorded = qty

	case domain.AdjustmentQuarantine:
		if batch.Status == domain.BatchStatusQuarantined {
			return nil, errors.Conflict("batch is already quarantined")
		}
		batch.Status = domain.BatchStatusQuarantined
	}

	performer := actor.FromContext(ctx)
	adj := &domain.StockAdjustment{
		BatchID:           batch.ID,
		ProductID:         batch.ProductID,
		AdjustmentType:    input.Type,
		Quantity:          recorded,
		PreviousQuantity:  previous,
		ResultingQuantity: batch.CurrentQuantity,
		Reason:            reason,
		PerformedBy:       performer.ID,
	}
	if performer.Name != "" {
		name := performer.Name
		adj.PerformedByName = &name
	}

	if err := s.batches.ApplyAdjustment(ctx, batch, adj); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("adjustment_type", string(input.Type)).
		Int("previous_quantity", previous).
		Int("resulting_quantity", batch.CurrentQuantity).
		Str("status", string(batch.Status)).
		Str("performed_by", performer.ID).
		Msg("stock adjusted")

	s.publisher.PublishStockAdjusted(ctx, batch, adj)

	return domain.NewBatchView(batch, s.now()), nil
}

// ListAdjustments returns the adjustment ledger for a batch, oldest first.
// The batch must exist.
func (s *StockService) ListAdjustments(ctx context.Context, batchID string) ([]*domain.StockAdjustment, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.batches.ListAdjustments(ctx, batchID)
}

func requireQuantity(q *int) (int, *errors.AppError) {
	if q == nil {
		return 0, errors.Validation(map[string]string{"quantity": "quantity is required"})
	}
	if *q <= 0 {
		return 0, errors.Validation(map[string]string{"quantity": "quantity must be greater than 0"})
	}
	return *q, nil
}
