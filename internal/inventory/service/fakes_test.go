package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// fakeBatchStore is an in-memory BatchStore. It copies batches on the way
// in and out the way a real store would, so service-side mutations only
// persist through ApplyAdjustment.
type fakeBatchStore struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
	ledger  map[string][]*domain.StockAdjustment
	seq     int

	// scanHook, when set, runs at the start of ListForScan.
	scanHook func(ctx context.Context) error
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{
		batches: make(map[string]*domain.Batch),
		ledger:  make(map[string][]*domain.StockAdjustment),
	}
}

func copyBatch(b *domain.Batch) *domain.Batch {
	c := *b
	return &c
}

func (s *fakeBatchStore) Create(ctx context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	for _, existing := range s.batches {
		if existing.ProductID == batch.ProductID && existing.BatchNumber == batch.BatchNumber {
			return errors.Conflict("a batch with this batch number already exists for the product")
		}
	}

	s.seq++
	batch.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	batch.UpdatedAt = batch.CreatedAt
	s.batches[batch.ID] = copyBatch(batch)
	return nil
}

func (s *fakeBatchStore) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, errors.NotFound("batch")
	}
	return copyBatch(b), nil
}

func (s *fakeBatchStore) ListByProduct(ctx context.Context, productID string) ([]*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Batch
	for _, b := range s.batches {
		if b.ProductID == productID {
			out = append(out, copyBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeBatchStore) ListForScan(ctx context.Context) ([]*domain.Batch, error) {
	if s.scanHook != nil {
		if err := s.scanHook(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Batch
	for _, b := range s.batches {
		if b.Status == domain.BatchStatusActive || b.Status == domain.BatchStatusExpired {
			out = append(out, copyBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeBatchStore) ApplyAdjustment(ctx context.Context, batch *domain.Batch, adj *domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batch.ID]; !ok {
		return errors.NotFound("batch")
	}
	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}
	s.seq++
	adj.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	batch.UpdatedAt = adj.CreatedAt

	s.batches[batch.ID] = copyBatch(batch)
	copied := *adj
	s.ledger[batch.ID] = append(s.ledger[batch.ID], &copied)
	return nil
}

func (s *fakeBatchStore) MarkExpired(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok {
		return errors.NotFound("batch")
	}
	if b.Status == domain.BatchStatusActive {
		b.Status = domain.BatchStatusExpired
	}
	return nil
}

func (s *fakeBatchStore) ListAdjustments(ctx context.Context, batchID string) ([]*domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.StockAdjustment, 0, len(s.ledger[batchID]))
	for _, adj := range s.ledger[batchID] {
		copied := *adj
		out = append(out, &copied)
	}
	return out, nil
}

// fakeRunRegistry is an in-memory CheckRunRegistry enforcing the
// one-completed-run-per-date rule.
type fakeRunRegistry struct {
	mu   sync.Mutex
	runs map[string]*domain.ExpiryCheckRun

	completeErr error
}

func newFakeRunRegistry() *fakeRunRegistry {
	return &fakeRunRegistry{runs: make(map[string]*domain.ExpiryCheckRun)}
}

func (r *fakeRunRegistry) StartRun(ctx context.Context, date time.Time, trigger domain.TriggerKind, force bool) (*domain.ExpiryCheckRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force {
		for _, run := range r.runs {
			if run.CheckDate.Equal(date) && run.Status == domain.RunStatusCompleted {
				return nil, errors.AlreadyCompleted("a completed expiry check already exists for " + date.Format("2006-01-02"))
			}
		}
	}

	run := &domain.ExpiryCheckRun{
		ID:                uuid.New().String(),
		CheckDate:         date,
		Status:            domain.RunStatusRunning,
		TriggerKind:       trigger,
		Forced:            force,
		StartedAt:         time.Now().UTC(),
		AlertsBySeverity:  domain.CountMap{},
		AlertsByDaysRange: domain.CountMap{},
	}
	r.runs[run.ID] = run
	return run, nil
}

func (r *fakeRunRegistry) CompleteRun(ctx context.Context, runID string, metrics domain.RunMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completeErr != nil {
		return r.completeErr
	}

	run, ok := r.runs[runID]
	if !ok {
		return errors.NotFound("expiry check run")
	}
	if run.Status != domain.RunStatusRunning {
		return errors.InvalidState("expiry check run is already in a terminal state")
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusCompleted
	run.CompletedAt = &now
	run.ExecutionMs = &metrics.ExecutionMs
	run.ProductsChecked = metrics.ProductsChecked
	run.AlertsGenerated = metrics.AlertsGenerated
	run.AlertsBySeverity = metrics.AlertsBySeverity
	run.AlertsByDaysRange = metrics.AlertsByDaysRange
	return nil
}

func (r *fakeRunRegistry) FailRun(ctx context.Context, runID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return errors.NotFound("expiry check run")
	}
	if run.Status != domain.RunStatusRunning {
		return errors.InvalidState("expiry check run is already in a terminal state")
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusFailed
	run.CompletedAt = &now
	run.ErrorMessage = &message
	return nil
}

func (r *fakeRunRegistry) ListRecent(ctx context.Context, limit int) ([]*domain.ExpiryCheckRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.ExpiryCheckRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRunRegistry) get(runID string) *domain.ExpiryCheckRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID]
}

// fakeAlertStore is an in-memory AlertStore.
type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    []*domain.ExpiryAlert
	createErr error
}

func (s *fakeAlertStore) CreateAll(ctx context.Context, alerts []*domain.ExpiryAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	s.alerts = append(s.alerts, alerts...)
	return nil
}

func intPtr(n int) *int {
	return &n
}

func seedBatch(store *fakeBatchStore, productID string, quantity int, expiry time.Time) *domain.Batch {
	batch := &domain.Batch{
		ProductID:       productID,
		BatchNumber:     fmt.Sprintf("LOT-%s-%d", productID, store.seq+1),
		InitialQuantity: quantity,
		CurrentQuantity: quantity,
		ExpiryDate:      expiry,
		Status:          domain.BatchStatusActive,
	}
	if err := store.Create(context.Background(), batch); err != nil {
		panic(err)
	}
	return batch
}
