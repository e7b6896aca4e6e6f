package service

import (
	"context"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryScanner walks the batch population and classifies each batch's
// expiry risk against a single reference date, so a scan that straddles
// midnight still classifies every batch consistently.
type ExpiryScanner struct {
	batches BatchStore
	logger  *logger.Logger
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(batches BatchStore, log *logger.Logger) *ExpiryScanner {
	return &ExpiryScanner{
		batches: batches,
		logger:  log.WithComponent("expiry-scanner"),
	}
}

// ScanEntry is one scanned batch with its classification.
type ScanEntry struct {
	Batch *domain.Batch
	Risk  domain.ExpiryRisk
}

// ScanResult is the outcome of one expiry scan.
type ScanResult struct {
	ReferenceDate      time.Time
	ProductsChecked    int
	BatchesScanned     int
	ExpiredTransitions int
	Entries            []ScanEntry
}

// Scan classifies every active and expired batch as of ref. Active batches
// found overdue are transitioned to expired as a side effect and still
// reported, so the alert for the day they lapse is not lost.
func (s *ExpiryScanner) Scan(ctx context.Context, ref time.Time) (*ScanResult, error) {
	batches, err := s.batches.ListForScan(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		ReferenceDate: ref,
		Entries:       make([]ScanEntry, 0, len(batches)),
	}
	products := make(map[string]struct{})

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		risk := domain.ClassifyExpiry(ref, batch.ExpiryDate)

		if risk.Expired && batch.Status == domain.BatchStatusActive {
			if err := s.batches.MarkExpired(ctx, batch.ID); err != nil {
				return nil, err
			}
			batch.Status = domain.BatchStatusExpired
			result.ExpiredTransitions++
			s.logger.Info().
				Str("batch_id", batch.ID).
				Str("batch_number", batch.BatchNumber).
				Int("days_overdue", -risk.DaysUntilExpiry).
				Msg("batch transitioned to expired")
		}

		products[batch.ProductID] = struct{}{}
		result.BatchesScanned++
		result.Entries = append(result.Entries, ScanEntry{Batch: batch, Risk: risk})
	}

	result.ProductsChecked = len(products)
	return result, nil
}
