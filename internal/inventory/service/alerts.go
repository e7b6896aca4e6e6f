package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
)

// AlertGenerator turns a scan result into the alert set for a run.
type AlertGenerator struct{}

// NewAlertGenerator creates a new alert generator
func NewAlertGenerator() *AlertGenerator {
	return &AlertGenerator{}
}

// GeneratedAlerts is the alert set for one run, with the per-severity and
// per-bucket counts the run records.
type GeneratedAlerts struct {
	Alerts      []*domain.ExpiryAlert
	BySeverity  domain.CountMap
	ByDaysRange domain.CountMap
}

// Generate produces at most one alert per batch and bucket from a scan
// result. Expired batches get an expired alert instead of a days-range one
// and are counted under the expired pseudo-bucket.
func (g *AlertGenerator) Generate(runID string, result *ScanResult) *GeneratedAlerts {
	out := &GeneratedAlerts{
		BySeverity:  domain.CountMap{},
		ByDaysRange: domain.CountMap{},
	}

	seen := make(map[string]struct{})

	for _, entry := range result.Entries {
		batch, risk := entry.Batch, entry.Risk

		key := batch.ID + "|" + risk.Bucket
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		alert := &domain.ExpiryAlert{
			ID:              uuid.New().String(),
			RunID:           runID,
			ProductID:       batch.ProductID,
			BatchID:         batch.ID,
			BatchNumber:     batch.BatchNumber,
			Severity:        risk.Severity,
			DaysRange:       risk.Bucket,
			DaysUntilExpiry: risk.DaysUntilExpiry,
			Message:         alertMessage(batch, risk),
		}

		out.Alerts = append(out.Alerts, alert)
		out.BySeverity[string(risk.Severity)]++
		out.ByDaysRange[risk.Bucket]++
	}

	return out
}

func alertMessage(batch *domain.Batch, risk domain.ExpiryRisk) string {
	if risk.Expired {
		overdue := -risk.DaysUntilExpiry
		if overdue == 0 {
			return fmt.Sprintf("batch %s expires today", batch.BatchNumber)
		}
		return fmt.Sprintf("batch %s expired %d day(s) ago", batch.BatchNumber, overdue)
	}
	return fmt.Sprintf("batch %s expires in %d day(s)", batch.BatchNumber, risk.DaysUntilExpiry)
}
