package domain

import (
	"math"
	"sort"
	"time"
)

// Severity is the alert severity tier, matching the three-tier chip scheme
// used by the reporting surface.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Days-range bucket labels. Bounds are inclusive as named. A batch that is
// overdue (days until expiry <= 0) falls into the expired pseudo-bucket and
// is excluded from the days-range counts.
const (
	BucketExpired = "expired"
	Bucket0To7    = "0-7 days"
	Bucket8To30   = "8-30 days"
	Bucket31To60  = "31-60 days"
	Bucket61To90  = "61-90 days"
	Bucket91Plus  = "91+ days"
)

// DaysRangeBuckets lists the non-expired bucket labels in ascending order.
var DaysRangeBuckets = []string{Bucket0To7, Bucket8To30, Bucket31To60, Bucket61To90, Bucket91Plus}

// DaysUntilExpiry returns ceil((expiry - ref) in whole days).
func DaysUntilExpiry(ref, expiry time.Time) int {
	return int(math.Ceil(expiry.Sub(ref).Hours() / 24))
}

// ExpiryRisk is the canonical classification of a batch's expiry risk,
// shared by the scanner and every query surface so bucket boundaries can
// never diverge.
type ExpiryRisk struct {
	DaysUntilExpiry int      `json:"days_until_expiry"`
	Bucket          string   `json:"bucket"`
	Severity        Severity `json:"severity"`
	Expired         bool     `json:"expired"`
}

// ClassifyExpiry buckets a batch by days until expiry, measured from a
// fixed reference date. Overdue batches are classified expired (critical)
// rather than assigned a days-range bucket.
func ClassifyExpiry(ref, expiry time.Time) ExpiryRisk {
	days := DaysUntilExpiry(ref, expiry)

	if days <= 0 {
		return ExpiryRisk{
			DaysUntilExpiry: days,
			Bucket:          BucketExpired,
			Severity:        SeverityCritical,
			Expired:         true,
		}
	}

	risk := ExpiryRisk{DaysUntilExpiry: days}
	switch {
	case days <= 7:
		risk.Bucket = Bucket0To7
		risk.Severity = SeverityCritical
	case days <= 30:
		risk.Bucket = Bucket8To30
		risk.Severity = SeverityWarning
	case days <= 60:
		risk.Bucket = Bucket31To60
		risk.Severity = SeverityInfo
	case days <= 90:
		risk.Bucket = Bucket61To90
		risk.Severity = SeverityInfo
	default:
		risk.Bucket = Bucket91Plus
		risk.Severity = SeverityInfo
	}

	return risk
}

// SortFIFO orders batches for consumption priority: soonest expiry first,
// then earliest manufacture date (batches without one sort last), then
// creation time. The sort is stable, so insertion order is the final
// tie-break.
func SortFIFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]

		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}

		switch {
		case a.ManufactureDate != nil && b.ManufactureDate != nil:
			if !a.ManufactureDate.Equal(*b.ManufactureDate) {
				return a.ManufactureDate.Before(*b.ManufactureDate)
			}
		case a.ManufactureDate != nil:
			return true
		case b.ManufactureDate != nil:
			return false
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})
}
