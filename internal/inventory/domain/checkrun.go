package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus is the state of an expiry check run.
// A run moves RUNNING -> COMPLETED or RUNNING -> FAILED exactly once and is
// never mutated after reaching a terminal state.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TriggerKind records how a check run was started. Persisted explicitly so
// nothing ever has to reconstruct it from the time of day.
type TriggerKind string

const (
	TriggerScheduled TriggerKind = "scheduled"
	TriggerManual    TriggerKind = "manual"
)

// CountMap is a string-to-count mapping stored as JSONB.
type CountMap map[string]int

// Value implements driver.Valuer.
func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *CountMap) Scan(src interface{}) error {
	if src == nil {
		*m = CountMap{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CountMap", src)
	}

	return json.Unmarshal(data, m)
}

// ExpiryCheckRun records one execution of the expiry check. At most one
// completed, unforced run exists per calendar date.
type ExpiryCheckRun struct {
	ID                string      `db:"id" json:"id"`
	CheckDate         time.Time   `db:"check_date" json:"check_date"`
	Status            RunStatus   `db:"status" json:"status"`
	TriggerKind       TriggerKind `db:"trigger_kind" json:"trigger_kind"`
	Forced            bool        `db:"forced" json:"forced"`
	StartedAt         time.Time   `db:"started_at" json:"started_at"`
	CompletedAt       *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	ExecutionMs       *int64      `db:"execution_ms" json:"execution_ms,omitempty"`
	ProductsChecked   int         `db:"products_checked" json:"products_checked"`
	AlertsGenerated   int         `db:"alerts_generated" json:"alerts_generated"`
	AlertsBySeverity  CountMap    `db:"alerts_by_severity" json:"alerts_by_severity"`
	AlertsByDaysRange CountMap    `db:"alerts_by_days_range" json:"alerts_by_days_range"`
	ErrorMessage      *string     `db:"error_message" json:"error_message,omitempty"`
}

// Terminal reports whether the run has reached a final state.
func (r *ExpiryCheckRun) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// RunMetrics carries the figures recorded when a run completes.
type RunMetrics struct {
	ProductsChecked   int
	AlertsGenerated   int
	AlertsBySeverity  CountMap
	AlertsByDaysRange CountMap
	ExecutionMs       int64
}
