package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventBatchCreated         = "inventory.batch.created"
	EventStockAdjusted        = "inventory.stock.adjusted"
	EventAlertGenerated       = "inventory.alert.generated"
	EventExpiryCheckCompleted = "inventory.expiry_check.completed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// BatchCreatedEvent is published when a new batch is recorded
type BatchCreatedEvent struct {
	BatchID     string `json:"batch_id"`
	ProductID   string `json:"product_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
	ExpiryDate  string `json:"expiry_date"`
}

// StockAdjustedEvent is published after every successful stock adjustment
type StockAdjustedEvent struct {
	BatchID           string `json:"batch_id"`
	ProductID         string `json:"product_id"`
	AdjustmentType    string `json:"adjustment_type"`
	Quantity          int    `json:"quantity"`
	ResultingQuantity int    `json:"resulting_quantity"`
	BatchStatus       string `json:"batch_status"`
	PerformedBy       string `json:"performed_by"`
	Reason            string `json:"reason"`
}

// AlertGeneratedEvent is published for each expiry alert created by a check run
type AlertGeneratedEvent struct {
	AlertID         string `json:"alert_id"`
	ProductID       string `json:"product_id"`
	BatchID         string `json:"batch_id"`
	Severity        string `json:"severity"`
	DaysRange       string `json:"days_range"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	Message         string `json:"message"`
}

// ExpiryCheckCompletedEvent is published when an expiry check run completes
type ExpiryCheckCompletedEvent struct {
	RunID            string         `json:"run_id"`
	CheckDate        string         `json:"check_date"`
	TriggerKind      string         `json:"trigger_kind"`
	ProductsChecked  int            `json:"products_checked"`
	AlertsGenerated  int            `json:"alerts_generated"`
	AlertsBySeverity map[string]int `json:"alerts_by_severity"`
	ExecutionMs      int64          `json:"execution_ms"`
}
