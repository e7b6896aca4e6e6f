package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// BatchHandler handles batch endpoints
type BatchHandler struct {
	stock  *service.StockService
	logger *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(stock *service.StockService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		stock:  stock,
		logger: log,
	}
}

type createBatchRequest struct {
	BatchNumber     string           `json:"batch_number" validate:"required"`
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
	ExpiryDate      string           `json:"expiry_date" validate:"required"`
	ManufactureDate *string          `json:"manufacture_date,omitempty"`
	SupplierRef     *string          `json:"supplier_ref,omitempty"`
	CostPerUnit     *decimal.Decimal `json:"cost_per_unit,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// Create registers a new batch for a product
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req createBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{
			"expiry_date": "must be a date in YYYY-MM-DD format",
		}))
		return
	}

	input := service.CreateBatchInput{
		ProductID:   productID,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		ExpiryDate:  expiry,
		SupplierRef: req.SupplierRef,
		CostPerUnit: req.CostPerUnit,
		Notes:       req.Notes,
	}
	if req.ManufactureDate != nil {
		manufacture, err := time.Parse(dateLayout, *req.ManufactureDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{
				"manufacture_date": "must be a date in YYYY-MM-DD format",
			}))
			return
		}
		input.ManufactureDate = &manufacture
	}

	batch, err := h.stock.CreateBatch(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// ListByProduct lists a product's batches in consumption priority order
func (h *BatchHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	batches, err := h.stock.ListBatches(r.Context(), productID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.stock.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

type adjustStockRequest struct {
	Type     string `json:"adjustment_type" validate:"required,oneof=add consume adjust quarantine"`
	Quantity *int   `json:"quantity,omitempty"`
	Reason   string `json:"reason" validate:"required"`
}

// Adjust applies a stock adjustment to a batch
func (h *BatchHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req adjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.stock.Adjust(r.Context(), batchID, service.AdjustInput{
		Type:     domain.AdjustmentType(req.Type),
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// ListAdjustments lists the adjustment ledger for a batch, oldest first
func (h *BatchHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	adjustments, err := h.stock.ListAdjustments(r.Context(), batchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, adjustments)
}
