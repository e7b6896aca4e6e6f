package handler

import (
	"net/http"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// ExpiryHandler handles expiry check endpoints
type ExpiryHandler struct {
	checks *service.ExpiryCheckService
	logger *logger.Logger
}

// NewExpiryHandler creates a new expiry handler
func NewExpiryHandler(checks *service.ExpiryCheckService, log *logger.Logger) *ExpiryHandler {
	return &ExpiryHandler{
		checks: checks,
		logger: log,
	}
}

// Trigger runs an expiry check on demand. With force=true a new run is
// recorded even when the date already has a completed one.
func (h *ExpiryHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	result, err := h.checks.Run(r.Context(), domain.TriggerManual, force)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if result.AlreadyCompleted {
		httputil.JSON(w, http.StatusOK, result)
		return
	}

	httputil.Created(w, result)
}

// History lists recent expiry check runs, most recent first
func (h *ExpiryHandler) History(w http.ResponseWriter, r *http.Request) {
	runs, err := h.checks.History(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, runs)
}

// Dashboard returns aggregate figures over the recent run history
func (h *ExpiryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.checks.GetDashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dash)
}
