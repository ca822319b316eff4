package handlers

import (
	"net/http"

	"github.com/RevoLand/amazon-client/internal/services/status"
	"github.com/ternarybob/arbor"
)

// StatusHandler handles HTTP requests for worker status
type StatusHandler struct {
	statusService *status.Service
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService *status.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.statusService.GetStatus(r.Context()))
}
