package handlers

import (
	"net/http"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/ternarybob/arbor"
)

// ConnectionChecker reports whether the control connection is up
type ConnectionChecker interface {
	IsConnected() bool
}

type APIHandler struct {
	connection ConnectionChecker
	logger     arbor.ILogger
}

func NewAPIHandler(connection ConnectionChecker, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		connection: connection,
		logger:     logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns 200 while the control connection is open, 503 otherwise
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !h.connection.IsConnected() {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "disconnected",
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
