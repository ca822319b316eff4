package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/RevoLand/amazon-client/internal/services/scheduler"
	"github.com/RevoLand/amazon-client/internal/services/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fixedConnection bool

func (c fixedConnection) IsConnected() bool { return bool(c) }

func TestHealthHandler_ReflectsConnection(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		code      int
		status    string
	}{
		{"connected", true, http.StatusOK, "ok"},
		{"disconnected", false, http.StatusServiceUnavailable, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAPIHandler(fixedConnection(tt.connected), arbor.NewLogger())
			rec := httptest.NewRecorder()

			handler.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestVersionHandler(t *testing.T) {
	handler := NewAPIHandler(fixedConnection(true), arbor.NewLogger())
	rec := httptest.NewRecorder()

	handler.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"version"`)
}

type activeRequests []models.TrackingRequest

func (a activeRequests) Active() []models.TrackingRequest { return a }

type pendingCaptchas []string

func (p pendingCaptchas) Pending() []string { return p }

type noJobs struct{}

func (noJobs) GetAllJobStatuses() []*scheduler.JobStatus { return nil }

func (noJobs) IsRunning() bool { return false }

type cookieDomains []string

func (c cookieDomains) ListDomainKeys(ctx context.Context) ([]string, error) { return c, nil }

func TestStatusHandler_ServesReport(t *testing.T) {
	logger := arbor.NewLogger()
	service := status.NewService(
		activeRequests{{ID: "42", URL: "https://www.amazon.it/dp/Y", Kind: models.TrackingKindCreate}},
		pendingCaptchas{},
		noJobs{},
		cookieDomains{"amazon.it"},
		logger,
	)
	service.SetConnectionState(models.ConnectionStateConnecting)

	rec := httptest.NewRecorder()
	NewStatusHandler(service, logger).GetStatusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var report status.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "connecting", report.Connection)
	require.Len(t, report.ActiveRequests, 1)
	assert.Equal(t, "42", report.ActiveRequests[0].ID)
	assert.Empty(t, report.PendingCaptchas)
	assert.Empty(t, report.Jobs)
	assert.Equal(t, []string{"amazon.it"}, report.CookieDomains)
}
