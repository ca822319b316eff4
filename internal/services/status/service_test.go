package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/RevoLand/amazon-client/internal/services/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type stubRequests []models.TrackingRequest

func (s stubRequests) Active() []models.TrackingRequest { return s }

type stubCaptchas []string

func (s stubCaptchas) Pending() []string { return s }

type stubJobs []*scheduler.JobStatus

func (s stubJobs) GetAllJobStatuses() []*scheduler.JobStatus { return s }

func (s stubJobs) IsRunning() bool { return len(s) > 0 }

type stubCookies struct {
	keys []string
	err  error
}

func (s stubCookies) ListDomainKeys(ctx context.Context) ([]string, error) { return s.keys, s.err }

func TestService_ReportsCountsAndState(t *testing.T) {
	requests := stubRequests{{ID: "1", URL: "https://www.amazon.de/dp/X", Kind: models.TrackingKindBegin}}
	jobs := stubJobs{{Name: "cookie-store-gc", Schedule: "@hourly"}}

	cookies := stubCookies{keys: []string{"amazon.de", "amazon.com.tr"}}
	service := NewService(requests, stubCaptchas{"https://www.amazon.de/dp/X"}, jobs, cookies, arbor.NewLogger())
	service.SetConnectionState(models.ConnectionStateConnecting)
	service.SetConnectionState(models.ConnectionStateOpen)

	report := service.GetStatus(context.Background())
	require.NotNil(t, report)
	assert.Equal(t, "open", report.Connection)
	assert.Equal(t, 0, report.Reconnects)
	assert.Len(t, report.ActiveRequests, 1)
	assert.Equal(t, []string{"https://www.amazon.de/dp/X"}, report.PendingCaptchas)
	assert.Len(t, report.Jobs, 1)
	assert.True(t, report.SchedulerActive)
	assert.Equal(t, []string{"amazon.de", "amazon.com.tr"}, report.CookieDomains)
	assert.True(t, service.IsConnected())
}

func TestService_CountsReconnects(t *testing.T) {
	service := NewService(stubRequests{}, stubCaptchas{}, stubJobs{}, stubCookies{}, arbor.NewLogger())

	for i := 0; i < 3; i++ {
		service.SetConnectionState(models.ConnectionStateConnecting)
		service.SetConnectionState(models.ConnectionStateOpen)
		service.SetConnectionState(models.ConnectionStateClosing)
		service.SetConnectionState(models.ConnectionStateClosed)
	}

	report := service.GetStatus(context.Background())
	assert.Equal(t, 2, report.Reconnects)
	assert.Equal(t, "closed", report.Connection)
	assert.False(t, service.IsConnected())
}

func TestService_EmptyListsAreNotNull(t *testing.T) {
	service := NewService(stubRequests(nil), stubCaptchas(nil), stubJobs(nil), stubCookies{}, arbor.NewLogger())

	report := service.GetStatus(context.Background())
	assert.NotNil(t, report.ActiveRequests)
	assert.NotNil(t, report.PendingCaptchas)
	assert.NotNil(t, report.Jobs)
	assert.NotNil(t, report.CookieDomains)
	assert.False(t, report.SchedulerActive)
}

func TestService_CookieStoreFailureStillReports(t *testing.T) {
	cookies := stubCookies{err: errors.New("store closed")}
	service := NewService(stubRequests{}, stubCaptchas{}, stubJobs{}, cookies, arbor.NewLogger())

	report := service.GetStatus(context.Background())
	require.NotNil(t, report)
	assert.Empty(t, report.CookieDomains)
	assert.NotNil(t, report.CookieDomains)
}

func TestService_ConnectionSinceTracksLastTransition(t *testing.T) {
	service := NewService(stubRequests{}, stubCaptchas{}, stubJobs{}, stubCookies{}, arbor.NewLogger())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return at }

	service.SetConnectionState(models.ConnectionStateConnecting)

	assert.Equal(t, at, service.GetStatus(context.Background()).ConnectionSince)
}
