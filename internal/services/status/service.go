package status

import (
	"context"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/RevoLand/amazon-client/internal/services/scheduler"
	"github.com/ternarybob/arbor"
)

// RequestLister exposes in-flight tracking requests
type RequestLister interface {
	Active() []models.TrackingRequest
}

// CaptchaLister exposes keys still waiting for an operator answer
type CaptchaLister interface {
	Pending() []string
}

// JobLister exposes scheduled maintenance jobs
type JobLister interface {
	GetAllJobStatuses() []*scheduler.JobStatus
	IsRunning() bool
}

// CookieDomainLister exposes the domain keys with a saved cookie jar
type CookieDomainLister interface {
	ListDomainKeys(ctx context.Context) ([]string, error)
}

// Report is the worker snapshot served on /status
type Report struct {
	Version         string                   `json:"version"`
	Connection      string                   `json:"connection"`
	ConnectionSince time.Time                `json:"connection_since"`
	Reconnects      int                      `json:"reconnects"`
	Uptime          string                   `json:"uptime"`
	ActiveRequests  []models.TrackingRequest `json:"active_requests"`
	PendingCaptchas []string                 `json:"pending_captchas"`
	Jobs            []*scheduler.JobStatus   `json:"jobs"`
	SchedulerActive bool                     `json:"scheduler_active"`
	CookieDomains   []string                 `json:"cookie_domains"`
	Goroutines      int64                    `json:"goroutines_spawned"`
	Timestamp       time.Time                `json:"timestamp"`
}

// Service tracks connection state and assembles status reports
type Service struct {
	mu        sync.RWMutex
	state     models.ConnectionState
	since     time.Time
	opened    int
	startedAt time.Time
	requests  RequestLister
	captchas  CaptchaLister
	jobs      JobLister
	cookies   CookieDomainLister
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates a new status service
func NewService(requests RequestLister, captchas CaptchaLister, jobs JobLister, cookies CookieDomainLister, logger arbor.ILogger) *Service {
	now := time.Now()
	return &Service{
		state:     models.ConnectionStateClosed,
		since:     now,
		startedAt: now,
		requests:  requests,
		captchas:  captchas,
		jobs:      jobs,
		cookies:   cookies,
		logger:    logger,
		now:       time.Now,
	}
}

// SetConnectionState records a connection transition. Wired as the connection manager's state callback.
func (s *Service) SetConnectionState(state models.ConnectionState) {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	s.since = s.now()
	if state == models.ConnectionStateOpen {
		s.opened++
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("old_state", oldState.String()).
		Str("new_state", state.String()).
		Msg("Connection state recorded")
}

// GetStatus returns the full worker status. A cookie store failure leaves CookieDomains empty.
func (s *Service) GetStatus(ctx context.Context) *Report {
	s.mu.RLock()
	state, since, opened := s.state, s.since, s.opened
	s.mu.RUnlock()

	reconnects := 0
	if opened > 1 {
		reconnects = opened - 1
	}

	now := s.now()
	report := &Report{
		Version:         common.GetVersion(),
		Connection:      state.String(),
		ConnectionSince: since,
		Reconnects:      reconnects,
		Uptime:          now.Sub(s.startedAt).Round(time.Second).String(),
		ActiveRequests:  s.requests.Active(),
		PendingCaptchas: s.captchas.Pending(),
		Jobs:            s.jobs.GetAllJobStatuses(),
		SchedulerActive: s.jobs.IsRunning(),
		Goroutines:      common.GetGoroutineCount(),
		Timestamp:       now,
	}

	domains, err := s.cookies.ListDomainKeys(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list cookie jar domains")
	}
	report.CookieDomains = domains

	if report.ActiveRequests == nil {
		report.ActiveRequests = []models.TrackingRequest{}
	}
	if report.PendingCaptchas == nil {
		report.PendingCaptchas = []string{}
	}
	if report.Jobs == nil {
		report.Jobs = []*scheduler.JobStatus{}
	}
	if report.CookieDomains == nil {
		report.CookieDomains = []string{}
	}

	return report
}

// IsConnected reports whether the control connection is open
func (s *Service) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == models.ConnectionStateOpen
}
