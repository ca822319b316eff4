package tracking

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RevoLand/amazon-client/internal/metrics"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// ErrDuplicateRequest is returned when an id is already active
var ErrDuplicateRequest = errors.New("tracking request already active")

// Registry is the bookkeeping of in-flight tracking requests.
// It takes no part in routing; it exists for observability.
type Registry struct {
	mu       sync.Mutex
	requests map[string]*models.TrackingRequest
	logger   arbor.ILogger
}

// NewRegistry creates an empty registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		requests: make(map[string]*models.TrackingRequest),
		logger:   logger,
	}
}

// Register adds an active request
func (r *Registry) Register(request *models.TrackingRequest) error {
	if request.ID == "" {
		return fmt.Errorf("tracking request id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[request.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, request.ID)
	}

	r.requests[request.ID] = request
	metrics.TrackingInFlight.Set(float64(len(r.requests)))

	r.logger.Debug().
		Str("request_id", request.ID).
		Str("url", request.URL).
		Int("active", len(r.requests)).
		Msg("Tracking request registered")

	return nil
}

// Unregister removes an active request. It reports false when the id was
// not active, so a second removal is a no-op.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, exists := r.requests[id]
	if !exists {
		r.logger.Warn().Str("request_id", id).Msg("Tracking request already removed")
		return false
	}

	delete(r.requests, id)
	metrics.TrackingInFlight.Set(float64(len(r.requests)))

	r.logger.Debug().
		Str("request_id", id).
		Str("elapsed", request.Age().String()).
		Int("active", len(r.requests)).
		Msg("Tracking request unregistered")

	return true
}

// MintID returns an id that is not active, for requests without a server id
func (r *Registry) MintID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		id := uuid.New().String()
		if _, exists := r.requests[id]; !exists {
			return id
		}
	}
}

// Count returns the number of active requests
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Active returns a copy of the active requests, oldest first
func (r *Registry) Active() []models.TrackingRequest {
	r.mu.Lock()
	result := make([]models.TrackingRequest, 0, len(r.requests))
	for _, request := range r.requests {
		result = append(result, *request)
	}
	r.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}
