package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Options bound how many browser sessions the service runs
type Options struct {
	MaxSessions int           // 0 = unbounded
	LaunchRate  time.Duration // Minimum spacing between scrape starts, 0 = unlimited
}

// Service turns job messages into scrapes and reports results upstream
type Service struct {
	ctx      context.Context
	registry *Registry
	scraper  interfaces.ProductScraper
	sender   interfaces.MessageSender
	logger   arbor.ILogger
	validate *validator.Validate
	sessions *semaphore.Weighted
	launches *rate.Limiter
	wg       sync.WaitGroup
}

// NewService creates the tracking service. Scrapes run under ctx and are
// not cancelled when the control connection drops.
func NewService(ctx context.Context, registry *Registry, scraper interfaces.ProductScraper, sender interfaces.MessageSender, options Options, logger arbor.ILogger) *Service {
	s := &Service{
		ctx:      ctx,
		registry: registry,
		scraper:  scraper,
		sender:   sender,
		logger:   logger,
		validate: validator.New(),
	}

	if options.MaxSessions > 0 {
		s.sessions = semaphore.NewWeighted(int64(options.MaxSessions))
	}
	if options.LaunchRate > 0 {
		s.launches = rate.NewLimiter(rate.Every(options.LaunchRate), 1)
	}

	return s
}

// HandleBeginTracking handles begin-tracking: handshake first, then scrape and report track-result
func (s *Service) HandleBeginTracking(envelope *models.Envelope) {
	raw, err := envelope.ValueString()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Dropping malformed begin-tracking message")
		return
	}

	var payload models.BeginTrackingPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.Warn().Err(err).Msg("Dropping begin-tracking message with undecodable payload")
		return
	}
	if err := s.validate.Struct(&payload); err != nil {
		s.logger.Warn().Err(err).Msg("Dropping invalid begin-tracking payload")
		return
	}
	if !payload.HasProductID() {
		s.logger.Warn().Str("url", payload.URL).Msg("Dropping begin-tracking payload with a null productId")
		return
	}
	productID := string(payload.ProductID)

	// Registered under a local id: the same product may be tracked again while a scrape is running
	request := &models.TrackingRequest{
		ID:        s.registry.MintID(),
		URL:       payload.URL,
		Kind:      models.TrackingKindBegin,
		ProductID: payload.ProductID,
		StartedAt: time.Now(),
	}
	if err := s.registry.Register(request); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("Rejecting begin-tracking")
		return
	}

	handshake, err := models.NewEnvelope(models.MessageTypeBeginTrackingHandshake, payload.ProductID, nil)
	if err == nil {
		err = s.sender.Send(handshake)
	}
	if err != nil {
		// Without a handshake the server would see an unannounced result
		s.registry.Unregister(request.ID)
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("Failed to send begin-tracking handshake")
		return
	}

	s.start(request, func(data string) (*models.Envelope, error) {
		return models.NewEnvelope(models.MessageTypeTrackResult, payload.ProductID, data)
	})
}

// HandleCreateTracking handles create-tracking: scrape and report create-result on the caller's channel
func (s *Service) HandleCreateTracking(envelope *models.Envelope) {
	url, err := envelope.ValueString()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Dropping malformed create-tracking message")
		return
	}

	payload := models.CreateTrackingPayload{URL: url}
	if err := s.validate.Struct(&payload); err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Dropping invalid create-tracking payload")
		return
	}

	request := &models.TrackingRequest{
		ID:        s.registry.MintID(),
		URL:       url,
		Kind:      models.TrackingKindCreate,
		ChannelID: envelope.ChannelID,
		StartedAt: time.Now(),
	}
	if err := s.registry.Register(request); err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("Rejecting create-tracking")
		return
	}

	s.start(request, func(data string) (*models.Envelope, error) {
		env, err := models.NewEnvelope(models.MessageTypeCreateResult, url, data)
		if err != nil {
			return nil, err
		}
		return env.WithChannel(request.ChannelID), nil
	})
}

type resultBuilder func(data string) (*models.Envelope, error)

// start runs the scrape for a registered request in its own goroutine.
// The registry entry is removed exactly once, whatever the outcome.
func (s *Service) start(request *models.TrackingRequest, build resultBuilder) {
	s.wg.Add(1)
	common.SafeGo(s.logger, "tracking-"+request.ID, func() {
		defer s.wg.Done()
		defer s.registry.Unregister(request.ID)

		s.run(request, build)
	})
}

func (s *Service) run(request *models.TrackingRequest, build resultBuilder) {
	logger := s.logger.WithCorrelationId(request.ID)

	if s.sessions != nil {
		if err := s.sessions.Acquire(s.ctx, 1); err != nil {
			logger.Warn().Err(err).Str("url", request.URL).Msg("Scrape abandoned while waiting for a session slot")
			return
		}
		defer s.sessions.Release(1)
	}
	if s.launches != nil {
		if err := s.launches.Wait(s.ctx); err != nil {
			logger.Warn().Err(err).Str("url", request.URL).Msg("Scrape abandoned while waiting to launch")
			return
		}
	}

	snapshot, err := s.scraper.Scrape(s.ctx, request.URL)
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidSnapshot) {
			logger.Warn().Str("url", request.URL).Msg("Extraction invalid, no result sent")
		} else {
			logger.Error().Err(err).Str("url", request.URL).Msg("Scrape failed, no result sent")
		}
		return
	}

	if err := s.report(snapshot, build); err != nil {
		// Best effort: a result produced while disconnected is lost
		logger.Warn().Err(err).Str("url", request.URL).Msg("Failed to deliver result")
		return
	}

	logger.Info().
		Str("url", request.URL).
		Str("kind", string(request.Kind)).
		Str("elapsed", request.Age().String()).
		Msg("Result delivered")
}

func (s *Service) report(snapshot *models.ProductSnapshot, build resultBuilder) error {
	data, err := snapshot.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	envelope, err := build(data)
	if err != nil {
		return err
	}

	return s.sender.Send(envelope)
}

// Wait blocks until every started scrape has settled
func (s *Service) Wait() {
	s.wg.Wait()
}
