package captcha

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/metrics"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/ternarybob/arbor"
)

// ErrAnswerTimeout is returned when no operator answer arrives within the configured bound
var ErrAnswerTimeout = errors.New("timed out waiting for captcha answer")

// Relay forwards challenge images to the operator over the control
// connection and hands the answers back to the waiting scrape.
//
// One challenge per key is in flight at a time. A second request for the
// same key waits until the first settles and then issues its own challenge,
// since each page renders its own image. Answers are consumed exactly once.
type Relay struct {
	sender  interfaces.MessageSender
	logger  arbor.ILogger
	timeout time.Duration

	mu       sync.Mutex
	answers  map[string]string
	notify   map[string]chan struct{} // wakes the in-flight waiter for a key
	inflight map[string]chan struct{} // closed when the in-flight request for a key settles
}

// NewRelay creates a relay. A zero timeout waits for answers indefinitely.
func NewRelay(sender interfaces.MessageSender, timeout time.Duration, logger arbor.ILogger) *Relay {
	return &Relay{
		sender:   sender,
		logger:   logger,
		timeout:  timeout,
		answers:  make(map[string]string),
		notify:   make(map[string]chan struct{}),
		inflight: make(map[string]chan struct{}),
	}
}

var _ interfaces.CaptchaSolver = (*Relay)(nil)

// RequestAnswer returns the operator's text for the challenge on key
func (r *Relay) RequestAnswer(ctx context.Context, key string, imageRef string) (string, error) {
	for {
		r.mu.Lock()
		if done, busy := r.inflight[key]; busy {
			r.mu.Unlock()

			select {
			case <-done:
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		// An answer that arrived while nobody was waiting is used once
		if answer, ok := r.takeLocked(key); ok {
			r.mu.Unlock()
			r.logger.Debug().Str("key", key).Msg("Using stored captcha answer")
			return answer, nil
		}

		done := make(chan struct{})
		notify := make(chan struct{}, 1)
		r.inflight[key] = done
		r.notify[key] = notify
		r.mu.Unlock()

		return r.await(ctx, key, imageRef, done, notify)
	}
}

func (r *Relay) await(ctx context.Context, key, imageRef string, done, notify chan struct{}) (string, error) {
	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		delete(r.notify, key)
		r.mu.Unlock()
		close(done)
	}()

	envelope, err := models.NewEnvelope(models.MessageTypeCaptcha, imageRef, key)
	if err != nil {
		return "", err
	}
	if err := r.sender.Send(envelope); err != nil {
		metrics.CaptchaChallenges.WithLabelValues("send_failed").Inc()
		return "", fmt.Errorf("failed to send captcha challenge: %w", err)
	}

	r.logger.Info().
		Str("key", key).
		Str("image", imageRef).
		Msg("Captcha challenge sent to operator, waiting for answer")

	var expired <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-notify:
			r.mu.Lock()
			answer, ok := r.takeLocked(key)
			r.mu.Unlock()
			if ok {
				metrics.CaptchaChallenges.WithLabelValues("answered").Inc()
				return answer, nil
			}
		case <-expired:
			metrics.CaptchaChallenges.WithLabelValues("timeout").Inc()
			r.logger.Warn().Str("key", key).Str("timeout", r.timeout.String()).Msg("No captcha answer received")
			return "", ErrAnswerTimeout
		case <-ctx.Done():
			metrics.CaptchaChallenges.WithLabelValues("cancelled").Inc()
			return "", ctx.Err()
		}
	}
}

// takeLocked removes and returns the stored answer for key. r.mu must be held.
func (r *Relay) takeLocked(key string) (string, bool) {
	answer, ok := r.answers[key]
	if ok {
		delete(r.answers, key)
	}
	return answer, ok
}

// Deliver stores an operator answer and wakes the waiter for key, if any
func (r *Relay) Deliver(key string, answer string) {
	r.mu.Lock()
	r.answers[key] = answer
	notify := r.notify[key]
	r.mu.Unlock()

	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}

	r.logger.Debug().Str("key", key).Bool("waiting", notify != nil).Msg("Captcha answer received")
}

// HandleAnswer is the control-connection handler for captcha-answer messages
func (r *Relay) HandleAnswer(envelope *models.Envelope) {
	answer, err := envelope.ValueString()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Dropping malformed captcha-answer message")
		return
	}
	key, err := envelope.DataString()
	if err != nil {
		r.logger.Warn().Err(err).Msg("Dropping captcha-answer message without a key")
		return
	}
	if key == "" {
		r.logger.Warn().Msg("Dropping captcha-answer message with an empty key")
		return
	}

	r.Deliver(key, answer)
}

// Pending returns the keys currently waiting for an operator answer
func (r *Relay) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.inflight))
	for key := range r.inflight {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
