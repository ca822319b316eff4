package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/interfaces"
	"github.com/RevoLand/amazon-client/internal/metrics"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

const writeWait = 10 * time.Second

// Options configures the control connection
type Options struct {
	Address           string
	Secret            string
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
}

// OptionsFromConfig maps the [connection] config section
func OptionsFromConfig(config *common.ConnectionConfig) Options {
	return Options{
		Address:           config.Address,
		Secret:            config.Secret,
		HeartbeatInterval: config.HeartbeatInterval.Std(),
		HeartbeatGrace:    config.HeartbeatGrace.Std(),
		ReconnectDelay:    config.ReconnectDelay.Std(),
		HandshakeTimeout:  config.HandshakeTimeout.Std(),
	}
}

// Manager owns the control connection to the coordinating server.
// It reconnects forever with a fixed backoff and dispatches inbound
// envelopes to handlers registered by message type.
type Manager struct {
	options Options
	logger  arbor.ILogger
	dialer  *websocket.Dialer

	mu      sync.RWMutex
	state   models.ConnectionState
	conn    *websocket.Conn
	changed chan struct{} // closed and replaced on every state change

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string]interfaces.MessageHandler

	onStateChange func(models.ConnectionState)
}

var _ interfaces.MessageSender = (*Manager)(nil)

// NewManager creates a connection manager in the Closed state
func NewManager(options Options, logger arbor.ILogger) *Manager {
	return &Manager{
		options: options,
		logger:  logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: options.HandshakeTimeout,
		},
		state:    models.ConnectionStateClosed,
		changed:  make(chan struct{}),
		handlers: make(map[string]interfaces.MessageHandler),
	}
}

// Handle registers the handler for an inbound message type.
// Handlers run on the read loop and must not block.
func (m *Manager) Handle(messageType string, handler interfaces.MessageHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[messageType] = handler
}

// OnStateChange sets a callback invoked after every state transition
func (m *Manager) OnStateChange(fn func(models.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// State returns the current connection state
func (m *Manager) State() models.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// WaitOpen blocks until the connection is Open or ctx is done
func (m *Manager) WaitOpen(ctx context.Context) error {
	for {
		m.mu.RLock()
		state, changed := m.state, m.changed
		m.mu.RUnlock()

		if state == models.ConnectionStateOpen {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run drives the connection lifecycle until ctx is cancelled
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info().
		Str("address", m.options.Address).
		Str("reconnect_delay", m.options.ReconnectDelay.String()).
		Msg("Connection manager starting")

	for {
		m.setState(models.ConnectionStateConnecting)

		conn, err := m.dial(ctx)
		if err != nil {
			m.setState(models.ConnectionStateClosed)
			metrics.ConnectionAttempts.WithLabelValues("failure").Inc()
			if ctx.Err() != nil {
				return nil
			}
			m.logger.Warn().Err(err).Str("address", m.options.Address).Msg("Failed to connect to server")
		} else {
			metrics.ConnectionAttempts.WithLabelValues("success").Inc()
			m.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
		}

		m.logger.Info().
			Str("delay", m.options.ReconnectDelay.String()).
			Msg("Reconnecting after backoff")

		timer := time.NewTimer(m.options.ReconnectDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if m.options.Secret != "" {
		header.Set("Authorization", m.options.Secret)
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.options.Address, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

// serve runs one Open period: heartbeat supervision plus the read loop.
// It returns after the connection has moved back to Closed.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) {
	deadline := m.options.HeartbeatInterval + m.options.HeartbeatGrace
	heartbeat := time.AfterFunc(deadline, func() {
		m.logger.Warn().
			Str("deadline", deadline.String()).
			Msg("No heartbeat from server, closing connection")
		conn.Close()
	})

	conn.SetPingHandler(func(appData string) error {
		heartbeat.Reset(deadline)

		m.writeMu.Lock()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		m.writeMu.Unlock()

		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			m.logger.Debug().Err(err).Msg("Failed to answer ping")
		}
		return nil
	})

	stopOnCancel := context.AfterFunc(ctx, func() {
		m.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		m.writeMu.Unlock()
		conn.Close()
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(models.ConnectionStateOpen)
	m.logger.Info().Str("address", m.options.Address).Msg("Connected to server")

	err := m.readLoop(conn)

	m.setState(models.ConnectionStateClosing)
	heartbeat.Stop()
	stopOnCancel()

	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
	conn.Close()
	m.setState(models.ConnectionStateClosed)

	if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Info().Err(err).Msg("Connection to server closed")
	} else {
		m.logger.Warn().Err(err).Msg("Connection to server lost")
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.dispatch(data)
	}
}

func (m *Manager) dispatch(data []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping undecodable message")
		return
	}
	if envelope.Type == "" {
		m.logger.Warn().Int("bytes", len(data)).Msg("Dropping message without type")
		return
	}

	m.handlersMu.RLock()
	handler, ok := m.handlers[envelope.Type]
	m.handlersMu.RUnlock()

	if !ok {
		metrics.MessagesTotal.WithLabelValues("inbound", metrics.UnknownLabel).Inc()
		m.logger.Debug().Str("type", envelope.Type).Msg("No handler for message type")
		return
	}
	metrics.MessagesTotal.WithLabelValues("inbound", envelope.Type).Inc()

	defer common.Recover(m.logger, "dispatch-"+envelope.Type)
	handler(&envelope)
}

// Send writes an envelope to the server. It fails with ErrNotConnected
// unless the connection is Open; delivery is best effort.
func (m *Manager) Send(envelope *models.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", envelope.Type, err)
	}

	m.mu.RLock()
	conn, state := m.conn, m.state
	m.mu.RUnlock()

	if state != models.ConnectionStateOpen || conn == nil {
		return interfaces.ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write %s message: %w", envelope.Type, err)
	}

	metrics.MessagesTotal.WithLabelValues("outbound", envelope.Type).Inc()
	return nil
}

func (m *Manager) setState(next models.ConnectionState) {
	m.mu.Lock()
	previous := m.state
	if previous == next {
		m.mu.Unlock()
		return
	}
	if !previous.CanTransitionTo(next) {
		m.logger.Warn().
			Str("from", previous.String()).
			Str("to", next.String()).
			Msg("Unexpected connection state transition")
	}
	m.state = next
	close(m.changed)
	m.changed = make(chan struct{})
	callback := m.onStateChange
	m.mu.Unlock()

	metrics.ConnectionState.Set(float64(next))
	m.logger.Debug().Str("from", previous.String()).Str("to", next.String()).Msg("Connection state changed")

	if callback != nil {
		callback(next)
	}
}
