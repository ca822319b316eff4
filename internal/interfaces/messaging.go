package interfaces

import (
	"errors"

	"github.com/RevoLand/amazon-client/internal/models"
)

// ErrNotConnected is returned by Send while the control connection is not open
var ErrNotConnected = errors.New("control connection is not open")

// MessageSender transmits envelopes to the coordinating server
type MessageSender interface {
	Send(envelope *models.Envelope) error
}

// MessageHandler processes one inbound envelope. Handlers run on the
// connection's read loop and must not block.
type MessageHandler func(envelope *models.Envelope)
