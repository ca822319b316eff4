package models

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged over the control connection
const (
	MessageTypeBeginTracking          = "begin-tracking"
	MessageTypeCreateTracking         = "create-tracking"
	MessageTypeCaptchaAnswer          = "captcha-answer"
	MessageTypeBeginTrackingHandshake = "begin-tracking-handshake"
	MessageTypeTrackResult            = "track-result"
	MessageTypeCreateResult           = "create-result"
	MessageTypeCaptcha                = "captcha"
)

// Envelope is the tagged JSON frame used in both directions.
// Value and Data stay raw so numbers and strings round-trip untouched.
type Envelope struct {
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	ChannelID json.RawMessage `json:"channelId,omitempty"`
}

// NewEnvelope builds an outbound envelope, marshalling value and data
func NewEnvelope(messageType string, value interface{}, data interface{}) (*Envelope, error) {
	env := &Envelope{Type: messageType}

	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s value: %w", messageType, err)
		}
		env.Value = raw
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", messageType, err)
		}
		env.Data = raw
	}

	return env, nil
}

// WithChannel echoes the channel id of the request being answered
func (e *Envelope) WithChannel(channelID json.RawMessage) *Envelope {
	e.ChannelID = channelID
	return e
}

// ValueString decodes Value as a JSON string
func (e *Envelope) ValueString() (string, error) {
	return decodeString(e.Value, "value")
}

// DataString decodes Data as a JSON string
func (e *Envelope) DataString() (string, error) {
	return decodeString(e.Data, "data")
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%s is missing", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s is not a string: %w", field, err)
	}
	return s, nil
}

// BeginTrackingPayload is the JSON document carried (as a string) in begin-tracking's value.
// ProductID is kept raw so it is echoed byte for byte, whether the server sent a string or a number.
type BeginTrackingPayload struct {
	ProductID json.RawMessage `json:"productId" validate:"required"`
	URL       string          `json:"url" validate:"required,http_url"`
}

// HasProductID reports whether productId was present and not null
func (p *BeginTrackingPayload) HasProductID() bool {
	return len(p.ProductID) > 0 && string(p.ProductID) != "null"
}

// CreateTrackingPayload is the decoded form of a create-tracking request
type CreateTrackingPayload struct {
	URL string `validate:"required,http_url"`
}
