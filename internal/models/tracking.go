package models

import (
	"encoding/json"
	"time"
)

// TrackingKind identifies which request produced a tracking entry
type TrackingKind string

const (
	TrackingKindBegin  TrackingKind = "begin"
	TrackingKindCreate TrackingKind = "create"
)

// TrackingRequest is one in-flight scrape job
type TrackingRequest struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Kind      TrackingKind    `json:"kind"`
	ProductID json.RawMessage `json:"product_id,omitempty"` // Server id echoed in begin-tracking replies
	ChannelID json.RawMessage `json:"channel_id,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

// Age returns how long the request has been in flight
func (r *TrackingRequest) Age() time.Duration {
	return time.Since(r.StartedAt)
}
