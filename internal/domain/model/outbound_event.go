package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboundEventer defines the contract for events that are being published
// from this service to the outside world (audit feed of accepted changes).
type OutboundEventer interface {
	GetRoutingKey() string
	ToJSON() ([]byte, error)
}

// OutboundEvent is a concrete implementation for publishing.
type OutboundEvent struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Kind       string          `json:"kind"`
	SenderID   uuid.UUID       `json:"sender_id"`
	Revision   uint64          `json:"revision,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	routingKey string
}

// NewOutboundEvent creates a fresh event ready for publishing.
func NewOutboundEvent(routingKey, kind string, senderID uuid.UUID, revision uint64, payload json.RawMessage) *OutboundEvent {
	return &OutboundEvent{
		ID:         uuid.NewString(),
		Source:     "pricing-sync-service",
		Kind:       kind,
		SenderID:   senderID,
		Revision:   revision,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
		routingKey: routingKey,
	}
}

func (e *OutboundEvent) GetRoutingKey() string   { return e.routingKey }
func (e *OutboundEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }
