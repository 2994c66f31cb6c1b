package event

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EventKind int16

const (
	InitialState  EventKind = iota + 1 // [SEED]
	StateUpdated                       // [REPLACEMENT]
	ActionRelayed                      // [FIRE_AND_FORGET]
)

// WireType returns the envelope tag the kind is delivered under.
func (k EventKind) WireType() string {
	switch k {
	case InitialState:
		return "initialState"
	case StateUpdated:
		return "stateUpdate"
	case ActionRelayed:
		return "action"
	default:
		return ""
	}
}

func (k EventKind) String() string {
	if t := k.WireType(); t != "" {
		return t
	}
	return "unknown"
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all frames flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetSenderID() uuid.UUID
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() json.RawMessage
	GetCached() any
	SetCached(any)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// We return the key only if the event is ready to be exported.
	// If it returns an empty string, the exporter will skip publishing.
	GetRoutingKey() string
}
