package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoutingStateUpdated  = "pricing_sync.state.updated"
	RoutingActionRelayed = "pricing_sync.action.relayed"
)

// [GUARD] Ensure compliance with the Eventer interface.
var (
	_ Eventer    = (*RelayEvent)(nil)
	_ Exportable = (*RelayEvent)(nil)
)

// RelayEvent is the envelope for every frame the relay pushes to a connection.
//
// The payload is kept as raw JSON: accepted state and action strings are
// forwarded byte-for-byte, the relay never re-interprets them.
type RelayEvent struct {
	id         string
	kind       EventKind
	senderID   uuid.UUID // uuid.Nil for server-originated frames
	priority   EventPriority
	occurredAt int64
	payload    json.RawMessage
	cached     any // encoded wire frame, written once before fan-out
}

func (e *RelayEvent) GetID() string               { return e.id }
func (e *RelayEvent) GetKind() EventKind          { return e.kind }
func (e *RelayEvent) GetSenderID() uuid.UUID      { return e.senderID }
func (e *RelayEvent) GetPriority() EventPriority  { return e.priority }
func (e *RelayEvent) GetOccurredAt() int64        { return e.occurredAt }
func (e *RelayEvent) GetPayload() json.RawMessage { return e.payload }
func (e *RelayEvent) GetCached() any              { return e.cached }
func (e *RelayEvent) SetCached(v any)             { e.cached = v }

// GetRoutingKey is used for message broker exchange logic.
// Seeding frames are connection-local and never exported.
func (e *RelayEvent) GetRoutingKey() string {
	switch e.kind {
	case StateUpdated:
		return RoutingStateUpdated
	case ActionRelayed:
		return RoutingActionRelayed
	default:
		return ""
	}
}

func newRelayEvent(kind EventKind, senderID uuid.UUID, priority EventPriority, payload json.RawMessage) *RelayEvent {
	return &RelayEvent{
		id:         uuid.NewString(),
		kind:       kind,
		senderID:   senderID,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// NewInitialStateEvent seeds a freshly joined connection.
func NewInitialStateEvent(state json.RawMessage) *RelayEvent {
	return newRelayEvent(InitialState, uuid.Nil, PriorityHigh, state)
}

// NewStateUpdatedEvent carries a full replacement state from senderID.
func NewStateUpdatedEvent(senderID uuid.UUID, state json.RawMessage) *RelayEvent {
	return newRelayEvent(StateUpdated, senderID, PriorityHigh, state)
}

// NewActionEvent carries an opaque action string (already JSON-encoded).
func NewActionEvent(senderID uuid.UUID, action json.RawMessage) *RelayEvent {
	return newRelayEvent(ActionRelayed, senderID, PriorityNormal, action)
}
