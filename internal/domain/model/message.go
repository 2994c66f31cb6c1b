package model

import (
	"encoding/json"
	"fmt"
)

type MessageType int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	InitialState MessageType = iota + 1 // initialState
	StateUpdate                         // stateUpdate
	Action                              // action
)

// ActionUpdatePrices asks every client to recompute prices now.
const ActionUpdatePrices = "UPDATE_PRICES"

func (t MessageType) String() string {
	switch t {
	case InitialState:
		return "initialState"
	case StateUpdate:
		return "stateUpdate"
	case Action:
		return "action"
	default:
		return fmt.Sprintf("MessageType(%d)", int16(t))
	}
}

// ParseMessageType maps the wire tag to a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	switch s {
	case "initialState":
		return InitialState, nil
	case "stateUpdate":
		return StateUpdate, nil
	case "action":
		return Action, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Envelope is the wire frame exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound is a classified client frame.
type Inbound struct {
	Type     MessageType
	Snapshot Snapshot // set for StateUpdate
	Action   string   // set for Action
	RawData  json.RawMessage
}
