package wsmarshaller

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

// UnmarshalInbound parses and validates a client frame.
// Every error wraps one of the model protocol sentinels.
func UnmarshalInbound(raw []byte) (model.Inbound, error) {
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.Inbound{}, fmt.Errorf("%w: %v", model.ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return model.Inbound{}, fmt.Errorf("%w: missing type", model.ErrMalformedEnvelope)
	}

	mt, err := model.ParseMessageType(env.Type)
	if err != nil {
		return model.Inbound{}, err
	}

	in := model.Inbound{Type: mt, RawData: env.Data}

	switch mt {
	case model.InitialState:
		return model.Inbound{}, fmt.Errorf("%w: %s", model.ErrClientOnlyType, env.Type)

	case model.StateUpdate:
		snap, err := model.DecodeSharedState(env.Data)
		if err != nil {
			return model.Inbound{}, err
		}
		in.Snapshot = snap

	case model.Action:
		action, compact, err := decodeAction(env.Data)
		if err != nil {
			return model.Inbound{}, err
		}
		in.Action = action
		in.RawData = compact
	}

	return in, nil
}

// decodeAction accepts only a JSON string and returns it with its compact encoding.
func decodeAction(data json.RawMessage) (string, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", nil, fmt.Errorf("%w: data must be a string", model.ErrInvalidAction)
	}

	var action string
	if err := json.Unmarshal(trimmed, &action); err != nil {
		return "", nil, fmt.Errorf("%w: %v", model.ErrInvalidAction, err)
	}

	return action, json.RawMessage(trimmed), nil
}
