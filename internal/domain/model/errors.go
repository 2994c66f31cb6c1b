package model

import "errors"

// [PROTOCOL_ERRORS] Returned by the message router; none of them close the sender.
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownType       = errors.New("unknown message type")
	ErrClientOnlyType    = errors.New("message type is server-to-client only")
	ErrInvalidState      = errors.New("invalid shared state")
	ErrInvalidAction     = errors.New("invalid action payload")
)
