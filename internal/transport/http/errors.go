package http

import "errors"

var (
	errInvalidPayload  = errors.New("invalid message payload")
	errUnsupportedType = errors.New("unsupported message type")
)
