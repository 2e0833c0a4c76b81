package coder

import "errors"

var (
	// ErrMalformedMessage wraps every decode failure.
	ErrMalformedMessage      = errors.New("malformed message")
	ErrMessageTruncated      = errors.New("message is truncated")
	ErrMessageInvalidVersion = errors.New("message has invalid version")
	ErrPayloadMarkerNoData   = errors.New("payload marker without payload")
	ErrInvalidType           = errors.New("invalid message type")
)
