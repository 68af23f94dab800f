package protocol

import "errors"

var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrMissingID      = errors.New("protocol: missing frame id")
	ErrMissingMethod  = errors.New("protocol: missing method")
	ErrMissingEvent   = errors.New("protocol: missing event name")
)
