package gateway

import (
	"errors"

	"github.com/danmuck/gatectl/internal/protocol"
)

var (
	ErrURLRequired   = errors.New("gateway: url required")
	ErrInvalidURL    = errors.New("gateway: invalid url")
	ErrTokenRequired = errors.New("gateway: token required")

	// ErrNotConnected rejects calls issued without an authenticated session.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrConnectTimeout fails a connect attempt that missed its deadline.
	ErrConnectTimeout = errors.New("gateway: connect timeout")

	// ErrConnectFailed wraps dial and transport errors during an attempt.
	ErrConnectFailed = errors.New("gateway: connect failed")

	// ErrAuthenticationFailed wraps the Gateway's handshake rejection message.
	ErrAuthenticationFailed = errors.New("gateway: authentication failed")

	// ErrRequestTimeout fails a call whose response never arrived; the
	// wrapped text names the method.
	ErrRequestTimeout = errors.New("gateway: request timeout")

	// ErrConnectionLost rejects in-flight work when the socket goes away.
	ErrConnectionLost = errors.New("gateway: connection lost")
)

// ServerError carries a Gateway-reported call failure. Message is the
// server's text verbatim.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string { return e.Message }

func serverErrorFrom(shape *protocol.ErrorShape) error {
	if shape == nil {
		return &ServerError{Message: "request failed"}
	}
	msg := shape.Message
	if msg == "" {
		msg = "request failed"
	}
	return &ServerError{Code: shape.Code, Message: msg}
}
