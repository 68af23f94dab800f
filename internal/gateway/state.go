package gateway

import "fmt"

// SessionState tracks the authentication phase of the current socket. It is
// deliberately distinct from raw socket status: an open socket that has not
// completed the challenge handshake is not a usable session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	// StateSocketOpen means the transport is up but the handshake has not
	// finished.
	StateSocketOpen
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSocketOpen:
		return "socket_open"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
