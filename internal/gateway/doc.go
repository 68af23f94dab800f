// Package gateway implements the Gateway session client.
//
// Ownership boundary:
// - session state machine and shared connect attempts
// - challenge handshake and credential presentation
// - pending-call correlation with per-call deadlines
// - notification fan-out to subscribers
// - reconnect supervision after authenticated-session loss
//
// Everything above the wire codec lives here; frame shapes belong to
// internal/protocol.
package gateway
