// Package protocol owns the Gateway wire contract.
//
// Ownership boundary:
// - frame envelopes and type tags
// - inbound classification (typed, legacy, notification)
// - authentication handshake payload shapes
package protocol
