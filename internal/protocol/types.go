package protocol

import "encoding/json"

// ProtocolVersion is negotiated during the connect handshake.
const ProtocolVersion = 3

const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// EventChallenge opens the handshake; the Gateway sends it before any RPC is usable.
const EventChallenge = "connect.challenge"

// MethodConnect answers the challenge with credentials.
const MethodConnect = "connect"

// RequestFrame is a correlated client->Gateway call.
type RequestFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame resolves one RequestFrame by id.
type ResponseFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// EventFrame is pushed by the Gateway without a preceding request.
type EventFrame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// ErrorShape carries a Gateway-reported failure inside a response.
type ErrorShape struct {
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message"`
	Details      json.RawMessage `json:"details,omitempty"`
	Retryable    bool            `json:"retryable,omitempty"`
	RetryAfterMs int             `json:"retryAfterMs,omitempty"`
}

// ConnectParams is the authentication payload sent in answer to the challenge.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	Auth        AuthParams `json:"auth"`
}

// ClientInfo identifies the connecting client to the Gateway.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

type AuthParams struct {
	Token string `json:"token"`
}

// FrameID tolerates the string and numeric correlation ids seen on the wire.
// Numeric ids normalize to their decimal text.
type FrameID string

func (f *FrameID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FrameID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FrameID(n.String())
	return nil
}
