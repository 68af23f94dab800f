package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind classifies one inbound frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindResponse
	KindEvent
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Inbound is one classified frame received from the Gateway.
//
// KindResponse fills ID/OK and Payload or Err. KindEvent fills Event and
// Payload. KindNotification fills Method and Params, plus ID when the frame
// carried one; the client decides whether that id collides with an in-flight
// request. KindUnknown carries a well-formed frame the client has no handling
// for; callers log and drop it.
type Inbound struct {
	Kind    Kind
	ID      string
	OK      bool
	Payload json.RawMessage
	Err     *ErrorShape
	Event   string
	Method  string
	Params  json.RawMessage
}

type envelope struct {
	Type    string          `json:"type"`
	ID      FrameID         `json:"id"`
	OK      *bool           `json:"ok"`
	Payload json.RawMessage `json:"payload"`
	Error   *ErrorShape     `json:"error"`
	Event   string          `json:"event"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
}

// Decode classifies one inbound frame. Typed "res" frames win over the legacy
// untyped response shape, which wins over method-style notifications.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch env.Type {
	case FrameTypeResponse:
		if env.ID == "" {
			return Inbound{}, fmt.Errorf("%w: typed response", ErrMissingID)
		}
		return Inbound{
			Kind:    KindResponse,
			ID:      string(env.ID),
			OK:      env.OK != nil && *env.OK,
			Payload: env.Payload,
			Err:     env.Error,
		}, nil

	case FrameTypeEvent:
		if env.Event == "" {
			return Inbound{}, ErrMissingEvent
		}
		body := env.Payload
		if body == nil {
			body = env.Params
		}
		return Inbound{
			Kind:    KindEvent,
			Event:   env.Event,
			Payload: body,
		}, nil

	case "":
		if env.ID != "" && (env.Result != nil || env.Error != nil) {
			return Inbound{
				Kind:    KindResponse,
				ID:      string(env.ID),
				OK:      env.Error == nil,
				Payload: env.Result,
				Err:     env.Error,
			}, nil
		}
		if env.Method != "" {
			return Inbound{
				Kind:   KindNotification,
				ID:     string(env.ID),
				Method: env.Method,
				Params: env.Params,
			}, nil
		}
		return Inbound{Kind: KindUnknown}, nil

	default:
		return Inbound{Kind: KindUnknown}, nil
	}
}
