package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeRequest marshals one correlated request frame.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	if strings.TrimSpace(method) == "" {
		return nil, ErrMissingMethod
	}
	raw, err := marshalBody(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal params for %s: %w", method, err)
	}
	return json.Marshal(RequestFrame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	})
}

// EncodeOKResponse marshals a success response frame.
func EncodeOKResponse(id string, payload any) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	raw, err := marshalBody(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload: %w", err)
	}
	return json.Marshal(ResponseFrame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      true,
		Payload: raw,
	})
}

// EncodeErrorResponse marshals a failure response frame.
func EncodeErrorResponse(id, code, message string) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	return json.Marshal(ResponseFrame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    false,
		Error: &ErrorShape{Code: code, Message: message},
	})
}

// EncodeEvent marshals an unsolicited event frame.
func EncodeEvent(event string, payload any) ([]byte, error) {
	if strings.TrimSpace(event) == "" {
		return nil, ErrMissingEvent
	}
	raw, err := marshalBody(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal event payload: %w", err)
	}
	return json.Marshal(EventFrame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
	})
}

func marshalBody(v any) (json.RawMessage, error) {
	switch body := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return body, nil
	case []byte:
		return json.RawMessage(body), nil
	default:
		return json.Marshal(v)
	}
}
