package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType is returned by Decode for a JSON object without a type.
var ErrMissingType = errors.New("message has no type")

// Envelope is a decoded inbound message: its declared type plus the whole
// message as received.
type Envelope struct {
	Type string
	Raw  json.RawMessage
}

// Encode serializes an outbound message.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode parses an inbound frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, fmt.Errorf("decode message: %w", err)
	}
	if head.Type == "" {
		return Envelope{}, ErrMissingType
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Envelope{Type: head.Type, Raw: raw}, nil
}

// Into unmarshals the whole message into v.
func (e Envelope) Into(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}

// As extracts a typed message from a notification payload carrying an
// Envelope.
func As[T any](payload any) (T, error) {
	var v T
	env, ok := payload.(Envelope)
	if !ok {
		return v, fmt.Errorf("payload is %T, not an envelope", payload)
	}
	err := env.Into(&v)
	return v, err
}
