package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// LegacyOpenPrefix marks the pre-JSON "open a URL" command some older web
// builds still send. It is recognised before any structured decode.
const LegacyOpenPrefix = "open::"

var (
	ErrMalformed      = errors.New("protocol: malformed message")
	ErrInvalidPayload = errors.New("protocol: invalid payload")
)

var emptyObject = json.RawMessage(`{}`)

// Message is the {type, payload} envelope used in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`

	// raw holds the full decoded envelope so that payload normalizers can
	// fall back to fields some web builds put next to "type".
	raw string
}

// Inbound is a decoded Web→Native string. Exactly one of OpenURL or
// Message.Type is set.
type Inbound struct {
	Message
	OpenURL string
}

func (in Inbound) IsLegacyOpen() bool {
	return in.OpenURL != ""
}

// Raw returns the full envelope the message was decoded from, or the
// re-encoded envelope for messages built in process.
func (m Message) Raw() string {
	if m.raw != "" {
		return m.raw
	}
	b, _ := json.Marshal(m)
	return string(b)
}

// Bind unmarshals the payload into v. A missing or null payload leaves v
// untouched.
func (m Message) Bind(v any) error {
	if len(m.Payload) == 0 || bytes.Equal(m.Payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, m.Type, err)
	}
	return nil
}

// New builds a message from a type and any JSON-marshalable payload.
func New(msgType string, payload any) (Message, error) {
	if msgType == "" {
		return Message{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}

	var body json.RawMessage
	switch p := payload.(type) {
	case nil:
		body = emptyObject
	case json.RawMessage:
		body = p
	case []byte:
		body = json.RawMessage(p)
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		body = b
	}
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		body = emptyObject
	}
	return Message{Type: msgType, Payload: body}, nil
}

// Encode serialises (type, payload) into the transport string form.
func Encode(msgType string, payload any) (string, error) {
	msg, err := New(msgType, payload)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return string(b), nil
}

// Decode parses a transport string. The legacy "open::<url>" form is
// returned as an Inbound with OpenURL set and no structured message.
func Decode(raw string) (Inbound, error) {
	if strings.HasPrefix(raw, LegacyOpenPrefix) {
		url := strings.TrimSpace(strings.TrimPrefix(raw, LegacyOpenPrefix))
		if url == "" {
			return Inbound{}, fmt.Errorf("%w: empty legacy open url", ErrMalformed)
		}
		return Inbound{OpenURL: url}, nil
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if len(msg.Payload) == 0 || bytes.Equal(msg.Payload, []byte("null")) {
		msg.Payload = emptyObject
	}
	msg.raw = raw
	return Inbound{Message: msg}, nil
}
