package ocpp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the leading element of every OCPP-J frame.
type MessageType int

// MessageType values as per OCPP-J.
const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCall:
		return "Call"
	case MessageTypeCallResult:
		return "CallResult"
	case MessageTypeCallError:
		return "CallError"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Decode errors.
var (
	ErrMalformedEnvelope  = errors.New("ocpp: malformed envelope")
	ErrUnknownMessageType = errors.New("ocpp: unknown message type")
)

// Message is a decoded frame. Which fields are meaningful depends on Type:
// Call uses Action and Payload, CallResult uses Payload, CallError uses the
// Error* fields.
type Message struct {
	Type             MessageType
	UniqueID         string
	Action           string
	Payload          json.RawMessage
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// NewCall builds a Call frame; payload is marshalled with null members removed.
func NewCall(uniqueID, action string, payload interface{}) (*Message, error) {
	body, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeCall, UniqueID: uniqueID, Action: action, Payload: body}, nil
}

// NewCallResult builds a CallResult frame.
func NewCallResult(uniqueID string, payload interface{}) (*Message, error) {
	body, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeCallResult, UniqueID: uniqueID, Payload: body}, nil
}

// NewCallError builds a CallError frame with empty details.
func NewCallError(uniqueID string, code ErrorCode, description string) *Message {
	return &Message{
		Type:             MessageTypeCallError,
		UniqueID:         uniqueID,
		ErrorCode:        code,
		ErrorDescription: description,
		ErrorDetails:     json.RawMessage("{}"),
	}
}

// Decode parses a raw frame.
func Decode(data []byte) (*Message, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(array) < 3 {
		return nil, fmt.Errorf("%w: %d elements", ErrMalformedEnvelope, len(array))
	}

	var msgType int
	if err := json.Unmarshal(array[0], &msgType); err != nil {
		return nil, fmt.Errorf("%w: message type: %v", ErrMalformedEnvelope, err)
	}

	msg := &Message{Type: MessageType(msgType)}
	switch msg.Type {
	case MessageTypeCall, MessageTypeCallResult, MessageTypeCallError:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, msgType)
	}
	if err := unmarshalString(array[1], &msg.UniqueID, "unique id"); err != nil {
		return nil, err
	}

	switch msg.Type {
	case MessageTypeCall:
		if len(array) != 4 {
			return nil, fmt.Errorf("%w: Call needs 4 elements, got %d", ErrMalformedEnvelope, len(array))
		}
		if err := unmarshalString(array[2], &msg.Action, "action"); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, fmt.Errorf("%w: empty action", ErrMalformedEnvelope)
		}
		if !isObject(array[3]) {
			return nil, fmt.Errorf("%w: Call payload is not an object", ErrMalformedEnvelope)
		}
		msg.Payload = array[3]
	case MessageTypeCallResult:
		if len(array) != 3 {
			return nil, fmt.Errorf("%w: CallResult needs 3 elements, got %d", ErrMalformedEnvelope, len(array))
		}
		if !isObject(array[2]) {
			return nil, fmt.Errorf("%w: CallResult payload is not an object", ErrMalformedEnvelope)
		}
		msg.Payload = array[2]
	case MessageTypeCallError:
		if len(array) != 5 {
			return nil, fmt.Errorf("%w: CallError needs 5 elements, got %d", ErrMalformedEnvelope, len(array))
		}
		var code string
		if err := unmarshalString(array[2], &code, "error code"); err != nil {
			return nil, err
		}
		msg.ErrorCode = ErrorCode(code)
		if err := unmarshalString(array[3], &msg.ErrorDescription, "error description"); err != nil {
			return nil, err
		}
		if !isObject(array[4]) {
			return nil, fmt.Errorf("%w: CallError details is not an object", ErrMalformedEnvelope)
		}
		msg.ErrorDetails = array[4]
	}

	return msg, nil
}

// Encode serializes msg to its 3, 4 or 5 element array form.
func Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("ocpp: nil message")
	}

	var frame []interface{}
	switch msg.Type {
	case MessageTypeCall:
		if msg.Action == "" {
			return nil, errors.New("ocpp: call without action")
		}
		frame = []interface{}{int(msg.Type), msg.UniqueID, msg.Action, objectOrEmpty(msg.Payload)}
	case MessageTypeCallResult:
		frame = []interface{}{int(msg.Type), msg.UniqueID, objectOrEmpty(msg.Payload)}
	case MessageTypeCallError:
		code := msg.ErrorCode
		if code == "" {
			code = ErrorCodeGenericError
		}
		frame = []interface{}{int(msg.Type), msg.UniqueID, string(code), msg.ErrorDescription, objectOrEmpty(msg.ErrorDetails)}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, int(msg.Type))
	}
	return json.Marshal(frame)
}

// MarshalPayload converts a payload value to JSON, dropping every member whose
// value is null so absent optionals never reach the wire.
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocpp: encode payload: %w", err)
	}
	return removeNulls(body)
}

// DecodePayload unmarshals a Call or CallResult payload into T.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var target T
	if len(payload) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}

func removeNulls(body []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("ocpp: encode payload: %w", err)
	}
	if tree == nil {
		return json.RawMessage("{}"), nil
	}
	out, err := json.Marshal(pruneNulls(tree))
	if err != nil {
		return nil, fmt.Errorf("ocpp: encode payload: %w", err)
	}
	return out, nil
}

func pruneNulls(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			if child == nil {
				delete(val, k)
				continue
			}
			val[k] = pruneNulls(child)
		}
		return val
	case []interface{}:
		for i, child := range val {
			val[i] = pruneNulls(child)
		}
		return val
	default:
		return v
	}
}

func unmarshalString(raw json.RawMessage, dst *string, field string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return fmt.Errorf("%w: %s is not a string", ErrMalformedEnvelope, field)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEnvelope, field, err)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func objectOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
