package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viant/jsonrpc"
)

// Kind discriminates JSON-RPC message variants
type Kind int

const (
	KindRequest Kind = iota + 1
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	}
	return "unknown"
}

// ErrInvalid is returned when a payload is valid JSON but not a JSON-RPC envelope
var ErrInvalid = errors.New("invalid JSON-RPC message")

// Message represents a parsed JSON-RPC 2.0 message.
//
// Raw holds the wire form as received; it is what gets forwarded to the
// subprocess or returned to an HTTP caller, so the payload is never re-encoded.
// Only a payload spanning several lines is compacted, so that it frames as one line.
type Message struct {
	Kind    Kind
	Jsonrpc string
	ID      json.RawMessage
	Method  string
	Params  json.RawMessage
	Result  json.RawMessage
	Error   *jsonrpc.Error
	Raw     []byte
}

// envelope mirrors the wire shape; presence of id/method is detected through RawMessage nil-ness
type envelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonrpc.Error  `json:"error"`
}

// Parse decodes data into a Message, classifying it by field presence:
// id without method is a response, id with method a request, method without id a notification.
func Parse(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		if !json.Valid(data) {
			return nil, &SyntaxError{Cause: errors.New("not a JSON value")}
		}
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalid)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return nil, &SyntaxError{Cause: err}
	}
	raw, err := singleLine(data)
	if err != nil {
		return nil, err
	}
	ret := &Message{
		Jsonrpc: env.Jsonrpc,
		ID:      env.ID,
		Params:  env.Params,
		Result:  env.Result,
		Error:   env.Error,
		Raw:     raw,
	}
	if env.Method != nil {
		ret.Method = *env.Method
	}
	hasID := env.ID != nil
	switch {
	case hasID && env.Method == nil:
		ret.Kind = KindResponse
	case hasID:
		ret.Kind = KindRequest
	case env.Method != nil:
		ret.Kind = KindNotification
	default:
		return nil, fmt.Errorf("%w: neither id nor method present", ErrInvalid)
	}
	return ret, nil
}

func singleLine(data []byte) ([]byte, error) {
	if bytes.IndexByte(data, '\n') == -1 {
		return append([]byte(nil), data...), nil
	}
	compacted := &bytes.Buffer{}
	if err := json.Compact(compacted, data); err != nil {
		return nil, &SyntaxError{Cause: err}
	}
	return compacted.Bytes(), nil
}

// HasID returns true if message carries a correlation id
func (m *Message) HasID() bool {
	return m.ID != nil
}

// Key returns correlation key of the message id
func (m *Message) Key() string {
	return Key(m.ID)
}

// Encode returns the single-line wire form terminated with a newline
func (m *Message) Encode() []byte {
	ret := make([]byte, 0, len(m.Raw)+1)
	ret = append(ret, m.Raw...)
	return append(ret, '\n')
}

// Key normalizes a raw JSON id into a map key; 1 and "1" stay distinct
func Key(id json.RawMessage) string {
	if id == nil {
		return ""
	}
	buf := &bytes.Buffer{}
	if err := json.Compact(buf, id); err != nil {
		return string(id)
	}
	return buf.String()
}

// SyntaxError reports a payload that is not valid JSON
type SyntaxError struct {
	Cause error
}

func (e *SyntaxError) Error() string {
	return "malformed JSON: " + e.Cause.Error()
}

func (e *SyntaxError) Unwrap() error {
	return e.Cause
}

// NewErrorResponse builds a response envelope carrying rpcErr for the given id, null when id is nil
func NewErrorResponse(id json.RawMessage, rpcErr *jsonrpc.Error) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	return json.Marshal(&errorResponse{Jsonrpc: jsonrpc.Version, ID: id, Error: rpcErr})
}

type errorResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *jsonrpc.Error  `json:"error"`
}
