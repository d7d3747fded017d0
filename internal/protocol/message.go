// ABOUTME: Wire message envelope for the agent RPC protocol.
// ABOUTME: Line-delimited JSON: requests carry an id, responses echo it, notifications have none.

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is one outgoing RPC call. Ids are unique per transport.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one Request. Exactly one of Result/Error is set.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Notification is a server-initiated push with no correlating id.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCError is the error object carried inside a Response.
// Codes are stable integers; the message is human-readable only.
type RPCError struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("agent rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC style generic codes.
const (
	ErrCodeInvalidParams  int32 = -32602
	ErrCodeMethodNotFound int32 = -32601
	ErrCodeInternal       int32 = -32603
)

// Domain codes for I/O outcomes.
const (
	ErrCodeIO            int32 = -1
	ErrCodeNotFound      int32 = -2
	ErrCodePermission    int32 = -3
	ErrCodeAlreadyExists int32 = -4
	ErrCodeConflict      int32 = -5
)

// Message is a classified inbound wire line: *Response or *Notification.
type Message interface {
	wireMessage()
}

func (*Response) wireMessage()     {}
func (*Notification) wireMessage() {}

// ErrUnclassifiable marks a line that parses as JSON but fits neither
// message shape. The exec channel interleaves diagnostic output with
// protocol data, so callers treat this as noise, not a protocol error.
var ErrUnclassifiable = errors.New("line is not a response or notification")

// envelope is the superset shape used to classify an inbound line.
type envelope struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Params json.RawMessage `json:"params"`
}

// Decode classifies one wire line. A line with an id and no method is a
// Response; a line with a method and no id is a Notification. Anything
// else (including a server-bound Request echoed back) is unclassifiable.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, ErrUnclassifiable
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decoding wire line: %w", err)
	}

	switch {
	case env.ID != nil && env.Method == "":
		return &Response{ID: *env.ID, Result: env.Result, Error: env.Error}, nil
	case env.ID == nil && env.Method != "":
		return &Notification{Method: env.Method, Params: env.Params}, nil
	default:
		return nil, ErrUnclassifiable
	}
}

// EncodeLine serializes a message as one newline-terminated wire line.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding wire line: %w", err)
	}
	return append(data, '\n'), nil
}
