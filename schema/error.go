package schema

import (
	"github.com/viant/jsonrpc"
)

const (
	BridgeTimeoutMessage     = "Bridge Timeout"
	BridgeWriteFailedMessage = "Bridge Write Failed"
)

// NewBridgeTimeout creates the error returned when the subprocess did not answer in time
func NewBridgeTimeout() *jsonrpc.Error {
	return jsonrpc.NewInternalError(BridgeTimeoutMessage, nil)
}

// NewBridgeWriteFailed creates the error returned when a request could not be written to the subprocess
func NewBridgeWriteFailed() *jsonrpc.Error {
	return jsonrpc.NewInternalError(BridgeWriteFailedMessage, nil)
}

// NewParseError creates a parse error for a malformed HTTP body
func NewParseError(detail string) *jsonrpc.Error {
	return jsonrpc.NewParsingError("Parse error: "+detail, nil)
}

// NewInvalidRequest creates an invalid request error for a body that is not a JSON-RPC envelope
func NewInvalidRequest(detail string) *jsonrpc.Error {
	return jsonrpc.NewInvalidRequest("Invalid Request: "+detail, nil)
}
