package schema

import (
	protoschema "github.com/viant/mcp-protocol/schema"
)

// Methods the bridge inspects; every other method is forwarded opaquely.
const (
	MethodInitialize              = protoschema.MethodInitialize
	MethodPing                    = protoschema.MethodPing
	MethodToolsList               = protoschema.MethodToolsList
	MethodToolsCall               = protoschema.MethodToolsCall
	MethodNotificationInitialized = protoschema.MethodNotificationInitialized
	MethodNotificationMessage     = protoschema.MethodNotificationMessage
	MethodNotificationCancel      = protoschema.MethodNotificationCancel
)

// IsHandshakeComplete returns true for the notification closing the MCP initialize handshake
func IsHandshakeComplete(method string) bool {
	return method == MethodNotificationInitialized
}
