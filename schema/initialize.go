package schema

import (
	"encoding/json"
	"fmt"

	protoschema "github.com/viant/mcp-protocol/schema"
)

// LatestProtocolVersion is the newest MCP protocol revision known to the bridge
const LatestProtocolVersion = protoschema.LatestProtocolVersion

// DecodeInitializeResult decodes the result of an initialize call returned by the subprocess
func DecodeInitializeResult(result json.RawMessage) (*protoschema.InitializeResult, error) {
	if len(result) == 0 {
		return nil, fmt.Errorf("initialize result was empty")
	}
	ret := &protoschema.InitializeResult{}
	if err := json.Unmarshal(result, ret); err != nil {
		return nil, fmt.Errorf("failed to decode initialize result: %w", err)
	}
	return ret, nil
}
