// Package mock provides a small MCP server speaking line-delimited JSON-RPC over stdio.
//
// It answers initialize, ping, tools/list and tools/call (echo) and adds a few
// methods for exercising a bridge: "sleep" replies after {"ms": N}, "slow_op"
// is never answered and "exit" stops the server with {"code": N}.
package mock
