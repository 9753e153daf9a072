// Package mcpbridge exposes a stdio JSON-RPC 2.0 server, typically an MCP server, over HTTP.
//
// The bridge launches one subprocess, writes every HTTP POSTed message to its standard input
// as a single line and answers each request with the matching line read back from its
// standard output. Requests carry their own id so many calls can be in flight at once and
// replies may arrive in any order.
//
// The module is organised as follows:
//
//	message     JSON-RPC message classification and id keys
//	schema      bridge specific errors and MCP method names
//	process     subprocess lifecycle
//	framer      newline delimited stdout framing
//	correlator  pending call table with per call timeouts
//	server      HTTP endpoint and middleware
//	bridge      configuration and the command runner
//
// Run the bridge with:
//
//	mcp-bridge -a 127.0.0.1:3001 -t 30000 "npx -y @modelcontextprotocol/server-everything"
package mcpbridge
