package server

import "net/http"

// ProtocolVersionHeader carries the MCP protocol version negotiated with the subprocess
const ProtocolVersionHeader = "MCP-Protocol-Version"

// ProtocolVersionFunc returns the negotiated protocol version, empty while unknown
type ProtocolVersionFunc func() string

// protocolVersionMiddleware advertises the negotiated version on every response.
// The subprocess owns negotiation so client supplied versions are never rejected here.
func protocolVersionMiddleware(version ProtocolVersionFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := version(); v != "" {
				w.Header().Set(ProtocolVersionHeader, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
