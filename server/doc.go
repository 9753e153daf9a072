// Package server exposes a stdio JSON-RPC subprocess over HTTP.
//
// A POST to the configured path (default /mcp) carries one JSON-RPC envelope:
//   - Requests are registered with the correlator, forwarded, and answered with the
//     subprocess reply (200) or a synthetic "Bridge Timeout" error (504)
//   - Notifications and client responses are forwarded and acknowledged with 202
//
// The handler is wrapped with CORS, Origin validation and per-request trace logging:
//
//	s, _ := server.New(supervisor, correlator, server.WithTimeout(30*time.Second))
//	log.Fatal(s.HTTP("127.0.0.1:3001").ListenAndServe())
package server
