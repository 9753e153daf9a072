package server

import (
	"net/http"
	"time"
)

// Handler returns the HTTP handler serving the JSON-RPC endpoint and health checks
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for path, handler := range s.customHTTPHandlers {
		mux.Handle(path, handler)
	}
	if s.health != nil {
		mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	}
	var middlewareHandlers []Middleware
	middlewareHandlers = append(middlewareHandlers, traceMiddleware(s.logger))
	middlewareHandlers = append(middlewareHandlers, s.corsHandler)
	if s.protocolVersion != nil {
		middlewareHandlers = append(middlewareHandlers, protocolVersionMiddleware(s.protocolVersion))
	}
	// Validate Origin on all requests (uses configured CORS allowlist)
	middlewareHandlers = append(middlewareHandlers, originValidationMiddleware(s.corsConfig.AllowOrigins))
	mux.Handle("POST "+s.path, http.HandlerFunc(s.handleMessage))
	return ChainMiddlewareHandlers(mux, middlewareHandlers...)
}

// HTTP creates an HTTP server for the bridge; addr overrides the configured address when set.
func (s *Server) HTTP(addr string) *http.Server {
	if addr == "" {
		addr = s.addr
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
