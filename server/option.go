package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithCORS sets the CORS policy, it also drives origin validation.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.corsConfig = cors
		return nil
	}
}

// WithAllowOrigins restricts CORS and accepted Origin headers to the given origins.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) error {
		if len(origins) == 0 {
			return nil
		}
		cors := DefaultCors()
		cors.AllowOrigins = origins
		s.corsConfig = cors
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger.With().Str("component", "http").Logger()
		return nil
	}
}

// WithAddr sets the listen address used by HTTP.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr != "" {
			s.addr = addr
		}
		return nil
	}
}

// WithPath sets the JSON-RPC endpoint path.
func WithPath(path string) Option {
	return func(s *Server) error {
		if path == "" {
			return nil
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("invalid path %q: must start with /", path)
		}
		if path == HealthPath {
			return fmt.Errorf("invalid path %q: reserved for health checks", path)
		}
		s.path = path
		return nil
	}
}

// WithTimeout sets how long a request waits for the subprocess reply.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithMaxBodySize limits the inbound envelope size.
func WithMaxBodySize(size int64) Option {
	return func(s *Server) error {
		if size > 0 {
			s.maxBodySize = size
		}
		return nil
	}
}

// WithHealth sets the status provider served on the health path.
func WithHealth(health HealthFunc) Option {
	return func(s *Server) error {
		s.health = health
		return nil
	}
}

// WithProtocolVersion sets the provider of the version advertised in the MCP-Protocol-Version header.
func WithProtocolVersion(version ProtocolVersionFunc) Option {
	return func(s *Server) error {
		s.protocolVersion = version
		return nil
	}
}

// WithCustomHTTPHandler mounts an extra handler.
func WithCustomHTTPHandler(path string, handler http.HandlerFunc) Option {
	return func(s *Server) error {
		if s.customHTTPHandlers == nil {
			s.customHTTPHandlers = make(map[string]http.HandlerFunc)
		}
		s.customHTTPHandlers[path] = handler
		return nil
	}
}
