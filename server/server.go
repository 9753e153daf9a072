package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/correlator"
	"github.com/viant/mcp-bridge/message"
)

const (
	// DefaultPath is the endpoint accepting JSON-RPC envelopes
	DefaultPath = "/mcp"
	// HealthPath reports bridge status
	HealthPath = "/healthz"
	// DefaultMaxBodySize limits a single inbound envelope
	DefaultMaxBodySize = 10 << 20
	// DefaultAddr binds only to localhost to reduce DNS rebinding risk
	DefaultAddr = "127.0.0.1:3001"
	// TraceIDHeader carries the per-request trace id
	TraceIDHeader = "X-Bridge-Trace-Id"
)

// Forwarder writes a message to the subprocess
type Forwarder interface {
	Write(msg *message.Message) error
}

// Correlator tracks calls awaiting a subprocess response
type Correlator interface {
	Register(request *message.Message, sink correlator.Sink, timeout time.Duration) error
	Cancel(id json.RawMessage, sink correlator.Sink) error
}

// Server translates HTTP calls into subprocess writes and correlated replies
type Server struct {
	forwarder  Forwarder
	correlator Correlator
	logger     zerolog.Logger

	addr               string
	path               string
	timeout            time.Duration
	maxBodySize        int64
	corsConfig         *Cors
	corsHandler        Middleware
	health             HealthFunc
	protocolVersion    ProtocolVersionFunc
	customHTTPHandlers map[string]http.HandlerFunc
}

// New creates a server forwarding to forwarder and awaiting replies through correlator
func New(forwarder Forwarder, correlator Correlator, options ...Option) (*Server, error) {
	if forwarder == nil {
		return nil, errors.New("forwarder was nil")
	}
	if correlator == nil {
		return nil, errors.New("correlator was nil")
	}
	s := &Server{
		forwarder:   forwarder,
		correlator:  correlator,
		logger:      zerolog.Nop(),
		addr:        DefaultAddr,
		path:        DefaultPath,
		timeout:     30 * time.Second,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.corsConfig == nil {
		s.corsConfig = DefaultCors()
	}
	handler := &corsHandler{Cors: s.corsConfig}
	s.corsHandler = handler.Middleware
	return s, nil
}

// Path returns the JSON-RPC endpoint path
func (s *Server) Path() string {
	return s.path
}
