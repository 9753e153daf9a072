package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/correlator"
	"github.com/viant/mcp-bridge/framer"
	"github.com/viant/mcp-bridge/message"
	"github.com/viant/mcp-bridge/process"
	"github.com/viant/mcp-bridge/schema"
	"github.com/viant/mcp-bridge/server"
)

const httpShutdownTimeout = 5 * time.Second

// Service wires one subprocess to one HTTP endpoint
type Service struct {
	id         string
	config     *Config
	logger     zerolog.Logger
	stderr     io.Writer
	supervisor *process.Supervisor
	framer     *framer.Framer
	correlator *correlator.Correlator
	server     *server.Server
	started    time.Time
	pumpDone   chan struct{}

	mu              sync.RWMutex
	addr            net.Addr
	protocolVersion string
}

// Option configures a service
type Option func(s *Service)

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStderr sets where the subprocess standard error goes, os.Stderr by default
func WithStderr(w io.Writer) Option {
	return func(s *Service) {
		s.stderr = w
	}
}

// New creates a bridge service for config
func New(config *Config, options ...Option) (*Service, error) {
	config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		id:       uuid.New().String(),
		config:   config,
		logger:   zerolog.Nop(),
		pumpDone: make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.With().Str("bridgeId", s.id).Logger()
	s.supervisor = process.New(process.Config{
		Command: config.Command,
		Dir:     config.Dir,
		Env:     config.Env,
		Stderr:  s.stderr,
	}, s.logger)
	s.framer = framer.New(s.logger)
	s.correlator = correlator.New(s.logger,
		correlator.WithTimeout(config.Timeout()),
		correlator.WithObserver(s.observe))
	serverOptions := []server.Option{
		server.WithLogger(s.logger),
		server.WithAddr(config.Addr),
		server.WithPath(config.Path),
		server.WithTimeout(config.Timeout()),
		server.WithHealth(s.Health),
		server.WithProtocolVersion(s.ProtocolVersion),
	}
	if config.Cors != nil {
		serverOptions = append(serverOptions, server.WithCORS(config.Cors))
	}
	var err error
	if s.server, err = server.New(s.supervisor, s.correlator, serverOptions...); err != nil {
		_ = s.correlator.Close()
		return nil, err
	}
	return s, nil
}

// ID returns the bridge instance id
func (s *Service) ID() string {
	return s.id
}

// Handler returns the HTTP handler of the bridge
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Addr returns the address the bridge listens on, nil before Run binds it
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Start spawns the subprocess and pumps its stdout into the correlator
func (s *Service) Start(ctx context.Context) error {
	if err := s.supervisor.Start(ctx); err != nil {
		return err
	}
	s.started = time.Now()
	go s.pump(ctx)
	return nil
}

func (s *Service) pump(ctx context.Context) {
	defer close(s.pumpDone)
	err := s.framer.Run(ctx, s.supervisor.Stdout(), s.dispatch)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("subprocess stdout pump stopped")
	}
}

func (s *Service) dispatch(msg *message.Message) {
	if relayLogMessage(s.logger, msg) {
		return
	}
	if err := s.correlator.Dispatch(msg); err != nil {
		s.logger.Debug().Err(err).RawJSON("message", msg.Raw).Msg("dropping message after shutdown")
	}
}

// observe runs on the correlator loop for every matched response
func (s *Service) observe(method string, response *message.Message) {
	if method != schema.MethodInitialize || response.Error != nil {
		return
	}
	result, err := schema.DecodeInitializeResult(response.Result)
	if err != nil {
		s.logger.Warn().Err(err).Msg("unexpected initialize result")
		return
	}
	s.mu.Lock()
	s.protocolVersion = result.ProtocolVersion
	s.mu.Unlock()
	s.logger.Info().
		Str("server", result.ServerInfo.Name).
		Str("version", result.ServerInfo.Version).
		Str("protocolVersion", result.ProtocolVersion).
		Msg("subprocess initialized")
}

// ProtocolVersion returns the version the subprocess answered initialize with, empty before the handshake
func (s *Service) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// Health reports bridge status
func (s *Service) Health() *server.Health {
	ret := &server.Health{
		Status:          "ok",
		BridgeID:        s.id,
		Pid:             s.supervisor.Pid(),
		Command:         s.config.Command,
		ProtocolVersion: schema.LatestProtocolVersion,
	}
	if !s.started.IsZero() {
		ret.UptimeSeconds = time.Since(s.started).Seconds()
	}
	if version := s.ProtocolVersion(); version != "" {
		ret.ProtocolVersion = version
	}
	select {
	case <-s.supervisor.Done():
		ret.Status = "exited"
	default:
	}
	pending, err := s.correlator.Pending()
	if err != nil {
		ret.Status = "closed"
	}
	ret.Pending = pending
	return ret
}

// Run serves HTTP until the subprocess exits or ctx is cancelled and returns the exit code to mirror
func (s *Service) Run(ctx context.Context) (int, error) {
	if err := s.Start(ctx); err != nil {
		_ = s.correlator.Close()
		return 1, err
	}
	httpServer := s.server.HTTP("")
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		_ = s.supervisor.Stop(s.config.ShutdownGrace())
		s.Close()
		return 1, fmt.Errorf("failed to listen on %v: %w", httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()
	s.logger.Info().
		Str("url", "http://"+listener.Addr().String()+s.server.Path()).
		Int("pid", s.supervisor.Pid()).
		Msg("bridge listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	var runErr error
	select {
	case <-s.supervisor.Done():
		s.logger.Info().Int("code", s.supervisor.ExitCode()).Msg("subprocess exited, shutting down")
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown requested")
		if err := s.supervisor.Stop(s.config.ShutdownGrace()); err != nil {
			s.logger.Error().Err(err).Msg("failed to stop subprocess")
		}
	case err := <-serveErr:
		runErr = fmt.Errorf("http server failed: %w", err)
		if err := s.supervisor.Stop(s.config.ShutdownGrace()); err != nil {
			s.logger.Error().Err(err).Msg("failed to stop subprocess")
		}
	}
	// replies written before exit are dispatched, then pending calls resolve before Shutdown waits for their handlers
	s.drain()
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	if runErr != nil {
		return 1, runErr
	}
	return s.supervisor.ExitCode(), nil
}

// drain waits for the stdout pump to reach EOF, bounded by the shutdown grace
// since a descendant of the subprocess may hold stdout open.
func (s *Service) drain() {
	if s.started.IsZero() {
		return
	}
	select {
	case <-s.pumpDone:
	case <-time.After(s.config.ShutdownGrace()):
		s.logger.Warn().Msg("subprocess stdout still open after exit")
	}
}

// Close releases outstanding calls; the subprocess is left to Run or the caller
func (s *Service) Close() {
	_ = s.correlator.Close()
	if !s.started.IsZero() {
		select {
		case <-s.pumpDone:
		case <-time.After(time.Second):
			s.logger.Debug().Msg("stdout pump still draining")
		}
	}
}
