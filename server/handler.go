package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-bridge/correlator"
	"github.com/viant/mcp-bridge/message"
	"github.com/viant/mcp-bridge/schema"
)

const contentTypeJSON = "application/json"

// handleMessage forwards one JSON-RPC envelope to the subprocess.
// Requests wait for the correlated reply; everything else is acknowledged with 202.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn().Err(err).Msg("failed to read request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	msg, err := message.Parse(body)
	if err != nil {
		logger.Warn().Err(err).Msg("rejecting malformed envelope")
		var syntaxErr *message.SyntaxError
		if errors.As(err, &syntaxErr) {
			s.writeError(w, r, http.StatusBadRequest, nil, schema.NewParseError(syntaxErr.Cause.Error()))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, nil, schema.NewInvalidRequest(err.Error()))
		return
	}
	if msg.Kind == message.KindRequest {
		s.call(w, r, msg)
		return
	}
	s.notify(w, r, msg)
}

// notify acknowledges before forwarding, the reply never depends on the subprocess
func (s *Server) notify(w http.ResponseWriter, r *http.Request, msg *message.Message) {
	logger := zerolog.Ctx(r.Context())
	w.WriteHeader(http.StatusAccepted)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	if schema.IsHandshakeComplete(msg.Method) {
		logger.Info().Msg("client completed initialization handshake")
	}
	if err := s.forwarder.Write(msg); err != nil {
		logger.Error().Err(err).Str("kind", msg.Kind.String()).Str("method", msg.Method).Msg("failed to forward message")
	}
}

func (s *Server) call(w http.ResponseWriter, r *http.Request, msg *message.Message) {
	logger := zerolog.Ctx(r.Context()).With().RawJSON("id", msg.ID).Str("method", msg.Method).Logger()
	sink := correlator.NewSink()
	if err := s.correlator.Register(msg, sink, s.timeout); err != nil {
		logger.Error().Err(err).Msg("failed to register call")
		s.writeError(w, r, http.StatusServiceUnavailable, msg.ID, schema.NewBridgeWriteFailed())
		return
	}
	if err := s.forwarder.Write(msg); err != nil {
		logger.Error().Err(err).Msg("failed to forward request")
		if cancelErr := s.correlator.Cancel(msg.ID, sink); cancelErr != nil {
			logger.Debug().Err(cancelErr).Msg("failed to cancel call")
		}
		s.writeError(w, r, http.StatusBadGateway, msg.ID, schema.NewBridgeWriteFailed())
		return
	}
	select {
	case result := <-sink:
		status := http.StatusOK
		if result.TimedOut {
			status = http.StatusGatewayTimeout
		}
		s.writeJSON(w, r, status, result.Response)
	case <-r.Context().Done():
		// the call stays registered until its reply or timeout
		logger.Info().Msg("client went away before the reply")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, id json.RawMessage, rpcErr *jsonrpc.Error) {
	data, err := message.NewErrorResponse(id, rpcErr)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode error response")
		http.Error(w, rpcErr.Message, status)
		return
	}
	s.writeJSON(w, r, status, data)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data []byte) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("failed to write response")
	}
}
