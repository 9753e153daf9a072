package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Health describes the bridge as reported on the health path
type Health struct {
	Status          string  `json:"status"`
	BridgeID        string  `json:"bridgeId"`
	Pid             int     `json:"pid"`
	Pending         int     `json:"pending"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	Command         string  `json:"command"`
	ProtocolVersion string  `json:"protocolVersion,omitempty"`
}

// HealthFunc returns the current bridge status
type HealthFunc func() *Health

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health()
	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("failed to write health response")
	}
}
