package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/replay/internal/common"
)

// handleHealth reports process and storage health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status, database := "healthy", "connected"
	code := http.StatusOK
	if err := s.app.Storage.Ping(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("storage health check failed")
		status, database = "unhealthy", "disconnected"
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, map[string]interface{}{
		"status":         status,
		"database":       database,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"mode":           s.app.Config.Simulation.DeploymentMode,
		"uptime_seconds": int(time.Since(s.app.StartupTime).Seconds()),
	})
}

// handleVersion reports build information.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
