package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests. Each database answers a ping
// so a failing file surfaces here before a query trips over it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	databases := make(map[string]string, len(s.dbs))
	healthy := true
	for name, db := range s.dbs {
		if err := db.HealthCheck(r.Context()); err != nil {
			databases[name] = err.Error()
			healthy = false
			continue
		}
		databases[name] = "ok"
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "lookback",
		"databases": databases,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
