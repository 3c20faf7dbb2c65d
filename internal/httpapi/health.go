package httpapi

import "net/http"

// handleHealth reports basic liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ticket_count": s.ctx.Repo.Count(),
	})
}

// handleWSStats exposes subscription-bus introspection counters.
func (s *Server) handleWSStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctx.Bus.Stats())
}
