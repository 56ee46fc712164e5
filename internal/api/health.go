package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the database and Redis connections when they are in use.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for name, dep := range map[string]any{"store": s.Store, "broker": s.Broker} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", name+": "+err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "model": s.Scorer != nil})
}
