package api

import (
	"net/http"
	"time"

	"patrolnav/internal/buildinfo"
)

// DebugJSON reports build metadata and the effective, secret-free configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Cfg
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 c.Port,
			"AUTH_MODE":            c.Auth.Mode,
			"ALLOW_ORIGINS":        c.AllowOrigins,
			"RATE_RPS":             c.RateRPS,
			"RATE_BURST":           c.RateBurst,
			"WEBHOOK_MAX_ATTEMPTS": c.WebhookMaxAttempts,
			"MODEL_PATH":           c.ModelPath,
			"HOTSPOT_RADIUS_M":     c.HotspotRadiusM,
			"HAS_DATABASE_URL":     c.DatabaseURL != "",
			"HAS_REDIS_URL":        c.RedisURL != "",
		},
		"modelLoaded": s.Scorer != nil,
	})
}
