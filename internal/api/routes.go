package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"patrolnav/internal/metrics"
)

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.instrument(pattern, h))
	}

	// Allocation engine
	handle("/api/allocate-patrol", s.AllocatePatrolHandler)
	handle("/api/allocate_patrols", s.AllocateUnitsHandler)
	handle("/api/predict_hotspots", s.PredictHotspotsHandler)

	// Incidents and hotspots
	handle("/v1/incidents", s.IncidentsHandler)
	handle("/v1/incidents/import", s.IncidentImportHandler)
	handle("/v1/hotspots", s.HotspotsHandler)

	// Subscriptions and webhook admin
	handle("/v1/subscriptions", s.SubscriptionsHandler)
	handle("/v1/subscriptions/", s.SubscriptionByIDHandler)
	handle("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
	handle("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)
	handle("/v1/admin/webhook-dlq", s.WebhookDLQHandler)
	handle("/v1/admin/webhook-dlq/", s.WebhookDLQHandler)

	// Event streams
	handle("/v1/events/stream", s.EventsStreamHandler)
	handle("/v1/events/ws", s.EventsWSHandler)

	// Health
	handle("/api/health", s.HealthHandler)
	handle("/healthz", s.HealthHandler)
	handle("/readyz", s.ReadyHandler)

	// Ops
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	handle("/debug/info", s.DebugJSON)
	handle("/openapi.yaml", s.OpenAPIHandler)
	handle("/openapi.json", s.OpenAPIJSONHandler)
	handle("/docs", s.DocsHandler)

	var h http.Handler = mux
	if s.Cfg.RateRPS > 0 {
		h = newRateLimiter(s.Cfg.RateRPS, s.Cfg.RateBurst).middleware(h)
	}
	return s.corsHandler()(h)
}
