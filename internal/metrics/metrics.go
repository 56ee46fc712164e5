package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gonum.org/v1/gonum/stat"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Allocations counts successful allocations by resource model (proportional, capacity)
	Allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "patrol_allocations_total", Help: "Allocation plans built, by resource model."},
		[]string{"model"},
	)
	// UnassignedHotspots counts hotspots dropped because every unit was full
	UnassignedHotspots = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "patrol_unassigned_hotspots_total", Help: "Hotspots left without a unit by the capacity model."},
	)
	// OverShiftRoutes counts routes whose visit time exceeded the shift
	OverShiftRoutes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "patrol_over_shift_routes_total", Help: "Routes whose recommended visit time exceeds the shift."},
	)
	// RouteLoadSpread observes max-min incident load across the routes of a plan
	RouteLoadSpread = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "patrol_route_load_spread", Help: "Difference between heaviest and lightest route incident load per plan.", Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100}},
	)
	// RouteLoadStdDev observes the standard deviation of route loads per plan
	RouteLoadStdDev = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "patrol_route_load_stddev", Help: "Standard deviation of route incident load per plan.", Buckets: []float64{0, 0.5, 1, 2, 5, 10, 25, 50}},
	)
	// Predictions counts scored incident records
	Predictions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "hotspot_predictions_total", Help: "Incident records scored by the risk model."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Allocations, UnassignedHotspots, OverShiftRoutes, RouteLoadSpread, RouteLoadStdDev, Predictions)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// LoadStats summarizes route loads: spread (max-min) and population standard deviation.
func LoadStats(loads []float64) (spread, stddev float64) {
	if len(loads) == 0 {
		return 0, 0
	}
	lo, hi := loads[0], loads[0]
	for _, l := range loads[1:] {
		lo = min(lo, l)
		hi = max(hi, l)
	}
	return hi - lo, stat.PopStdDev(loads, nil)
}

// ObserveRouteLoads records the balance of one plan's routes.
func ObserveRouteLoads(loads []float64) {
	spread, sd := LoadStats(loads)
	RouteLoadSpread.Observe(spread)
	RouteLoadStdDev.Observe(sd)
}
