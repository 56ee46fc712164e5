package model

import "time"

// Proportional resource model (/api/allocate-patrol)

// HotspotIn is one hotspot as submitted by a client. Pointers distinguish
// absent fields from zero values.
type HotspotIn struct {
	ID        *int     `json:"id"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Location  *string  `json:"location"`
	Incidents *int     `json:"incidents"`
}

type AllocateRequest struct {
	Hotspots           []HotspotIn `json:"hotspots"`
	TotalOfficers      *int        `json:"total_officers"`
	PatrolShiftMinutes *int        `json:"patrol_shift_minutes"`
}

type PatrolPoint struct {
	ID                     *int    `json:"id"`
	Lat                    float64 `json:"lat"`
	Lng                    float64 `json:"lng"`
	Location               string  `json:"location"`
	Incidents              int     `json:"incidents"`
	Priority               string  `json:"priority"`
	RecommendedOfficers    int     `json:"recommendedOfficers"`
	RecommendedTimeMinutes int     `json:"recommendedTimeMinutes"`
	RouteID                int     `json:"routeId"`
}

type AllocateResponse struct {
	PatrolPlan []PatrolPoint  `json:"patrolPlan"`
	Summary    map[string]any `json:"summary"`
	Routes     []RouteSummary `json:"routes,omitempty"`
}

// RouteSummary is returned when the caller asks for per-route detail.
type RouteSummary struct {
	RouteID   int  `json:"routeId"`
	Hotspots  int  `json:"hotspots"`
	Incidents int  `json:"incidents"`
	Minutes   int  `json:"minutes"`
	OverShift bool `json:"overShift"`
}

// Capacity resource model (/api/allocate_patrols)

type UnitAssignment struct {
	Unit      int     `json:"unit"`
	ZoneID    int     `json:"zone_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RiskScore float64 `json:"risk_score"`
}

type Zone struct {
	ZoneID    int     `json:"zone_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RiskScore float64 `json:"risk_score"`
}

// UnitEnvelope is the capacity response when the caller opts into explicit truncation reporting.
type UnitEnvelope struct {
	Assignments []UnitAssignment `json:"assignments"`
	Unassigned  []Zone           `json:"unassigned"`
	Units       int              `json:"units"`
	Capacity    int              `json:"capacity"`
}

// HotspotView is an aggregated hotspot in the allocate-patrol input shape.
type HotspotView struct {
	ID        int     `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Location  string  `json:"location"`
	Incidents int     `json:"incidents"`
	RiskScore float64 `json:"risk_score"`
}

// Incident intake

type IncidentIn struct {
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Location   string   `json:"location,omitempty"`
	Type       string   `json:"type,omitempty"`
	Severity   int      `json:"severity,omitempty"`
	OccurredAt string   `json:"occurredAt,omitempty"`
}

type Incident struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Location   string    `json:"location,omitempty"`
	Type       string    `json:"type,omitempty"`
	Severity   int       `json:"severity"`
	OccurredAt time.Time `json:"occurredAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Webhook subscriptions

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// Event types published by the service.
const (
	EventPatrolPlanCreated   = "patrol.plan.created"
	EventCapacityPlanCreated = "capacity.plan.created"
	EventIncidentReported    = "incident.reported"
)

// KnownEvents lists the event types subscriptions may name.
var KnownEvents = []string{EventPatrolPlanCreated, EventCapacityPlanCreated, EventIncidentReported}
