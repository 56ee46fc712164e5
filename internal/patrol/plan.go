package patrol

import (
	"errors"
	"fmt"
)

// MaxTotalOfficers bounds the officer budget of a single plan.
const MaxTotalOfficers = 1_000_000

// ErrOfficerBudget is returned when the officer budget exceeds MaxTotalOfficers.
var ErrOfficerBudget = errors.New("total officers exceeds limit")

const (
	DefaultTotalOfficers = 8
	DefaultShiftMinutes  = 8 * 60
	MinShiftMinutes      = 60

	DefaultUnits    = 5
	DefaultCapacity = 3
)

// NoHotspotsMessage is the summary message of an empty plan.
const NoHotspotsMessage = "no hotspots provided"

// PlanRequest is the input of the proportional resource model.
type PlanRequest struct {
	Hotspots      []Hotspot
	TotalOfficers int
	ShiftMinutes  int
}

// Summary describes a patrol plan. Message is only set for an empty plan.
type Summary struct {
	Message                string
	RequestedHotspots      int
	RoutesCreated          int
	TotalOfficersAvailable int
	TotalIncidents         int
}

// PatrolPlan is the proportional model's output. Entries are grouped by route.
type PatrolPlan struct {
	Entries      []PlanEntry
	Routes       []Route
	ShiftMinutes int
	Summary      Summary
}

// OverShiftRoutes returns the routes whose visit time exceeds the shift.
func (p PatrolPlan) OverShiftRoutes() []Route {
	var out []Route
	for _, r := range p.Routes {
		if r.OverShift {
			out = append(out, r)
		}
	}
	return out
}

// BuildPatrolPlan ranks hotspots by incidents, apportions officers, attaches
// priority and visit time, and balances the entries into min(officers, hotspots)
// routes.
func BuildPatrolPlan(req PlanRequest) (PatrolPlan, error) {
	officers := max(1, req.TotalOfficers)
	shift := max(MinShiftMinutes, req.ShiftMinutes)
	if officers > MaxTotalOfficers {
		return PatrolPlan{}, fmt.Errorf("%w: %d > %d", ErrOfficerBudget, officers, MaxTotalOfficers)
	}

	for _, h := range req.Hotspots {
		if h.Incidents < 0 {
			return PatrolPlan{}, ErrNegativeIncidents
		}
	}

	if len(req.Hotspots) == 0 {
		return PatrolPlan{
			Entries:      []PlanEntry{},
			Routes:       []Route{},
			ShiftMinutes: shift,
			Summary:      Summary{Message: NoHotspotsMessage},
		}, nil
	}

	ranked := Rank(req.Hotspots, ByIncidents)
	counts := make([]int, len(ranked))
	for i, h := range ranked {
		counts[i] = h.Incidents
	}
	alloc := Apportion(counts, officers)

	entries := make([]PlanEntry, len(ranked))
	for i, h := range ranked {
		entries[i] = PlanEntry{
			Hotspot:             h,
			Priority:            Classify(h.Incidents),
			RecommendedOfficers: max(1, alloc[i]),
			RecommendedMinutes:  RecommendMinutes(h.Incidents),
		}
	}

	routeCount := min(officers, len(entries))
	routes := BalanceRoutes(entries, routeCount)

	flat := make([]PlanEntry, 0, len(entries))
	for i := range routes {
		routes[i].OverShift = routes[i].Minutes > shift
		flat = append(flat, routes[i].Entries...)
	}

	return PatrolPlan{
		Entries:      flat,
		Routes:       routes,
		ShiftMinutes: shift,
		Summary: Summary{
			RequestedHotspots:      len(req.Hotspots),
			RoutesCreated:          routeCount,
			TotalOfficersAvailable: officers,
			TotalIncidents:         TotalIncidents(req.Hotspots),
		},
	}, nil
}

// UnitRequest is the input of the capacity resource model. Nil budgets take
// their defaults.
type UnitRequest struct {
	Hotspots []Hotspot
	Units    *int
	Capacity *int
}

// BuildUnitPlan ranks hotspots by risk score and places them onto
// fixed-capacity units.
func BuildUnitPlan(req UnitRequest) UnitPlan {
	units, capacity := DefaultUnits, DefaultCapacity
	if req.Units != nil {
		units = max(1, *req.Units)
	}
	if req.Capacity != nil {
		capacity = max(0, *req.Capacity)
	}
	return AllocateUnits(Rank(req.Hotspots, ByRiskScore), units, capacity)
}
