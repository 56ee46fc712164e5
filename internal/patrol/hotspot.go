// Package patrol turns a list of incident hotspots and a resource budget into a
// patrol assignment plan. Everything here is pure and request-scoped: no I/O,
// no shared state, and identical input always yields an identical plan.
package patrol

import (
	"errors"
	"sort"
)

// ErrNegativeIncidents is returned when a hotspot carries a negative incident count.
var ErrNegativeIncidents = errors.New("incident count must be >= 0")

// Hotspot is a geographic cluster of reported incidents.
type Hotspot struct {
	ID        *int
	Lat       float64
	Lng       float64
	Location  string
	Incidents int
	RiskScore float64
}

// ZoneID returns the hotspot id, or fallback when the hotspot has none.
func (h Hotspot) ZoneID(fallback int) int {
	if h.ID != nil {
		return *h.ID
	}
	return fallback
}

// Metric selects the importance measure used for ranking.
type Metric int

const (
	ByIncidents Metric = iota
	ByRiskScore
)

func (m Metric) String() string {
	if m == ByRiskScore {
		return "risk_score"
	}
	return "incidents"
}

// Rank returns a copy of hs sorted by the metric, most important first.
// Ties keep their input order.
func Rank(hs []Hotspot, by Metric) []Hotspot {
	out := make([]Hotspot, len(hs))
	copy(out, hs)
	sort.SliceStable(out, func(i, j int) bool {
		if by == ByRiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].Incidents > out[j].Incidents
	})
	return out
}

// TotalIncidents sums the incident counts of hs.
func TotalIncidents(hs []Hotspot) int {
	total := 0
	for _, h := range hs {
		total += h.Incidents
	}
	return total
}
