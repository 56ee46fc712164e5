package patrol

// PlanEntry is a hotspot annotated with its recommended patrol resources.
type PlanEntry struct {
	Hotspot             Hotspot
	Priority            Priority
	RecommendedOfficers int
	RecommendedMinutes  int
	RouteID             int
}

// Route groups plan entries patrolled together.
type Route struct {
	ID      int
	Entries []PlanEntry
	// Load is the summed incident count of the entries.
	Load int
	// Minutes is the summed recommended visit time of the entries.
	Minutes int
	// OverShift is set when Minutes exceeds the shift length the route was built for.
	OverShift bool
}

// BalanceRoutes groups entries into routes so that incident load stays even.
// Entries are taken in the given order and each one joins the route with the
// lowest load so far, ties going to the lowest route. Route ids start at 1.
func BalanceRoutes(entries []PlanEntry, routes int) []Route {
	if routes < 1 {
		routes = 1
	}
	out := make([]Route, routes)
	for r := range out {
		out[r] = Route{ID: r + 1, Entries: []PlanEntry{}}
	}
	for _, e := range entries {
		best := 0
		for r := 1; r < routes; r++ {
			if out[r].Load < out[best].Load {
				best = r
			}
		}
		out[best].Entries = append(out[best].Entries, e)
		out[best].Load += e.Hotspot.Incidents
		out[best].Minutes += e.RecommendedMinutes
	}
	for r := range out {
		for i := range out[r].Entries {
			out[r].Entries[i].RouteID = out[r].ID
		}
	}
	return out
}

// LoadSpread is the difference between the heaviest and lightest route load.
func LoadSpread(routes []Route) int {
	if len(routes) == 0 {
		return 0
	}
	lo, hi := routes[0].Load, routes[0].Load
	for _, r := range routes[1:] {
		lo = min(lo, r.Load)
		hi = max(hi, r.Load)
	}
	return hi - lo
}
