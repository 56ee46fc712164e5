package patrol

// UnitAssignment is the ordered list of hotspots one patrol unit covers.
type UnitAssignment struct {
	Unit     int
	Hotspots []Hotspot
}

// Load is the number of hotspots assigned to the unit.
func (u UnitAssignment) Load() int { return len(u.Hotspots) }

// UnitRecord is one flattened unit/hotspot pair.
type UnitRecord struct {
	Unit    int
	Hotspot Hotspot
}

// UnitPlan is the result of capacity-bounded allocation.
type UnitPlan struct {
	// UnitCount is the number of units available and Capacity the hotspots each
	// may hold. Units only has accumulators for units that could receive a
	// hotspot, at most one per ranked hotspot.
	UnitCount int
	Capacity  int
	Units     []UnitAssignment
	// Unassigned holds every hotspot left without a unit once all units were full,
	// in rank order.
	Unassigned []Hotspot
}

// Records flattens the plan unit by unit, keeping assignment order inside a unit.
func (p UnitPlan) Records() []UnitRecord {
	out := []UnitRecord{}
	for _, u := range p.Units {
		for i := range u.Hotspots {
			out = append(out, UnitRecord{Unit: u.Unit, Hotspot: u.Hotspots[i]})
		}
	}
	return out
}

// Assigned is the number of hotspots that received a unit.
func (p UnitPlan) Assigned() int {
	n := 0
	for _, u := range p.Units {
		n += u.Load()
	}
	return n
}

// AllocateUnits places ranked hotspots onto units round-robin. A cursor walks
// the units; each hotspot goes to the first unit at or after the cursor with
// spare capacity and the cursor moves past it. When no unit has room the
// allocation stops and the rest of the hotspots are reported as unassigned.
func AllocateUnits(ranked []Hotspot, units, capacity int) UnitPlan {
	units = max(units, 0)
	// Every hotspot visits a fresh unit until the cursor wraps, so units past
	// len(ranked) stay empty.
	active := min(units, len(ranked))
	plan := UnitPlan{UnitCount: units, Capacity: capacity, Units: make([]UnitAssignment, active), Unassigned: []Hotspot{}}
	for u := range plan.Units {
		plan.Units[u] = UnitAssignment{Unit: u, Hotspots: []Hotspot{}}
	}
	if active == 0 {
		plan.Unassigned = append(plan.Unassigned, ranked...)
		return plan
	}

	cursor := 0
	for i, h := range ranked {
		assigned := false
		for tries := 0; tries < active; tries++ {
			u := &plan.Units[cursor]
			cursor = (cursor + 1) % active
			if len(u.Hotspots) < capacity {
				u.Hotspots = append(u.Hotspots, h)
				assigned = true
				break
			}
		}
		if !assigned {
			plan.Unassigned = append(plan.Unassigned, ranked[i:]...)
			break
		}
	}
	return plan
}
