package patrol

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func hotspots(incidents ...int) []Hotspot {
	out := make([]Hotspot, len(incidents))
	for i, n := range incidents {
		out[i] = Hotspot{ID: intp(i + 1), Lat: 28.6 + float64(i)/100, Lng: 77.2, Location: "zone", Incidents: n}
	}
	return out
}

func TestBuildPatrolPlan_ProportionalShare(t *testing.T) {
	plan, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(10, 4, 0), TotalOfficers: 5, ShiftMinutes: 480})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 3)

	byID := map[int]PlanEntry{}
	sum := 0
	for _, e := range plan.Entries {
		byID[*e.Hotspot.ID] = e
		sum += e.RecommendedOfficers
		assert.GreaterOrEqual(t, e.RecommendedOfficers, 1)
	}
	assert.Equal(t, 5, sum)
	assert.Equal(t, 3, byID[1].RecommendedOfficers)
	assert.Equal(t, 1, byID[2].RecommendedOfficers)
	assert.Equal(t, 1, byID[3].RecommendedOfficers)

	assert.Equal(t, PriorityHigh, byID[1].Priority)
	assert.Equal(t, PriorityLow, byID[2].Priority)
	assert.Equal(t, 120, byID[1].RecommendedMinutes)
	assert.Equal(t, 20, byID[3].RecommendedMinutes)

	assert.Equal(t, Summary{RequestedHotspots: 3, RoutesCreated: 3, TotalOfficersAvailable: 5, TotalIncidents: 14}, plan.Summary)
}

func TestBuildPatrolPlan_EmptyHotspots(t *testing.T) {
	plan, err := BuildPatrolPlan(PlanRequest{TotalOfficers: 4})
	require.NoError(t, err)
	assert.Empty(t, plan.Entries)
	assert.NotNil(t, plan.Entries)
	assert.Equal(t, NoHotspotsMessage, plan.Summary.Message)
}

func TestBuildPatrolPlan_ClampsBudgets(t *testing.T) {
	plan, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(5, 3), TotalOfficers: 0, ShiftMinutes: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Summary.TotalOfficersAvailable)
	assert.Equal(t, 1, plan.Summary.RoutesCreated)
	assert.Equal(t, MinShiftMinutes, plan.ShiftMinutes)
	for _, e := range plan.Entries {
		assert.Equal(t, 1, e.RecommendedOfficers)
		assert.Equal(t, 1, e.RouteID)
	}
	// 70 + 50 minutes exceed the one-hour floor.
	require.Len(t, plan.OverShiftRoutes(), 1)
}

func TestBuildPatrolPlan_RejectsNegativeIncidents(t *testing.T) {
	_, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(3, -1), TotalOfficers: 4})
	require.ErrorIs(t, err, ErrNegativeIncidents)
}

func TestBuildPatrolPlan_RejectsOversizedBudget(t *testing.T) {
	_, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(3, 1), TotalOfficers: MaxTotalOfficers + 1})
	require.ErrorIs(t, err, ErrOfficerBudget)

	plan, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(3, 1), TotalOfficers: MaxTotalOfficers})
	require.NoError(t, err)
	assert.Equal(t, MaxTotalOfficers, plan.Entries[0].RecommendedOfficers+plan.Entries[1].RecommendedOfficers)
}

func TestBuildPatrolPlan_EntriesGroupedByRoute(t *testing.T) {
	plan, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(9, 7, 5, 3, 1), TotalOfficers: 2, ShiftMinutes: 480})
	require.NoError(t, err)
	require.Len(t, plan.Routes, 2)

	// 9 -> r1, 7 -> r2, 5 -> r2 (7<9), 3 -> r1 (9<12), 1 -> r1 (12=12, lowest index)
	ids := []int{}
	routes := []int{}
	for _, e := range plan.Entries {
		ids = append(ids, *e.Hotspot.ID)
		routes = append(routes, e.RouteID)
	}
	assert.Equal(t, []int{1, 4, 5, 2, 3}, ids)
	assert.Equal(t, []int{1, 1, 1, 2, 2}, routes)
	assert.Equal(t, 13, plan.Routes[0].Load)
	assert.Equal(t, 12, plan.Routes[1].Load)
}

func TestBuildPatrolPlan_Deterministic(t *testing.T) {
	req := PlanRequest{Hotspots: hotspots(4, 4, 2, 9, 0, 4), TotalOfficers: 7, ShiftMinutes: 300}
	first, err := BuildPatrolPlan(req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := BuildPatrolPlan(req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildUnitPlan_EarlyTermination(t *testing.T) {
	hs := []Hotspot{
		{ID: intp(10), RiskScore: 0.2},
		{ID: intp(11), RiskScore: 0.9},
		{ID: intp(12), RiskScore: 0.5},
	}
	plan := BuildUnitPlan(UnitRequest{Hotspots: hs, Units: intp(2), Capacity: intp(1)})
	assert.Equal(t, 2, plan.Assigned())
	require.Len(t, plan.Unassigned, 1)
	assert.Equal(t, 10, *plan.Unassigned[0].ID)

	recs := plan.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Unit)
	assert.Equal(t, 11, *recs[0].Hotspot.ID)
	assert.Equal(t, 1, recs[1].Unit)
	assert.Equal(t, 12, *recs[1].Hotspot.ID)
}

func TestBuildUnitPlan_Defaults(t *testing.T) {
	plan := BuildUnitPlan(UnitRequest{Hotspots: hotspots(1, 1, 1, 1, 1, 1, 1)})
	assert.Len(t, plan.Units, DefaultUnits)
	assert.Equal(t, 7, plan.Assigned())
	assert.Empty(t, plan.Unassigned)

	clamped := BuildUnitPlan(UnitRequest{Hotspots: hotspots(1, 2), Units: intp(-3), Capacity: intp(-1)})
	assert.Len(t, clamped.Units, 1)
	assert.Len(t, clamped.Unassigned, 2)
}

func TestAllocateUnits_MoreUnitsThanHotspots(t *testing.T) {
	plan := AllocateUnits([]Hotspot{{ID: intp(1), RiskScore: 1}}, 1<<50, 3)
	assert.Equal(t, 1<<50, plan.UnitCount)
	assert.Equal(t, 3, plan.Capacity)
	require.Len(t, plan.Units, 1)
	assert.Equal(t, 1, plan.Assigned())
	assert.Empty(t, plan.Unassigned)

	spread := AllocateUnits(Rank(hotspots(5, 4, 3), ByIncidents), 10, 1)
	recs := spread.Records()
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i, rec.Unit)
	}

	none := AllocateUnits(nil, 4, 2)
	assert.Equal(t, 4, none.UnitCount)
	assert.Empty(t, none.Units)
	assert.Empty(t, none.Unassigned)
}

func TestProperties_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(12)
		counts := make([]int, n)
		maxInc := 0
		for i := range counts {
			counts[i] = rng.Intn(25)
			maxInc = max(maxInc, counts[i])
		}
		officers := rng.Intn(20)

		plan, err := BuildPatrolPlan(PlanRequest{Hotspots: hotspots(counts...), TotalOfficers: officers, ShiftMinutes: 480})
		require.NoError(t, err)
		assert.LessOrEqual(t, LoadSpread(plan.Routes), maxInc)

		ranked := Rank(hotspots(counts...), ByIncidents)
		rankedCounts := make([]int, n)
		for i, h := range ranked {
			rankedCounts[i] = h.Incidents
		}
		budget := max(1, officers)
		alloc := Apportion(rankedCounts, budget)
		sum := 0
		for _, a := range alloc {
			sum += a
		}
		if budget >= n {
			assert.Equal(t, budget, sum, "counts=%v officers=%d", counts, budget)
			for _, a := range alloc {
				assert.GreaterOrEqual(t, a, 1)
			}
		} else {
			assert.LessOrEqual(t, sum, budget)
		}

		units, capacity := 1+rng.Intn(4), rng.Intn(4)
		up := AllocateUnits(ranked, units, capacity)
		for _, u := range up.Units {
			assert.LessOrEqual(t, u.Load(), capacity)
		}
		assert.Equal(t, n, up.Assigned()+len(up.Unassigned))
	}
}
