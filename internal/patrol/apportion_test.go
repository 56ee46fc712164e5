package patrol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApportion(t *testing.T) {
	cases := []struct {
		name      string
		incidents []int
		total     int
		want      []int
	}{
		{"empty", nil, 5, []int{}},
		{"proportional", []int{10, 4, 0}, 5, []int{3, 1, 1}},
		{"remainder to busiest", []int{6, 3, 1}, 12, []int{8, 3, 1}},
		{"zero incidents enough officers", []int{0, 0, 0}, 5, []int{1, 1, 1}},
		{"zero incidents short", []int{0, 0, 0}, 2, []int{1, 1, 0}},
		{"reclaim repeats until minimum holds", []int{97, 1, 1, 1}, 4, []int{1, 1, 1, 1}},
		{"short budget drops quietest", []int{5, 3}, 1, []int{1, 0}},
		{"ties keep rank order", []int{2, 2, 2}, 4, []int{2, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Apportion(tc.incidents, tc.total))
		})
	}
}

func TestApportion_LargeBudget(t *testing.T) {
	assert.Equal(t, []int{math.MaxInt64}, Apportion([]int{1}, math.MaxInt64))
	assert.Equal(t, []int{1 << 62, 1<<62 - 1}, Apportion([]int{1, 1}, math.MaxInt64))

	got := Apportion([]int{math.MaxInt64, math.MaxInt64, 1}, math.MaxInt64)
	total := 0
	for _, a := range got {
		assert.GreaterOrEqual(t, a, 1)
		total += a
	}
	assert.Equal(t, math.MaxInt64, total)

	assert.Equal(t, []int{400_003, 300_001, 300_001}, Apportion([]int{4, 3, 3}, 1_000_005))
}

func TestClassifyMonotonic(t *testing.T) {
	assert.Equal(t, PriorityLow, Classify(0))
	assert.Equal(t, PriorityLow, Classify(4))
	assert.Equal(t, PriorityMedium, Classify(5))
	assert.Equal(t, PriorityMedium, Classify(9))
	assert.Equal(t, PriorityHigh, Classify(10))
	for a := 0; a < 30; a++ {
		assert.LessOrEqual(t, Classify(a).Severity(), Classify(a+1).Severity())
	}
}

func TestTimeEstimator(t *testing.T) {
	assert.Equal(t, 20, RecommendMinutes(0))
	assert.Equal(t, 70, RecommendMinutes(5))
	assert.Equal(t, 20, RecommendMinutes(-3))
	assert.Equal(t, 45, TimeEstimator{BaseMinutes: 15, PerIncidentMinutes: 5}.Minutes(6))
}

func TestRankStable(t *testing.T) {
	in := hotspots(3, 7, 3, 7)
	out := Rank(in, ByIncidents)
	ids := []int{}
	for _, h := range out {
		ids = append(ids, *h.ID)
	}
	assert.Equal(t, []int{2, 4, 1, 3}, ids)
	assert.Equal(t, 1, *in[0].ID, "input must not be reordered")
	assert.Empty(t, Rank(nil, ByRiskScore))
}

func TestBalanceRoutes_ClampsRouteCount(t *testing.T) {
	routes := BalanceRoutes([]PlanEntry{{Hotspot: Hotspot{Incidents: 2}, RecommendedMinutes: 40}}, 0)
	assert.Len(t, routes, 1)
	assert.Equal(t, 1, routes[0].Entries[0].RouteID)
	assert.Equal(t, 40, routes[0].Minutes)
}
