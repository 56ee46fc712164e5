package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMeters(t *testing.T) {
	// One degree of latitude is roughly 111.2 km.
	assert.InDelta(t, 111195, DistanceMeters(0, 0, 1, 0), 50)
	assert.Zero(t, DistanceMeters(12.93, 77.61, 12.93, 77.61))
}

func TestAggregate(t *testing.T) {
	pts := []Point{
		{Lat: 12.9345, Lng: 77.6101, Label: "Koramangala", Risk: 0.8},
		{Lat: 12.9346, Lng: 77.6102, Label: "Koramangala", Risk: 0.6},
		{Lat: 12.9400, Lng: 77.5950, Label: "Jayanagar", Risk: 0.5},
		{Lat: 12.9344, Lng: 77.6100, Label: "Ejipura", Risk: 0.4},
		{Lat: 12.9401, Lng: 77.5951, Label: "Jayanagar", Risk: 0.1},
		{Lat: 13.2000, Lng: 77.7000, Label: "Airport", Risk: 0.9},
	}
	hs := Aggregate(pts, 300, 2)
	require.Len(t, hs, 2)

	assert.Equal(t, 1, *hs[0].ID)
	assert.Equal(t, 3, hs[0].Incidents)
	assert.Equal(t, "Koramangala", hs[0].Location)
	assert.InDelta(t, 0.6, hs[0].RiskScore, 1e-9)
	assert.InDelta(t, 12.9345, hs[0].Lat, 1e-6)

	assert.Equal(t, 2, *hs[1].ID)
	assert.Equal(t, 2, hs[1].Incidents)
	assert.Equal(t, "Jayanagar", hs[1].Location)
}

func TestAggregateDefaults(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 0, 0))
	hs := Aggregate([]Point{{Lat: 1, Lng: 1}}, 0, 0)
	require.Len(t, hs, 1)
	assert.Equal(t, "", hs[0].Location)
	assert.Equal(t, 1, hs[0].Incidents)
}
