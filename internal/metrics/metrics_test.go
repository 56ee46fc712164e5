package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStats(t *testing.T) {
	spread, sd := LoadStats(nil)
	assert.Zero(t, spread)
	assert.Zero(t, sd)

	spread, sd = LoadStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 7.0, spread)
	assert.InDelta(t, 2.0, sd, 1e-9)
}

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterDefault()
		RegisterDefault()
	})
	Predictions.Add(3)
	ObserveRouteLoads([]float64{3, 1})

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hotspot_predictions_total"])
	assert.True(t, names["patrol_route_load_spread"])
}
