package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quietmap/noise-stats-etl/internal/geo"
)

func TestGridZoneID(t *testing.T) {
	id := geo.GridZoneID(44.4361, 26.1027, 0.01)
	assert.Equal(t, "grid_0p01_4443_2610", id)

	// Same cell, same id.
	assert.Equal(t, id, geo.GridZoneID(44.4399, 26.1001, 0.01))

	// Across the cell boundary the id changes.
	assert.NotEqual(t, id, geo.GridZoneID(44.4401, 26.1027, 0.01))
	assert.NotEqual(t, id, geo.GridZoneID(44.4361, 26.1100, 0.01))
}

func TestGridZoneID_NegativeCoordinates(t *testing.T) {
	// Floor, not truncation: -0.26 / 0.25 lands in cell -2.
	assert.Equal(t, "grid_0p25_m2_m1", geo.GridZoneID(-0.26, -0.1, 0.25))
}

func TestGridZoneID_CellSizeInID(t *testing.T) {
	coarse := geo.GridZoneID(44.4361, 26.1027, 0.1)
	fine := geo.GridZoneID(44.4361, 26.1027, 0.01)
	assert.NotEqual(t, coarse, fine)
	assert.Equal(t, "grid_0p1_444_261", coarse)
}

func TestGridZoneID_InvalidInput(t *testing.T) {
	assert.Empty(t, geo.GridZoneID(math.NaN(), 26.1, 0.01))
	assert.Empty(t, geo.GridZoneID(44.4, math.Inf(1), 0.01))
	assert.Empty(t, geo.GridZoneID(44.4, 26.1, 0))
	assert.Empty(t, geo.GridZoneID(44.4, 26.1, -0.01))
	assert.Empty(t, geo.GridZoneID(44.4, 26.1, math.NaN()))
}
