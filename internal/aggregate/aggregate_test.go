package aggregate_test

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietmap/noise-stats-etl/internal/aggregate"
	"github.com/quietmap/noise-stats-etl/internal/domain"
	"github.com/quietmap/noise-stats-etl/internal/geo"
)

var bucharest = time.FixedZone("EEST", 3*3600)

func report(ts time.Time, level float64, category string, lat, lon float64) domain.RawReport {
	return domain.RawReport{
		Timestamp:   ts,
		NoiseLevel:  level,
		Category:    category,
		Lat:         lat,
		Lon:         lon,
		HasLocation: true,
	}
}

func TestAggregator_GridEndToEnd(t *testing.T) {
	agg := aggregate.New(aggregate.Config{
		Mode:        aggregate.ZoneModeGrid,
		GridCellDeg: 0.01,
		Location:    bucharest,
	})

	// First two reports share the hour and the 0.01-degree cell; the third is
	// the next hour.
	agg.Add(report(time.Date(2024, 6, 1, 10, 15, 0, 0, bucharest), 65, "trafic", 44.4361, 26.1027))
	agg.Add(report(time.Date(2024, 6, 1, 10, 47, 0, 0, bucharest), 80, "trafic", 44.4365, 26.1029))
	agg.Add(report(time.Date(2024, 6, 1, 11, 5, 0, 0, bucharest), 70, "santier", 44.4361, 26.1027))

	out := agg.Finalize()
	require.Len(t, out, 2)
	assert.Equal(t, 3, agg.Processed())
	assert.Zero(t, agg.Dropped())

	hour10 := out[0]
	assert.Equal(t, "grid_0p01_4443_2610_20240601_10", hour10.ID)
	assert.Equal(t, "grid_0p01_4443_2610", hour10.ZoneID)
	assert.Equal(t, 2, hour10.SampleCount)
	assert.InEpsilon(t, 65, hour10.MinNoise, 1e-9)
	assert.InEpsilon(t, 80, hour10.MaxNoise, 1e-9)
	assert.InEpsilon(t, 72.5, hour10.AvgNoise, 1e-9)
	assert.Equal(t, "trafic", hour10.DominantCategory)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, bucharest), hour10.Timestamp)

	hour11 := out[1]
	assert.Equal(t, 1, hour11.SampleCount)
	assert.Equal(t, "santier", hour11.DominantCategory)
	assert.InEpsilon(t, 70, hour11.MinNoise, 1e-9)
	assert.InEpsilon(t, 70, hour11.MaxNoise, 1e-9)
}

func TestAggregator_DropsMalformedReports(t *testing.T) {
	agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})

	agg.Add(domain.RawReport{NoiseLevel: 60}) // zero timestamp
	agg.Add(report(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), math.NaN(), "trafic", 44.4, 26.1))
	agg.Add(report(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), math.Inf(1), "trafic", 44.4, 26.1))
	agg.Add(report(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), 55, "trafic", 44.4, 26.1))

	out := agg.Finalize()
	require.Len(t, out, 1)
	assert.Equal(t, 1, agg.Processed())
	assert.Equal(t, 3, agg.Dropped())
	assert.Equal(t, 1, out[0].SampleCount)
}

func TestAggregator_DominantCategoryTieBreaks(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("count tie breaks on higher average", func(t *testing.T) {
		agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})
		for _, lvl := range []float64{70, 70, 70} {
			agg.Add(report(hour, lvl, "a", 44.4, 26.1))
		}
		for _, lvl := range []float64{75, 75, 75} {
			agg.Add(report(hour, lvl, "b", 44.4, 26.1))
		}

		out := agg.Finalize()
		require.Len(t, out, 1)
		assert.Equal(t, "b", out[0].DominantCategory)
	})

	t.Run("full tie breaks on lexicographic order", func(t *testing.T) {
		agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})
		for _, lvl := range []float64{70, 70, 70} {
			agg.Add(report(hour, lvl, "b", 44.4, 26.1))
		}
		for _, lvl := range []float64{70, 70, 70} {
			agg.Add(report(hour, lvl, "a", 44.4, 26.1))
		}

		out := agg.Finalize()
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].DominantCategory)
	})

	t.Run("strict majority wins regardless of average", func(t *testing.T) {
		agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})
		agg.Add(report(hour, 90, "muzica", 44.4, 26.1))
		for _, lvl := range []float64{50, 51} {
			agg.Add(report(hour, lvl, "trafic", 44.4, 26.1))
		}

		out := agg.Finalize()
		require.Len(t, out, 1)
		assert.Equal(t, "trafic", out[0].DominantCategory)
	})
}

func TestAggregator_CategoryNormalization(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})

	agg.Add(report(hour, 60, "  Trafic ", 44.4, 26.1))
	agg.Add(report(hour, 61, "trafic", 44.4, 26.1))
	agg.Add(report(hour, 40, "", 44.4, 26.1))

	out := agg.Finalize()
	require.Len(t, out, 1)
	// "  Trafic " and "trafic" count as one category; blank becomes unknown.
	assert.Equal(t, "trafic", out[0].DominantCategory)
}

func TestAggregator_PreResolvedZoneWins(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeGrid, GridCellDeg: 0.01, Location: time.UTC})

	r := report(hour, 60, "trafic", 44.4361, 26.1027)
	r.ZoneID = "3"
	agg.Add(r)

	out := agg.Finalize()
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].ZoneID)
	assert.Equal(t, "3_20240601_10", out[0].ID)
}

func TestAggregator_ZoneModeNoneForcesEmptyZone(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})

	agg.Add(report(hour, 60, "trafic", 44.4361, 26.1027))
	agg.Add(report(hour, 70, "trafic", 44.50, 26.08))

	out := agg.Finalize()
	require.Len(t, out, 1)
	assert.Empty(t, out[0].ZoneID)
	assert.Equal(t, "global_20240601_10", out[0].ID)
}

func TestAggregator_MissingLocationFallsToEmptyZone(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeGrid, GridCellDeg: 0.01, Location: time.UTC})

	agg.Add(domain.RawReport{Timestamp: hour, NoiseLevel: 60, Category: "trafic"})

	out := agg.Finalize()
	require.Len(t, out, 1)
	assert.Empty(t, out[0].ZoneID)
}

func TestAggregator_SectorMode(t *testing.T) {
	hour := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	resolver := geo.NewCentroidResolver(geo.Bounds{}, nil)

	agg := aggregate.New(aggregate.Config{
		Mode:     aggregate.ZoneModeSectors,
		Resolver: resolver,
		Location: time.UTC,
	})

	agg.Add(report(hour, 60, "trafic", 44.50, 26.08)) // sector 1 centroid
	agg.Add(report(hour, 62, "trafic", 0, 0))         // out of bounds, empty zone

	out := agg.Finalize()
	require.Len(t, out, 2)

	zones := []string{out[0].ZoneID, out[1].ZoneID}
	assert.ElementsMatch(t, []string{"", "1"}, zones)
}

func TestAggregator_TimezoneAffectsBucketIdentity(t *testing.T) {
	// 23:30 UTC on June 1 is 02:30 June 2 in UTC+3: the bucket lands on a
	// different date depending on the configured zone.
	ts := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)

	utcAgg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: time.UTC})
	utcAgg.Add(report(ts, 60, "trafic", 44.4, 26.1))
	utcOut := utcAgg.Finalize()
	require.Len(t, utcOut, 1)
	assert.Equal(t, "global_20240601_23", utcOut[0].ID)

	localAgg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeNone, Location: bucharest})
	localAgg.Add(report(ts, 60, "trafic", 44.4, 26.1))
	localOut := localAgg.Finalize()
	require.Len(t, localOut, 1)
	assert.Equal(t, "global_20240602_02", localOut[0].ID)
}

func TestAggregator_DeterministicAcrossRuns(t *testing.T) {
	build := func() []domain.BucketAggregate {
		agg := aggregate.New(aggregate.Config{Mode: aggregate.ZoneModeGrid, GridCellDeg: 0.01, Location: time.UTC})
		base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 50; i++ {
			agg.Add(report(base.Add(time.Duration(i)*7*time.Minute), float64(40+i%20),
				[]string{"trafic", "santier", "muzica"}[i%3],
				44.40+float64(i%5)*0.011, 26.10+float64(i%7)*0.011))
		}
		return agg.Finalize()
	}

	first := build()
	second := build()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}

	for _, agg := range first {
		assert.LessOrEqual(t, agg.MinNoise, agg.MaxNoise, "bucket %s", agg.ID)
	}
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].Timestamp.Before(first[i-1].Timestamp), "output not sorted at %d", i)
	}
}
