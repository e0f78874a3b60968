// Package aggregate folds raw noise reports into hourly per-zone statistics.
// The fold is a pure in-memory reduction: feed reports through Add, then call
// Finalize once to resolve dominant categories and emit sorted aggregates.
package aggregate

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quietmap/noise-stats-etl/internal/domain"
	"github.com/quietmap/noise-stats-etl/internal/geo"
)

// ZoneMode selects how a report's zone identity is derived when the report
// does not carry one of its own.
type ZoneMode string

const (
	// ZoneModeGrid quantizes the report location into a fixed lat/lon grid.
	ZoneModeGrid ZoneMode = "grid"
	// ZoneModeSectors resolves the location against loaded sector polygons.
	ZoneModeSectors ZoneMode = "sectors"
	// ZoneModeNone leaves unzoned reports in the single empty-zone bucket.
	ZoneModeNone ZoneMode = "none"
)

// Config controls one aggregation run.
type Config struct {
	Mode        ZoneMode
	GridCellDeg float64
	// Resolver is required for ZoneModeSectors, ignored otherwise.
	Resolver *geo.SectorResolver
	// Location is the timezone in which hours are truncated. Bucket identity
	// depends on it, so it is an explicit input rather than the host locale.
	Location *time.Location
}

type bucketKey struct {
	startUnix int64
	zoneID    string
}

type accumulator struct {
	bucketStart time.Time
	zoneID      string
	minNoise    float64
	maxNoise    float64
	noiseSum    float64
	sampleCount int

	categoryCounts   map[string]int
	categoryNoiseSum map[string]float64
}

// Aggregator folds reports into (hour, zone) accumulators. Not safe for
// concurrent use; the pipeline is strictly sequential.
type Aggregator struct {
	cfg Config

	buckets   map[bucketKey]*accumulator
	processed int
	dropped   int
}

// New creates an Aggregator. A nil Location defaults to UTC.
func New(cfg Config) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Aggregator{
		cfg:     cfg,
		buckets: make(map[bucketKey]*accumulator),
	}
}

// Add folds one report into its bucket. Reports without a usable timestamp or
// with a non-finite noise level are silently dropped; this is best-effort
// aggregation over crowd-sourced input.
func (a *Aggregator) Add(r domain.RawReport) {
	if r.Timestamp.IsZero() || math.IsNaN(r.NoiseLevel) || math.IsInf(r.NoiseLevel, 0) {
		a.dropped++
		return
	}

	bucketStart := domain.TruncateToHour(r.Timestamp, a.cfg.Location)
	zoneID := a.zoneFor(r)
	key := bucketKey{startUnix: bucketStart.Unix(), zoneID: zoneID}

	acc := a.buckets[key]
	if acc == nil {
		acc = &accumulator{
			bucketStart:      bucketStart,
			zoneID:           zoneID,
			minNoise:         r.NoiseLevel,
			maxNoise:         r.NoiseLevel,
			categoryCounts:   make(map[string]int),
			categoryNoiseSum: make(map[string]float64),
		}
		a.buckets[key] = acc
	}

	acc.sampleCount++
	acc.noiseSum += r.NoiseLevel
	acc.minNoise = math.Min(acc.minNoise, r.NoiseLevel)
	acc.maxNoise = math.Max(acc.maxNoise, r.NoiseLevel)

	category := domain.NormalizeCategory(r.Category)
	acc.categoryCounts[category]++
	acc.categoryNoiseSum[category] += r.NoiseLevel

	a.processed++
}

// zoneFor returns the zone identity for a report: a pre-resolved zone wins,
// then the configured derivation strategy, then "".
func (a *Aggregator) zoneFor(r domain.RawReport) string {
	if z := strings.TrimSpace(r.ZoneID); z != "" {
		return z
	}
	if !r.HasLocation {
		return ""
	}

	switch a.cfg.Mode {
	case ZoneModeGrid:
		return geo.GridZoneID(r.Lat, r.Lon, a.cfg.GridCellDeg)
	case ZoneModeSectors:
		if a.cfg.Resolver != nil {
			return a.cfg.Resolver.Resolve(r.Lat, r.Lon)
		}
		return ""
	default:
		return ""
	}
}

// Finalize resolves each bucket's dominant category and emits aggregates
// sorted by bucket start, then zone id. Call once after all input is consumed.
func (a *Aggregator) Finalize() []domain.BucketAggregate {
	out := make([]domain.BucketAggregate, 0, len(a.buckets))
	for _, acc := range a.buckets {
		out = append(out, domain.BucketAggregate{
			ID:               domain.BucketID(acc.zoneID, acc.bucketStart),
			ZoneID:           acc.zoneID,
			Timestamp:        acc.bucketStart,
			SampleCount:      acc.sampleCount,
			MinNoise:         acc.minNoise,
			MaxNoise:         acc.maxNoise,
			AvgNoise:         acc.noiseSum / float64(acc.sampleCount),
			DominantCategory: dominantCategory(acc),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ZoneID < out[j].ZoneID
	})
	return out
}

// Processed returns the number of reports folded so far.
func (a *Aggregator) Processed() int { return a.processed }

// Dropped returns the number of reports skipped as malformed.
func (a *Aggregator) Dropped() int { return a.dropped }

// dominantCategory picks the category with the strictly highest count. Ties
// break on higher average noise, then on the lexicographically smaller name.
// The comparison is total, so the result does not depend on map iteration
// order.
func dominantCategory(acc *accumulator) string {
	best := ""
	bestCount := -1
	bestAvg := math.Inf(-1)

	for category, count := range acc.categoryCounts {
		avg := acc.categoryNoiseSum[category] / float64(count)

		switch {
		case count > bestCount:
		case count == bestCount && avg > bestAvg:
		case count == bestCount && avg == bestAvg && category < best:
		default:
			continue
		}
		best, bestCount, bestAvg = category, count, avg
	}
	return best
}
