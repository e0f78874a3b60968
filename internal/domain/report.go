package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/type/latlng"
)

// RawReport is the canonical form of one crowd-sourced noise report after
// shape normalization. Reports with a zero Timestamp or a non-finite
// NoiseLevel are dropped by the aggregator, not here.
type RawReport struct {
	UserID      string
	Category    string
	NoiseLevel  float64
	Timestamp   time.Time
	Lat         float64
	Lon         float64
	HasLocation bool

	// ZoneID is a pre-resolved zone carried by some reports. Blank for most.
	ZoneID string
}

// BucketAggregate is one persisted (hour, zone) aggregate. Its ID is
// deterministic, so re-running the job overwrites rather than duplicates.
type BucketAggregate struct {
	ID               string    `firestore:"id" json:"id"`
	ZoneID           string    `firestore:"zoneId" json:"zoneId"`
	Timestamp        time.Time `firestore:"timestamp" json:"timestamp"`
	SampleCount      int       `firestore:"sampleCount" json:"sampleCount"`
	MinNoise         float64   `firestore:"minNoise" json:"minNoise"`
	MaxNoise         float64   `firestore:"maxNoise" json:"maxNoise"`
	AvgNoise         float64   `firestore:"avgNoise" json:"avgNoise"`
	DominantCategory string    `firestore:"dominantCategory" json:"dominantCategory"`
}

// ParseReportDoc normalizes a raw document into a RawReport. Reports were
// written by several client versions, so fields arrive under varying shapes:
// the location may be a GeoPoint, a {latitude, longitude} map, or a
// {_latitude, _longitude} map from older serializers, and the noise level may
// be numeric or a numeric string. Unrecognized fields are left at their zero
// values for the aggregator to drop.
func ParseReportDoc(data map[string]any) RawReport {
	r := RawReport{
		UserID:     asString(data["userId"]),
		Category:   asString(data["category"]),
		ZoneID:     asString(data["zoneId"]),
		NoiseLevel: asFloat(data["noiseLevel"]),
		Timestamp:  asTime(data["reportTimestamp"]),
	}
	if lat, lon, ok := asLatLon(data["location"]); ok {
		r.Lat, r.Lon, r.HasLocation = lat, lon, true
	}
	return r
}

// NormalizeCategory lowercases and trims a category, mapping blank to "unknown".
func NormalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "unknown"
	}
	return category
}

// BucketID renders the deterministic document id for an (hour, zone) bucket:
// "{zone}_{YYYYMMDD}_{HH}", with "global" standing in for the empty zone.
// The date and hour are rendered in the bucket start's own location.
func BucketID(zoneID string, bucketStart time.Time) string {
	zonePart := strings.TrimSpace(zoneID)
	if zonePart == "" {
		zonePart = "global"
	}
	return zonePart + "_" + bucketStart.Format("20060102_15")
}

// TruncateToHour zeroes out minutes and below in the given location.
func TruncateToHour(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func asLatLon(v any) (lat, lon float64, ok bool) {
	switch loc := v.(type) {
	case *latlng.LatLng:
		if loc == nil {
			return 0, 0, false
		}
		return loc.Latitude, loc.Longitude, true
	case map[string]any:
		if lat, lon, ok := numericPair(loc, "latitude", "longitude"); ok {
			return lat, lon, true
		}
		return numericPair(loc, "_latitude", "_longitude")
	default:
		return 0, 0, false
	}
}

func numericPair(m map[string]any, latKey, lonKey string) (float64, float64, bool) {
	lat, okLat := m[latKey].(float64)
	lon, okLon := m[lonKey].(float64)
	return lat, lon, okLat && okLon
}
