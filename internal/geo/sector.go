package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
)

// Bounds is a coarse lat/lon bounding box used as a sanity filter before any
// geometry work.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box. Non-finite
// coordinates are never contained.
func (b Bounds) Contains(lat, lon float64) bool {
	if !isFinite(lat) || !isFinite(lon) {
		return false
	}
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BucharestBounds approximates the city limits with a small buffer.
var BucharestBounds = Bounds{MinLat: 44.32, MaxLat: 44.58, MinLon: 25.92, MaxLon: 26.32}

// Centroid is a reference point for nearest-centroid classification.
type Centroid struct {
	ID  string
	Lat float64
	Lon float64
}

// DefaultSectorCentroids are hand-tuned approximations of Bucharest's six
// administrative sectors. Good enough as a fallback when no sector polygons
// are loaded.
var DefaultSectorCentroids = []Centroid{
	{ID: "1", Lat: 44.50, Lon: 26.08}, // Nord / Nord-Vest (Baneasa)
	{ID: "2", Lat: 44.48, Lon: 26.16}, // Nord-Est (Colentina)
	{ID: "3", Lat: 44.41, Lon: 26.18}, // Est / Sud-Est (Titan)
	{ID: "4", Lat: 44.35, Lon: 26.12}, // Sud (Berceni)
	{ID: "5", Lat: 44.39, Lon: 26.05}, // Sud-Vest (Rahova)
	{ID: "6", Lat: 44.43, Lon: 26.00}, // Vest (Militari)
}

// Point is a lon/lat vertex, matching GeoJSON coordinate order.
type Point struct {
	Lon float64
	Lat float64
}

// Polygon is one outer ring followed by zero or more hole rings.
type Polygon [][]Point

// Sector is one administrative zone, possibly multi-part.
type Sector struct {
	ID       string
	Polygons []Polygon
}

// SectorResolver maps coordinates to sector ids. With sector polygons loaded
// it does point-in-polygon; otherwise it falls back to nearest centroid.
// Pure after construction, safe for concurrent use.
type SectorResolver struct {
	bounds    Bounds
	sectors   []Sector
	centroids []Centroid
}

// NewCentroidResolver builds a resolver that classifies by nearest centroid
// only. Zero-value bounds fall back to BucharestBounds; nil centroids fall
// back to DefaultSectorCentroids.
func NewCentroidResolver(bounds Bounds, centroids []Centroid) *SectorResolver {
	if bounds == (Bounds{}) {
		bounds = BucharestBounds
	}
	if len(centroids) == 0 {
		centroids = DefaultSectorCentroids
	}
	return &SectorResolver{bounds: bounds, centroids: centroids}
}

// NewSectorResolver builds a resolver over an explicit polygon set.
func NewSectorResolver(bounds Bounds, sectors []Sector) (*SectorResolver, error) {
	if len(sectors) == 0 {
		return nil, errors.New("sector polygon set is empty")
	}
	if bounds == (Bounds{}) {
		bounds = BucharestBounds
	}
	return &SectorResolver{bounds: bounds, sectors: sectors}, nil
}

// LoadSectorResolver reads a GeoJSON FeatureCollection of sector boundaries
// and builds a polygon-based resolver. Fails fast on malformed input or when
// no feature carries a recognized sector id.
func LoadSectorResolver(r io.Reader, bounds Bounds) (*SectorResolver, error) {
	sectors, err := ParseSectors(r)
	if err != nil {
		return nil, err
	}
	return NewSectorResolver(bounds, sectors)
}

// Resolve returns the sector id for a coordinate, or "" when the point falls
// outside the bounding box or inside no loaded polygon. With no polygon set
// the nearest centroid wins; distance ties resolve to the earlier centroid in
// the list.
func (r *SectorResolver) Resolve(lat, lon float64) string {
	if !r.bounds.Contains(lat, lon) {
		return ""
	}

	if len(r.sectors) > 0 {
		// First match wins; sector boundaries are disjoint in valid input,
		// and load order is the tie-break if they are not.
		for _, s := range r.sectors {
			for _, poly := range s.Polygons {
				if pointInPolygon(lon, lat, poly) {
					return s.ID
				}
			}
		}
		return ""
	}

	best := ""
	bestD2 := math.Inf(1)
	for _, c := range r.centroids {
		d2 := distance2(lat, lon, c.Lat, c.Lon)
		if d2 < bestD2 {
			bestD2 = d2
			best = c.ID
		}
	}
	return best
}

// distance2 is a squared equirectangular approximation, fine for comparing
// distances at municipal scale.
func distance2(lat, lon, refLat, refLon float64) float64 {
	midLatRad := (lat + refLat) / 2 * math.Pi / 180
	x := (lon - refLon) * math.Cos(midLatRad)
	y := lat - refLat
	return x*x + y*y
}

// pointInRing runs the ray-casting test against one ring.
func pointInRing(lon, lat float64, ring []Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat

		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// pointInPolygon tests the outer ring, then subtracts holes: a point inside a
// hole is not in the polygon.
func pointInPolygon(lon, lat float64, poly Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	if !pointInRing(lon, lat, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if pointInRing(lon, lat, hole) {
			return false
		}
	}
	return true
}

var sectorIDRe = regexp.MustCompile(`^[1-6]$`)

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Properties map[string]any   `json:"properties"`
	Geometry   *geoJSONGeometry `json:"geometry"`
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseSectors extracts sector polygons from a GeoJSON FeatureCollection.
// Features carry their sector id under one of the properties sector, SECTOR,
// id, or ID; features without a recognized id or without polygon geometry are
// skipped. Zero usable features is an error.
func ParseSectors(r io.Reader) ([]Sector, error) {
	var fc geoJSONCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse sectors geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse sectors geojson: expected FeatureCollection, got %q", fc.Type)
	}

	var sectors []Sector
	for _, f := range fc.Features {
		id := featureSectorID(f.Properties)
		if id == "" || f.Geometry == nil {
			continue
		}

		switch f.Geometry.Type {
		case "Polygon":
			var coords [][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
				return nil, fmt.Errorf("sector %s: decode polygon: %w", id, err)
			}
			sectors = append(sectors, Sector{ID: id, Polygons: []Polygon{toPolygon(coords)}})
		case "MultiPolygon":
			var coords [][][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
				return nil, fmt.Errorf("sector %s: decode multipolygon: %w", id, err)
			}
			polys := make([]Polygon, 0, len(coords))
			for _, p := range coords {
				polys = append(polys, toPolygon(p))
			}
			sectors = append(sectors, Sector{ID: id, Polygons: polys})
		}
	}

	if len(sectors) == 0 {
		return nil, errors.New("sectors geojson loaded, but no feature carried a sector id in [1..6]")
	}
	return sectors, nil
}

func featureSectorID(props map[string]any) string {
	for _, key := range []string{"sector", "SECTOR", "id", "ID"} {
		if v, ok := props[key]; ok {
			id := strings.TrimSpace(fmt.Sprintf("%v", v))
			if sectorIDRe.MatchString(id) {
				return id
			}
		}
	}
	return ""
}

// toPolygon converts GeoJSON [lon, lat] coordinate arrays into rings.
func toPolygon(rings [][][2]float64) Polygon {
	poly := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		pts := make([]Point, 0, len(ring))
		for _, c := range ring {
			pts = append(pts, Point{Lon: c[0], Lat: c[1]})
		}
		poly = append(poly, pts)
	}
	return poly
}
