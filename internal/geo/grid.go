package geo

import (
	"math"
	"strconv"
	"strings"
)

// gridIDReplacer substitutes characters that are unsafe in document ids.
var gridIDReplacer = strings.NewReplacer(".", "p", "-", "m")

// GridZoneID quantizes a coordinate into a fixed-size lat/lon grid cell and
// encodes it as a stable id: "grid_{cellSize}_{latCell}_{lonCell}". The cell
// size is embedded so ids from different granularities never collide.
// Returns "" for non-finite coordinates or a non-positive cell size.
func GridZoneID(lat, lon, cellSizeDeg float64) string {
	if !isFinite(lat) || !isFinite(lon) {
		return ""
	}
	if !isFinite(cellSizeDeg) || cellSizeDeg <= 0 {
		return ""
	}

	latCell := int64(math.Floor(lat / cellSizeDeg))
	lonCell := int64(math.Floor(lon / cellSizeDeg))
	cellPart := gridIDReplacer.Replace(strconv.FormatFloat(cellSizeDeg, 'f', -1, 64))

	return "grid_" + cellPart + "_" + strconv.FormatInt(latCell, 10) + "_" + strconv.FormatInt(lonCell, 10)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
