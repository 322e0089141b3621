package geo

import "math"

// Bounds is an axis-aligned lon/lat rectangle. The zero value is empty.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
	Empty  bool    `json:"empty"`
}

// Extent returns the bounds of the given points. Coordinates are not
// validated; NaN values are skipped.
func Extent(lons, lats []float64) Bounds {
	b := Bounds{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	n := min(len(lons), len(lats))
	seen := 0
	for i := 0; i < n; i++ {
		lon, lat := lons[i], lats[i]
		if math.IsNaN(lon) || math.IsNaN(lat) {
			continue
		}
		b.MinLon = math.Min(b.MinLon, lon)
		b.MaxLon = math.Max(b.MaxLon, lon)
		b.MinLat = math.Min(b.MinLat, lat)
		b.MaxLat = math.Max(b.MaxLat, lat)
		seen++
	}
	if seen == 0 {
		return Bounds{Empty: true}
	}
	return b
}

// Center returns the midpoint of b.
func (b Bounds) Center() (lon, lat float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}
