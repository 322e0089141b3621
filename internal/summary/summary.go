// Package summary holds the stateless stop and frequency summaries.
package summary

import (
	"math"
	"strings"
	"time"

	"transitrisk/internal/geo"
	"transitrisk/internal/gtfs"
)

// Coordinate is a stop position.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// HourCount is one bar of the hourly histogram.
type HourCount struct {
	Hour  int `json:"hour"`
	Trips int `json:"trips"`
}

// startTimeLayouts are tried in order. GTFS times past 23:59:59 do not
// parse and are dropped.
var startTimeLayouts = []string{"15:04:05", "15:04"}

// StopCoordinates projects stops to (lon, lat) pairs in input order. Stops
// without coordinates project to NaN pairs.
func StopCoordinates(stops []gtfs.Stop) []Coordinate {
	out := make([]Coordinate, len(stops))
	for i, s := range stops {
		out[i] = Coordinate{Lon: s.StopLon, Lat: s.StopLat}
	}
	return out
}

// Located drops pairs with a NaN coordinate, keeping order.
func Located(coords []Coordinate) []Coordinate {
	out := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		if !math.IsNaN(c.Lon) && !math.IsNaN(c.Lat) {
			out = append(out, c)
		}
	}
	return out
}

// StopExtent returns the bounding box of coords.
func StopExtent(coords []Coordinate) geo.Bounds {
	lons := make([]float64, len(coords))
	lats := make([]float64, len(coords))
	for i, c := range coords {
		lons[i], lats[i] = c.Lon, c.Lat
	}
	return geo.Extent(lons, lats)
}

// StartHour returns the hour of a frequency start time.
func StartHour(startTime string) (int, bool) {
	s := strings.TrimSpace(startTime)
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}

// HourlyTripCounts counts frequency entries per start hour. Unparseable
// start times are skipped and hours without trips are absent.
func HourlyTripCounts(freqs []gtfs.Frequency) map[int]int {
	counts := make(map[int]int)
	for _, f := range freqs {
		if h, ok := StartHour(f.StartTime); ok {
			counts[h]++
		}
	}
	return counts
}

// HourlyHistogram lays counts out as 24 bars, 0..23, zero-filled.
func HourlyHistogram(counts map[int]int) []HourCount {
	out := make([]HourCount, 24)
	for h := range out {
		out[h] = HourCount{Hour: h, Trips: counts[h]}
	}
	return out
}
