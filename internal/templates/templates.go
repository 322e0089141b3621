// Package templates renders the dashboard HTML. The markup lives in
// dashboard.templ; run `templ generate` after editing it.
package templates

import (
	"fmt"
	"math"
	"strconv"

	"github.com/a-h/templ"

	"transitrisk/internal/dashboard"
	"transitrisk/internal/disruption"
	"transitrisk/internal/risk"
	"transitrisk/internal/summary"
)

// Page holds layout fields shared by every page.
type Page struct {
	Title       string
	CurrentPath string
}

// DashboardData is everything the dashboard page shows.
type DashboardData struct {
	Page
	Report          *dashboard.Report
	PredictionError string
}

var monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type monthOption struct {
	Value    string
	Label    string
	Selected bool
}

func monthOptions(selected int) []monthOption {
	out := make([]monthOption, len(monthNames))
	for i, name := range monthNames {
		out[i] = monthOption{Value: strconv.Itoa(i + 1), Label: name, Selected: i+1 == selected}
	}
	return out
}

// failed reports whether view has a recorded error.
func failed(r *dashboard.Report, view string) bool {
	_, ok := r.Errors[view]
	return ok
}

type kpiCard struct {
	Label string
	Value string
}

func kpiCards(k *dashboard.KPIs) []kpiCard {
	return []kpiCard{
		{"Total services", strconv.Itoa(k.TotalServices)},
		{"Services removed", strconv.Itoa(k.ServicesRemoved)},
		{"Total stops", strconv.Itoa(k.TotalStops)},
		{"Avg removal rate", k.AvgRemovalRateText},
	}
}

// donutDash draws the removed share as a stroke-dasharray over a circle of
// circumference 100.
func donutDash(r *dashboard.Ratio) string {
	share := float64(r.Removed) / float64(r.Removed+r.Active) * 100
	return fmt.Sprintf("%.2f %.2f", share, 100-share)
}

// bar is one SVG column with its axis label. Label is empty for unlabelled
// columns.
type bar struct {
	X      string
	Y      string
	Height string
	Title  string
	Label  string
}

func trendBars(points []disruption.MonthRate) []bar {
	out := make([]bar, 0, len(points))
	for i, p := range points {
		height := p.Rate * 100
		name := monthNames[p.Month-1]
		out = append(out, bar{
			X:      strconv.Itoa(i*30 + 5),
			Y:      fmt.Sprintf("%.2f", 110-height),
			Height: fmt.Sprintf("%.2f", height),
			Title:  name + ": " + risk.Percent(p.Rate),
			Label:  name,
		})
	}
	return out
}

func hourBars(hist []summary.HourCount) []bar {
	peak := 0
	for _, h := range hist {
		peak = max(peak, h.Trips)
	}
	out := make([]bar, 0, len(hist))
	for _, h := range hist {
		height := 0.0
		if peak > 0 {
			height = float64(h.Trips) / float64(peak) * 100
		}
		b := bar{
			X:      strconv.Itoa(h.Hour*20 + 2),
			Y:      fmt.Sprintf("%.2f", 110-height),
			Height: fmt.Sprintf("%.2f", height),
			Title:  fmt.Sprintf("%02d:00 %d trips", h.Hour, h.Trips),
		}
		if h.Hour%3 == 0 {
			b.Label = fmt.Sprintf("%02d", h.Hour)
		}
		out = append(out, b)
	}
	return out
}

type dot struct {
	CX string
	CY string
}

// stopDots projects stops into a 400x300 viewBox. Points without
// coordinates are skipped.
func stopDots(v *dashboard.StopsView) []dot {
	ext := v.Extent
	w := max(ext.MaxLon-ext.MinLon, 1e-6)
	h := max(ext.MaxLat-ext.MinLat, 1e-6)
	out := make([]dot, 0, len(v.Points))
	for _, p := range v.Points {
		if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) {
			continue
		}
		x := (p.Lon-ext.MinLon)/w*390 + 5
		y := 295 - (p.Lat-ext.MinLat)/h*290
		out = append(out, dot{CX: fmt.Sprintf("%.1f", x), CY: fmt.Sprintf("%.1f", y)})
	}
	return out
}

func stopCaption(v *dashboard.StopsView) string {
	ext := v.Extent
	lon, lat := ext.Center()
	return fmt.Sprintf("%d stops, lon %.4f..%.4f, lat %.4f..%.4f, centered on %.4f, %.4f",
		len(v.Points), ext.MinLon, ext.MaxLon, ext.MinLat, ext.MaxLat, lon, lat)
}

func predictURL(month int) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/predict?month=%d", month))
}

func exportURL(format string, month int) templ.SafeURL {
	return templ.SafeURL(fmt.Sprintf("/api/export.%s?month=%d", format, month))
}
