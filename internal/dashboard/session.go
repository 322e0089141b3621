// Package dashboard assembles the structured outputs shown by the web
// dashboard and the CLI report from the session's catalog and risk model.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"transitrisk/internal/disruption"
	"transitrisk/internal/geo"
	"transitrisk/internal/gtfs"
	"transitrisk/internal/metrics"
	"transitrisk/internal/risk"
	"transitrisk/internal/summary"
)

// ErrInvalidMonth is returned for a month outside 1..12.
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// Session binds one catalog and one risk adapter for the life of the
// process. Both are injected; nothing here is package-level state.
type Session struct {
	cat         *gtfs.Catalog
	model       *risk.Adapter
	logger      *slog.Logger
	previewRows int

	mu         sync.Mutex
	exceptions []disruption.Exception
}

// NewSession creates a Session. previewRows bounds Preview.
func NewSession(cat *gtfs.Catalog, model *risk.Adapter, previewRows int, logger *slog.Logger) *Session {
	if previewRows <= 0 {
		previewRows = 20
	}
	return &Session{cat: cat, model: model, logger: logger, previewRows: previewRows}
}

// KPIs are the headline figures for a month.
type KPIs struct {
	Month              int     `json:"month"`
	TotalServices      int     `json:"total_services"`
	ServicesRemoved    int     `json:"services_removed"`
	TotalStops         int     `json:"total_stops"`
	AvgRemovalRate     float64 `json:"avg_removal_rate"`
	AvgRemovalRateText string  `json:"avg_removal_rate_text"`
}

// Ratio splits a month's exceptions into removed and active.
type Ratio struct {
	Month   int `json:"month"`
	Removed int `json:"removed"`
	Active  int `json:"active"`
}

// HourlyView is the trip count per start hour.
type HourlyView struct {
	Counts    map[int]int         `json:"counts"`
	Histogram []summary.HourCount `json:"histogram"`
}

// StopsView is the stop scatter with its extent. Stops without
// coordinates are not plotted.
type StopsView struct {
	Points []summary.Coordinate `json:"points"`
	Extent geo.Bounds           `json:"extent"`
}

// PredictionView is the outcome of an explicit prediction request.
type PredictionView struct {
	Available   bool    `json:"available"`
	ServiceID   string  `json:"service_id,omitempty"`
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
	HighRisk    bool    `json:"high_risk"`
	Message     string  `json:"message"`
}

// CheckMonth returns ErrInvalidMonth unless month is 1..12.
func CheckMonth(month int) error {
	if !disruption.ValidMonth(month) {
		return fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	return nil
}

// table returns the derived exception table, building it on first use.
func (s *Session) table(ctx context.Context) ([]disruption.Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exceptions != nil {
		return s.exceptions, nil
	}
	dates, err := s.cat.CalendarDates(ctx)
	if err != nil {
		return nil, err
	}
	t := disruption.Derive(dates)
	undated := 0
	for _, e := range t {
		if !e.HasMonth() {
			undated++
		}
	}
	if undated > 0 {
		s.logger.Debug("calendar exceptions without a parseable date", "rows", undated)
	}
	s.exceptions = t
	return t, nil
}

func (s *Session) month(ctx context.Context, month int) ([]disruption.Exception, error) {
	if err := CheckMonth(month); err != nil {
		return nil, err
	}
	t, err := s.table(ctx)
	if err != nil {
		return nil, err
	}
	return disruption.FilterByMonth(t, month), nil
}

// KPIs computes the headline figures for month.
func (s *Session) KPIs(ctx context.Context, month int) (KPIs, error) {
	subset, err := s.month(ctx, month)
	if err != nil {
		return KPIs{}, err
	}
	calendar, err := s.cat.Calendar(ctx)
	if err != nil {
		return KPIs{}, err
	}
	stops, err := s.cat.Stops(ctx)
	if err != nil {
		return KPIs{}, err
	}

	ids := make(map[string]struct{}, len(calendar))
	for _, c := range calendar {
		ids[c.ServiceID] = struct{}{}
	}
	rate := disruption.RemovalRate(subset)
	return KPIs{
		Month:              month,
		TotalServices:      len(ids),
		ServicesRemoved:    disruption.RemovedCount(subset),
		TotalStops:         len(stops),
		AvgRemovalRate:     rate,
		AvgRemovalRateText: risk.Percent(rate),
	}, nil
}

// RemovalRatio counts removed and active exceptions for month.
func (s *Session) RemovalRatio(ctx context.Context, month int) (Ratio, error) {
	subset, err := s.month(ctx, month)
	if err != nil {
		return Ratio{}, err
	}
	return Ratio{
		Month:   month,
		Removed: disruption.RemovedCount(subset),
		Active:  disruption.ActiveCount(subset),
	}, nil
}

// MonthlyTrend returns the removal rate for each month of the year.
func (s *Session) MonthlyTrend(ctx context.Context) ([]disruption.MonthRate, error) {
	t, err := s.table(ctx)
	if err != nil {
		return nil, err
	}
	return disruption.MonthlyTrend(t), nil
}

// HourlyTrips counts frequency entries by start hour.
func (s *Session) HourlyTrips(ctx context.Context) (HourlyView, error) {
	freqs, err := s.cat.Frequencies(ctx)
	if err != nil {
		return HourlyView{}, err
	}
	counts := summary.HourlyTripCounts(freqs)
	return HourlyView{Counts: counts, Histogram: summary.HourlyHistogram(counts)}, nil
}

// StopLocations returns every stop position that has coordinates, and their extent.
func (s *Session) StopLocations(ctx context.Context) (StopsView, error) {
	stops, err := s.cat.Stops(ctx)
	if err != nil {
		return StopsView{}, err
	}
	pts := summary.Located(summary.StopCoordinates(stops))
	return StopsView{Points: pts, Extent: summary.StopExtent(pts)}, nil
}

// Predict scores the first calendar service. It is only ever called on an
// explicit request. A missing model is reported in the view, not as an error.
func (s *Session) Predict(ctx context.Context) (PredictionView, error) {
	if !s.model.Available() {
		metrics.Predictions.WithLabelValues("unavailable").Inc()
		return PredictionView{Message: "Prediction model not available."}, nil
	}

	services, err := s.cat.Services(ctx)
	if err != nil {
		metrics.Predictions.WithLabelValues("failed").Inc()
		return PredictionView{}, err
	}
	if len(services) == 0 {
		metrics.Predictions.WithLabelValues("failed").Inc()
		return PredictionView{}, fmt.Errorf("%w: calendar has no services", risk.ErrPredictionFailed)
	}

	svc := services[0]
	p, err := s.model.Predict(risk.BuildFeatures(svc))
	if err != nil {
		metrics.Predictions.WithLabelValues("failed").Inc()
		s.logger.Warn("prediction failed", "service_id", svc.ServiceID, "error", err)
		return PredictionView{}, err
	}

	outcome := "low"
	if p.HighRisk() {
		outcome = "high"
	}
	metrics.Predictions.WithLabelValues(outcome).Inc()
	s.logger.Info("prediction", "service_id", svc.ServiceID, "label", p.Label, "probability", p.Probability)

	return PredictionView{
		Available:   true,
		ServiceID:   svc.ServiceID,
		Label:       p.Label,
		Probability: p.Probability,
		HighRisk:    p.HighRisk(),
		Message:     p.Message(),
	}, nil
}

// ModelStatus describes the session's risk model.
type ModelStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Model reports whether a model is loaded and, if a model file exists but
// could not be used, why.
func (s *Session) Model() ModelStatus {
	st := ModelStatus{Available: s.model.Available(), Version: s.model.Version()}
	if err := s.model.LoadError(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// ModelAvailable reports whether a risk model is loaded.
func (s *Session) ModelAvailable() bool {
	return s.model.Available()
}
