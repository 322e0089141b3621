package dashboard

import (
	"context"

	"transitrisk/internal/disruption"
)

// Report gathers every view for one month. A view whose datasets are
// unavailable is left empty and its error recorded under the view's name,
// so one missing file never hides the others.
type Report struct {
	Month      int                    `json:"month"`
	KPIs       *KPIs                  `json:"kpis,omitempty"`
	Ratio      *Ratio                 `json:"ratio,omitempty"`
	Trend      []disruption.MonthRate `json:"trend,omitempty"`
	Hourly     *HourlyView            `json:"hourly,omitempty"`
	Stops      *StopsView             `json:"stops,omitempty"`
	Preview    *Table                 `json:"preview,omitempty"`
	Prediction *PredictionView        `json:"prediction,omitempty"`
	Errors     map[string]string      `json:"errors,omitempty"`

	ModelAvailable bool `json:"model_available"`
}

// BuildReport assembles a Report. The prediction is only run when predict
// is set. An invalid month is the only error returned.
func (s *Session) BuildReport(ctx context.Context, month int, predict bool) (*Report, error) {
	if err := CheckMonth(month); err != nil {
		return nil, err
	}
	r := &Report{Month: month, ModelAvailable: s.ModelAvailable()}
	fail := func(view string, err error) {
		if r.Errors == nil {
			r.Errors = make(map[string]string)
		}
		r.Errors[view] = err.Error()
	}

	if k, err := s.KPIs(ctx, month); err != nil {
		fail("kpis", err)
	} else {
		r.KPIs = &k
	}
	if ratio, err := s.RemovalRatio(ctx, month); err != nil {
		fail("ratio", err)
	} else {
		r.Ratio = &ratio
	}
	if trend, err := s.MonthlyTrend(ctx); err != nil {
		fail("trend", err)
	} else {
		r.Trend = trend
	}
	if h, err := s.HourlyTrips(ctx); err != nil {
		fail("hourly", err)
	} else {
		r.Hourly = &h
	}
	if st, err := s.StopLocations(ctx); err != nil {
		fail("stops", err)
	} else {
		r.Stops = &st
	}
	if p, err := s.Preview(ctx, month); err != nil {
		fail("preview", err)
	} else {
		r.Preview = &p
	}

	if predict {
		if p, err := s.Predict(ctx); err != nil {
			fail("prediction", err)
		} else {
			r.Prediction = &p
		}
	}
	return r, nil
}
