package dashboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"transitrisk/internal/gtfs"
	"transitrisk/internal/risk"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	calendarCSV = "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"WKDY,1,1,1,1,1,0,0,20240101,20241231\n" +
		"WKND,0,0,0,0,0,1,1,20240101,20241231\n" +
		"WKDY,1,1,1,1,1,0,0,20250101,20251231\n"
	datesCSV = "service_id,date,exception_type\n" +
		"WKDY,20240105,2\n" +
		"WKDY,20240110,1\n" +
		"WKND,20240203,2\n" +
		"WKND,garbage,2\n"
	stopsCSV = "stop_id,stop_name,stop_lat,stop_lon\n" +
		"1,A,44.90,-93.30\n" +
		"2,B,45.00,-93.10\n"
	freqCSV = "trip_id,start_time,end_time,headway_secs\n" +
		"T1,06:00:00,09:00:00,600\n" +
		"T2,06:30:00,09:00:00,600\n" +
		"T3,17:15,19:00,900\n" +
		"T4,24:30:00,25:00:00,900\n"
)

func feedDir(t *testing.T, skip ...string) string {
	t.Helper()
	files := map[string]string{
		"calendar.csv":       calendarCSV,
		"calendar_dates.csv": datesCSV,
		"stops.csv":          stopsCSV,
		"frequencies.csv":    freqCSV,
	}
	for _, s := range skip {
		delete(files, s)
	}
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newSession(t *testing.T, model *risk.Adapter, skip ...string) *Session {
	t.Helper()
	if model == nil {
		model = risk.NewAdapter("", discard)
	}
	cat := gtfs.NewCatalog(gtfs.DirSource{Dir: feedDir(t, skip...)}, discard)
	return NewSession(cat, model, 20, discard)
}

type stubClassifier struct {
	label int
	prob  float64
	err   error
}

func (s stubClassifier) Predict(risk.FeatureVector) (int, error) { return s.label, s.err }
func (s stubClassifier) PredictProbability(risk.FeatureVector) (float64, error) {
	return s.prob, nil
}

func TestKPIs(t *testing.T) {
	s := newSession(t, nil)
	k, err := s.KPIs(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	want := KPIs{
		Month:              1,
		TotalServices:      2,
		ServicesRemoved:    1,
		TotalStops:         2,
		AvgRemovalRate:     0.5,
		AvgRemovalRateText: "50.00%",
	}
	if k != want {
		t.Errorf("KPIs(1) = %+v, want %+v", k, want)
	}
}

func TestKPIs_EmptyMonth(t *testing.T) {
	// No exceptions fall in March.
	s := newSession(t, nil)
	k, err := s.KPIs(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if k.ServicesRemoved != 0 || k.AvgRemovalRate != 0 || k.AvgRemovalRateText != "0.00%" {
		t.Errorf("KPIs(3) = %+v, want zero removals and 0.00%%", k)
	}
}

func TestInvalidMonth(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()
	for _, m := range []int{0, 13, -4} {
		if _, err := s.KPIs(ctx, m); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("KPIs(%d) err = %v, want ErrInvalidMonth", m, err)
		}
		if _, err := s.Preview(ctx, m); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("Preview(%d) err = %v, want ErrInvalidMonth", m, err)
		}
		if _, err := s.BuildReport(ctx, m, false); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("BuildReport(%d) err = %v, want ErrInvalidMonth", m, err)
		}
	}
}

func TestRemovalRatio(t *testing.T) {
	s := newSession(t, nil)
	r, err := s.RemovalRatio(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Removed != 1 || r.Active != 1 {
		t.Errorf("RemovalRatio(1) = %+v, want 1 removed 1 active", r)
	}
}

func TestMonthlyTrend(t *testing.T) {
	s := newSession(t, nil)
	trend, err := s.MonthlyTrend(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(trend) != 12 {
		t.Fatalf("len(trend) = %d, want 12", len(trend))
	}
	if trend[0].Rate != 0.5 || trend[1].Rate != 1.0 || trend[2].Rate != 0 {
		t.Errorf("trend = %+v", trend[:3])
	}
}

func TestHourlyTrips(t *testing.T) {
	s := newSession(t, nil)
	h, err := s.HourlyTrips(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Counts) != 2 || h.Counts[6] != 2 || h.Counts[17] != 1 {
		t.Errorf("Counts = %v, want {6:2 17:1}", h.Counts)
	}
	if len(h.Histogram) != 24 || h.Histogram[6].Trips != 2 || h.Histogram[0].Trips != 0 {
		t.Errorf("Histogram = %+v", h.Histogram)
	}
}

func TestStopLocations(t *testing.T) {
	s := newSession(t, nil)
	v, err := s.StopLocations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Points) != 2 || v.Points[0].Lon != -93.30 || v.Points[0].Lat != 44.90 {
		t.Errorf("Points = %+v", v.Points)
	}
	if v.Extent.MinLon != -93.30 || v.Extent.MaxLat != 45.00 {
		t.Errorf("Extent = %+v", v.Extent)
	}
}

// sessionWith builds a session over the default feed with one file replaced.
func sessionWith(t *testing.T, name, body string) *Session {
	t.Helper()
	dir := feedDir(t)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cat := gtfs.NewCatalog(gtfs.DirSource{Dir: dir}, discard)
	return NewSession(cat, risk.NewAdapter("", discard), 20, discard)
}

func TestStopsWithoutCoordinates(t *testing.T) {
	s := sessionWith(t, "stops.csv", stopsCSV+"N1,node,,,3\n")
	ctx := context.Background()

	k, err := s.KPIs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if k.TotalStops != 3 {
		t.Errorf("TotalStops = %d, want 3", k.TotalStops)
	}
	v, err := s.StopLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Points) != 2 {
		t.Errorf("len(Points) = %d, want 2", len(v.Points))
	}
	if v.Extent.MinLon != -93.30 || v.Extent.MaxLon != -93.10 {
		t.Errorf("Extent = %+v", v.Extent)
	}
}

func TestKPIs_CalendarWithoutDayColumns(t *testing.T) {
	s := sessionWith(t, "calendar.csv", "service_id\nWKDY\nWKND\n")
	k, err := s.KPIs(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if k.TotalServices != 2 || k.ServicesRemoved != 1 {
		t.Errorf("KPIs = %+v", k)
	}
	// Day flags are only needed to build prediction features.
	if _, err := s.cat.Services(context.Background()); !errors.Is(err, gtfs.ErrDataUnavailable) {
		t.Errorf("Services err = %v, want ErrDataUnavailable", err)
	}
}

func TestPreview(t *testing.T) {
	cat := gtfs.NewCatalog(gtfs.DirSource{Dir: feedDir(t)}, discard)
	s := NewSession(cat, risk.NewAdapter("", discard), 1, discard)

	p, err := s.Preview(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Columns) != len(ExportColumns) {
		t.Fatalf("Columns = %v, want %v", p.Columns, ExportColumns)
	}
	for i, c := range ExportColumns {
		if p.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, p.Columns[i], c)
		}
	}
	if len(p.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(p.Rows))
	}
	want := []string{"WKDY", "2024-01-05", "2", "1", "1"}
	for i := range want {
		if p.Rows[0][i] != want[i] {
			t.Errorf("Rows[0][%d] = %q, want %q", i, p.Rows[0][i], want[i])
		}
	}
}

func TestExportCSV(t *testing.T) {
	s := newSession(t, nil)
	var buf bytes.Buffer
	if err := s.ExportCSV(context.Background(), 1, &buf); err != nil {
		t.Fatal(err)
	}
	want := "service_id,date,exception_type,service_removed,month\n" +
		"WKDY,2024-01-05,2,1,1\n" +
		"WKDY,2024-01-10,1,0,1\n"
	if got := buf.String(); got != want {
		t.Errorf("ExportCSV =\n%s\nwant\n%s", got, want)
	}
}

func TestExportCSV_EmptyMonth(t *testing.T) {
	s := newSession(t, nil)
	var buf bytes.Buffer
	if err := s.ExportCSV(context.Background(), 7, &buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "service_id,date,exception_type,service_removed,month\n" {
		t.Errorf("ExportCSV(empty) = %q, want header only", got)
	}
}

func TestExportXLSX(t *testing.T) {
	s := newSession(t, nil)
	var buf bytes.Buffer
	if err := s.ExportXLSX(context.Background(), 2, &buf); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Month 02")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "service_id" || rows[1][0] != "WKND" || rows[1][1] != "2024-02-03" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWriteSheet_Errors(t *testing.T) {
	s := newSession(t, nil)
	df, err := s.monthFrame(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, "Month 02", df); err == nil || !strings.HasPrefix(err.Error(), "write cell: ") {
		t.Errorf("writeSheet to missing sheet err = %v, want write cell error", err)
	}
	if err := setCell(f, "Sheet1", 0, 1, "x"); err == nil || !strings.HasPrefix(err.Error(), "write cell: ") {
		t.Errorf("setCell(0, 1) err = %v, want write cell error", err)
	}
	if err := writeSheet(f, "Sheet1", df); err != nil {
		t.Errorf("writeSheet to Sheet1: %v", err)
	}
}

func TestPredict_ModelAbsent(t *testing.T) {
	s := newSession(t, nil)
	v, err := s.Predict(context.Background())
	if err != nil {
		t.Fatalf("Predict with no model: %v", err)
	}
	if v.Available {
		t.Error("Available = true with no model")
	}
}

func TestPredict_HighRisk(t *testing.T) {
	s := newSession(t, risk.NewAdapterWith(stubClassifier{label: 1, prob: 0.82}, discard))
	v, err := s.Predict(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !v.Available || v.ServiceID != "WKDY" || !v.HighRisk {
		t.Errorf("Predict = %+v", v)
	}
	if v.Message != "High Risk of Service Removal (Probability: 82.00%)" {
		t.Errorf("Message = %q", v.Message)
	}
}

func TestPredict_Failure(t *testing.T) {
	s := newSession(t, risk.NewAdapterWith(stubClassifier{err: errors.New("wrong shape")}, discard))
	if _, err := s.Predict(context.Background()); !errors.Is(err, risk.ErrPredictionFailed) {
		t.Errorf("err = %v, want ErrPredictionFailed", err)
	}
	// The next request still reaches the model.
	if !s.ModelAvailable() {
		t.Error("model unloaded after failure")
	}
}

func TestPredict_NoCalendar(t *testing.T) {
	s := newSession(t, risk.NewAdapterWith(stubClassifier{label: 0, prob: 0.1}, discard), "calendar.csv")
	if _, err := s.Predict(context.Background()); !errors.Is(err, gtfs.ErrDataUnavailable) {
		t.Errorf("err = %v, want ErrDataUnavailable", err)
	}
}

func TestBuildReport_PartialData(t *testing.T) {
	s := newSession(t, nil, "stops.csv")
	r, err := s.BuildReport(context.Background(), 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.KPIs != nil || r.Stops != nil {
		t.Error("views needing stops should be empty")
	}
	if _, ok := r.Errors["kpis"]; !ok {
		t.Error("missing kpis error")
	}
	if _, ok := r.Errors["stops"]; !ok {
		t.Error("missing stops error")
	}
	if r.Ratio == nil || len(r.Trend) != 12 || r.Hourly == nil || r.Preview == nil {
		t.Errorf("independent views missing: %+v", r)
	}
	if r.Prediction != nil {
		t.Error("prediction ran without being requested")
	}
}

func TestModelStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(`{"coefficients":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	s := newSession(t, risk.NewAdapter(path, discard))
	st := s.Model()
	if st.Available || st.Error == "" {
		t.Errorf("Model() = %+v, want unavailable with error", st)
	}

	s = newSession(t, risk.NewAdapterWith(stubClassifier{}, discard))
	if st := s.Model(); !st.Available || st.Error != "" {
		t.Errorf("Model() = %+v, want available", st)
	}
}
