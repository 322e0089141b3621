package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transitrisk/internal/config"
	"transitrisk/internal/dashboard"
	"transitrisk/internal/gtfs"
	"transitrisk/internal/risk"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubClassifier struct {
	label int
	prob  float64
	err   error
}

func (s stubClassifier) Predict(risk.FeatureVector) (int, error) { return s.label, s.err }
func (s stubClassifier) PredictProbability(risk.FeatureVector) (float64, error) {
	return s.prob, nil
}

// newHandler builds a Handler over a feed missing the stops table.
func newHandler(t *testing.T, model *risk.Adapter) *Handler {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"calendar.csv": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday\nWKDY,1,1,1,1,1,0,0\n",
		"calendar_dates.csv": "service_id,date,exception_type\n" +
			"WKDY,20240105,2\nWKDY,20240110,1\nWKDY,20240203,2\n",
		"frequencies.csv": "trip_id,start_time\nT1,08:00:00\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if model == nil {
		model = risk.NewAdapter("", discard)
	}
	cat := gtfs.NewCatalog(gtfs.DirSource{Dir: dir}, discard)
	cfg := config.Default()
	return New(dashboard.NewSession(cat, model, cfg.PreviewRows, discard), cfg, discard)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid month", dashboard.ErrInvalidMonth, http.StatusBadRequest},
		{"dataset", &gtfs.DataError{Dataset: "stops", Err: os.ErrNotExist}, http.StatusServiceUnavailable},
		{"prediction", risk.ErrPredictionFailed, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status(tt.err); got != tt.want {
				t.Errorf("status(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestMonthParam(t *testing.T) {
	h := newHandler(t, nil)
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"?month=6", 6, false},
		{"?month=12", 12, false},
		{"?month=0", 0, true},
		{"?month=13", 0, true},
		{"?month=june", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/kpis"+tt.query, nil)
			got, err := h.month(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("month(%q) err = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("month(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestAPI_Status(t *testing.T) {
	h := newHandler(t, nil)
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
		want    int
	}{
		{"trend", h.Trend, "/api/trend", http.StatusOK},
		{"hourly", h.Hourly, "/api/hourly", http.StatusOK},
		{"preview", h.Preview, "/api/preview?month=1", http.StatusOK},
		{"preview bad month", h.Preview, "/api/preview?month=13", http.StatusBadRequest},
		{"stops missing", h.Stops, "/api/stops", http.StatusServiceUnavailable},
		{"kpis need stops", h.KPIs, "/api/kpis?month=1", http.StatusServiceUnavailable},
		{"predict without model", h.Predict, "/api/predict", http.StatusOK},
		{"health", h.Health, "/health", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest("GET", tt.target, nil))
			if rec.Code != tt.want {
				t.Errorf("%s = %d, want %d (body %s)", tt.target, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAPI_StopsErrorNamesDataset(t *testing.T) {
	h := newHandler(t, nil)
	rec := httptest.NewRecorder()
	h.Stops(rec, httptest.NewRequest("GET", "/api/stops", nil))

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Dataset != "stops" {
		t.Errorf("dataset = %q, want stops", body.Dataset)
	}
}

func TestAPI_Predict(t *testing.T) {
	h := newHandler(t, risk.NewAdapterWith(stubClassifier{label: 1, prob: 0.82}, discard))
	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest("POST", "/api/predict", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var v dashboard.PredictionView
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Message != "High Risk of Service Removal (Probability: 82.00%)" {
		t.Errorf("message = %q", v.Message)
	}

	failing := newHandler(t, risk.NewAdapterWith(stubClassifier{err: errors.New("shape")}, discard))
	rec = httptest.NewRecorder()
	failing.Predict(rec, httptest.NewRequest("POST", "/api/predict", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("failing status = %d, want 422", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	h := newHandler(t, nil)
	rec := httptest.NewRecorder()
	h.ExportCSV(rec, httptest.NewRequest("GET", "/api/export.csv?month=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "service_removed_data.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	want := "service_id,date,exception_type,service_removed,month\nWKDY,2024-02-03,2,1,2\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestHome(t *testing.T) {
	h := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/?month=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "dataset stops unavailable") {
		t.Error("missing stops error on page")
	}
	if !strings.Contains(body, "2024-01-05") {
		t.Error("missing preview rows on page")
	}

	rec = httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/?month=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestPredictPage(t *testing.T) {
	h := newHandler(t, risk.NewAdapterWith(stubClassifier{label: 0, prob: 0.3}, discard))
	rec := httptest.NewRecorder()
	h.PredictPage(rec, httptest.NewRequest("POST", "/predict?month=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Low Risk (Confidence: 70.00%)") {
		t.Error("missing low-risk message")
	}
}
