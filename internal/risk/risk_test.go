package risk

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"transitrisk/internal/gtfs"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClassifier struct {
	label    int
	prob     float64
	labelErr error
	probErr  error
	panics   bool
	calls    int
}

func (f *fakeClassifier) Predict(FeatureVector) (int, error) {
	f.calls++
	if f.panics {
		panic("shape mismatch")
	}
	return f.label, f.labelErr
}

func (f *fakeClassifier) PredictProbability(FeatureVector) (float64, error) {
	return f.prob, f.probErr
}

func TestBuildFeatures(t *testing.T) {
	svc := gtfs.Service{
		ServiceID: "WKDY", Monday: 1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
		StartDate: "20240601", EndDate: "20240630",
	}
	fv := BuildFeatures(svc)
	want := []float64{1, 1, 1, 1, 1, 0, 0, 1, 12, 30}
	got := fv.Values()
	if len(got) != len(FeatureNames) {
		t.Fatalf("len(Values) = %d, want %d", len(got), len(FeatureNames))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", FeatureNames[i], got[i], want[i])
		}
	}
}

func TestFeatureVectorGet(t *testing.T) {
	fv := FeatureVector{Saturday: 1, ServiceDuration: 30}
	if v, ok := fv.Get("saturday"); !ok || v != 1 {
		t.Errorf("Get(saturday) = %v, %v", v, ok)
	}
	if v, ok := fv.Get("service_duration"); !ok || v != 30 {
		t.Errorf("Get(service_duration) = %v, %v", v, ok)
	}
	if _, ok := fv.Get("route_type"); ok {
		t.Error("Get(route_type) should be false")
	}
}

func TestAdapter_HighRisk(t *testing.T) {
	a := NewAdapterWith(&fakeClassifier{label: 1, prob: 0.82}, discard)
	p, err := a.Predict(FeatureVector{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Label != 1 || p.Probability != 0.82 {
		t.Errorf("Predict = %+v, want label 1 probability 0.82", p)
	}
	if got := Percent(p.Probability); got != "82.00%" {
		t.Errorf("Percent = %q, want 82.00%%", got)
	}
	if got := p.Message(); got != "High Risk of Service Removal (Probability: 82.00%)" {
		t.Errorf("Message = %q", got)
	}
}

func TestPrediction_LowRiskMessage(t *testing.T) {
	p := Prediction{Label: 0, Probability: 0.25}
	if got := p.Message(); got != "Low Risk (Confidence: 75.00%)" {
		t.Errorf("Message = %q", got)
	}
}

func TestAdapter_Failures(t *testing.T) {
	tests := []struct {
		name string
		c    *fakeClassifier
	}{
		{"label error", &fakeClassifier{labelErr: errors.New("bad shape")}},
		{"probability error", &fakeClassifier{label: 1, probErr: errors.New("bad shape")}},
		{"panic", &fakeClassifier{panics: true}},
		{"non-binary label", &fakeClassifier{label: 2, prob: 0.5}},
		{"probability above one", &fakeClassifier{label: 1, prob: 1.5}},
		{"NaN probability", &fakeClassifier{label: 1, prob: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapterWith(tt.c, discard)
			_, err := a.Predict(FeatureVector{})
			if !errors.Is(err, ErrPredictionFailed) {
				t.Fatalf("err = %v, want ErrPredictionFailed", err)
			}
			// The model stays loaded after a failed request.
			if !a.Available() {
				t.Error("adapter should stay available after a failure")
			}
		})
	}
}

func TestAdapter_ModelAbsent(t *testing.T) {
	a := NewAdapter(filepath.Join(t.TempDir(), "missing.json"), discard)
	if a.Available() {
		t.Fatal("Available() = true for missing model")
	}
	if err := a.LoadError(); err != nil {
		t.Errorf("LoadError() = %v, want nil for a missing file", err)
	}
	if _, err := a.Predict(FeatureVector{}); !errors.Is(err, ErrModelAbsent) {
		t.Errorf("Predict err = %v, want ErrModelAbsent", err)
	}

	if NewAdapter("", discard).Available() {
		t.Error("Available() = true with no path configured")
	}
}

func TestAdapter_LoadsModelOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	model := `{"version":"v1","coefficients":[0,0,0,0,0,0,0,0,0,0],"intercept":2}`
	if err := os.WriteFile(path, []byte(model), 0644); err != nil {
		t.Fatal(err)
	}

	a := NewAdapter(path, discard)
	if !a.Available() {
		t.Fatalf("Available() = false, LoadError = %v", a.LoadError())
	}
	if a.Version() != "v1" {
		t.Errorf("Version = %q, want v1", a.Version())
	}

	// Removing the file mid-session does not change the loaded state.
	os.Remove(path)
	if !a.Available() {
		t.Error("adapter lost its model after the file was removed")
	}

	p, err := a.Predict(BuildFeatures(gtfs.Service{Monday: 1}))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := 1 / (1 + math.Exp(-2))
	if math.Abs(p.Probability-want) > 1e-12 || p.Label != 1 {
		t.Errorf("Predict = %+v, want label 1 probability %v", p, want)
	}
}

func TestAdapter_CorruptModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	a := NewAdapter(path, discard)
	if a.Available() {
		t.Fatal("Available() = true for corrupt model")
	}
	if a.LoadError() == nil {
		t.Error("LoadError() = nil, want decode error")
	}
}

func TestDecodeLogisticModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"positional", `{"coefficients":[1,2,3,4,5,6,7,8,9,10]}`, false},
		{"named", `{"features":["sunday","monday"],"coefficients":[1,2]}`, false},
		{"no coefficients", `{"intercept":1}`, true},
		{"name count mismatch", `{"features":["monday"],"coefficients":[1,2]}`, true},
		{"bad threshold", `{"coefficients":[1],"threshold":2}`, true},
		{"unknown field", `{"coefficients":[1],"kernel":"rbf"}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeLogisticModel(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && m.Threshold != 0.5 {
				t.Errorf("default threshold = %v, want 0.5", m.Threshold)
			}
		})
	}
}

func TestDecodeLogisticModel_Threshold(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{`{"coefficients":[1]}`, 0.5},
		{`{"coefficients":[1],"threshold":0}`, 0},
		{`{"coefficients":[1],"threshold":0.8}`, 0.8},
		{`{"coefficients":[1],"threshold":1}`, 1},
	}
	for _, tt := range tests {
		m, err := DecodeLogisticModel(strings.NewReader(tt.input))
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if m.Threshold != tt.want {
			t.Errorf("%s: threshold = %v, want %v", tt.input, m.Threshold, tt.want)
		}
	}
}

func TestLogisticModel_ZeroThreshold(t *testing.T) {
	m, err := DecodeLogisticModel(strings.NewReader(
		`{"coefficients":[0,0,0,0,0,0,0,0,0,0],"intercept":-50,"threshold":0}`))
	if err != nil {
		t.Fatal(err)
	}
	// p is tiny but never below a zero threshold.
	label, err := m.Predict(BuildFeatures(gtfs.Service{}))
	if err != nil {
		t.Fatal(err)
	}
	if label != 1 {
		t.Errorf("label = %d, want 1", label)
	}
}

func TestLogisticModel_Shape(t *testing.T) {
	// Two coefficients cannot score a 10-field vector.
	m, err := DecodeLogisticModel(strings.NewReader(`{"features":["sunday","monday"],"coefficients":[1,2]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.PredictProbability(FeatureVector{}); err == nil {
		t.Error("expected shape error")
	}

	a := NewAdapterWith(m, discard)
	if _, err := a.Predict(FeatureVector{}); !errors.Is(err, ErrPredictionFailed) {
		t.Errorf("Predict err = %v, want ErrPredictionFailed", err)
	}
}

func TestLogisticModel_NamedOrder(t *testing.T) {
	names := []string{"service_duration", "end_month", "start_month",
		"sunday", "saturday", "friday", "thursday", "wednesday", "tuesday", "monday"}
	m := &LogisticModel{
		Features:     names,
		Coefficients: []float64{0.1, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		Intercept:    -3,
		Threshold:    0.5,
	}
	// z = 0.1*30 - 3 = 0 -> p = 0.5 -> label 1
	fv := BuildFeatures(gtfs.Service{})
	p, err := m.PredictProbability(fv)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p-0.5) > 1e-12 {
		t.Errorf("p = %v, want 0.5", p)
	}
	label, _ := m.Predict(fv)
	if label != 1 {
		t.Errorf("label = %d, want 1", label)
	}
}
