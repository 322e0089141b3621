package risk

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogisticModel is a pre-trained binary logistic regression stored as JSON:
//
//	{"version": "...", "features": ["monday", ...], "coefficients": [...],
//	 "intercept": -1.2, "threshold": 0.5}
//
// When features is omitted the coefficients are taken in FeatureNames order.
// When threshold is omitted it is 0.5; an explicit 0 is kept.
type LogisticModel struct {
	Version      string    `json:"version"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold"`
}

// DecodeLogisticModel reads a model from r. It checks the file is internally
// consistent; whether it fits the 10-field vector is only known at prediction.
func DecodeLogisticModel(r io.Reader) (*LogisticModel, error) {
	var file struct {
		LogisticModel
		Threshold *float64 `json:"threshold"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	m := file.LogisticModel
	m.Threshold = 0.5
	if file.Threshold != nil {
		m.Threshold = *file.Threshold
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("decode model: no coefficients")
	}
	if len(m.Features) > 0 && len(m.Features) != len(m.Coefficients) {
		return nil, fmt.Errorf("decode model: %d feature names for %d coefficients",
			len(m.Features), len(m.Coefficients))
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return nil, fmt.Errorf("decode model: threshold %v outside [0,1]", m.Threshold)
	}
	return &m, nil
}

// PredictProbability returns the probability of the high-risk class.
func (m *LogisticModel) PredictProbability(fv FeatureVector) (float64, error) {
	x, err := m.align(fv)
	if err != nil {
		return 0, err
	}
	z := floats.Dot(m.Coefficients, x) + m.Intercept
	return 1 / (1 + math.Exp(-z)), nil
}

// Predict returns 1 when the high-risk probability reaches the threshold.
func (m *LogisticModel) Predict(fv FeatureVector) (int, error) {
	p, err := m.PredictProbability(fv)
	if err != nil {
		return 0, err
	}
	if p >= m.Threshold {
		return 1, nil
	}
	return 0, nil
}

// align orders the vector's values the way the model was trained.
func (m *LogisticModel) align(fv FeatureVector) ([]float64, error) {
	if len(m.Coefficients) != len(FeatureNames) {
		return nil, fmt.Errorf("model expects %d features, vector has %d",
			len(m.Coefficients), len(FeatureNames))
	}
	if len(m.Features) == 0 {
		return fv.Values(), nil
	}
	x := make([]float64, len(m.Features))
	for i, name := range m.Features {
		v, ok := fv.Get(name)
		if !ok {
			return nil, fmt.Errorf("model feature %q not in vector", name)
		}
		x[i] = v
	}
	return x, nil
}
