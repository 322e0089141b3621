// Package risk scores calendar services for removal risk with an externally
// supplied binary classifier.
package risk

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"sync"
)

var (
	// ErrPredictionFailed wraps any classifier failure for a single request.
	ErrPredictionFailed = errors.New("prediction failed")
	// ErrModelAbsent is returned by Predict when no model is loaded.
	// Callers should check Available first; absence is a normal state.
	ErrModelAbsent = errors.New("model not available")
)

// Classifier is a pre-built binary classifier. Label 1 is high risk and
// PredictProbability returns the probability of that same class.
type Classifier interface {
	Predict(FeatureVector) (int, error)
	PredictProbability(FeatureVector) (float64, error)
}

// Prediction is the outcome of one classification.
type Prediction struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// HighRisk reports whether the label is the high-risk class.
func (p Prediction) HighRisk() bool { return p.Label == 1 }

// Message is the user-facing summary. Low-risk results show the
// confidence of the low-risk class instead of the raw probability.
func (p Prediction) Message() string {
	if p.HighRisk() {
		return fmt.Sprintf("High Risk of Service Removal (Probability: %s)", Percent(p.Probability))
	}
	return fmt.Sprintf("Low Risk (Confidence: %s)", Percent(1-p.Probability))
}

// Percent formats a fraction as "82.00%".
func Percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// Adapter owns the session's classifier. It moves from absent to loaded at
// most once, on first use, and never back.
type Adapter struct {
	path   string
	logger *slog.Logger

	once    sync.Once
	model   Classifier
	version string
	loadErr error
}

// NewAdapter creates an Adapter that loads the JSON model at path on first use.
// An empty path means no model is configured.
func NewAdapter(path string, logger *slog.Logger) *Adapter {
	return &Adapter{path: path, logger: logger}
}

// NewAdapterWith creates an Adapter around an already constructed classifier.
func NewAdapterWith(c Classifier, logger *slog.Logger) *Adapter {
	a := &Adapter{logger: logger, model: c, version: "in-process"}
	a.once.Do(func() {})
	return a
}

func (a *Adapter) load() {
	a.once.Do(func() {
		if a.path == "" {
			a.logger.Info("no risk model configured")
			return
		}
		f, err := os.Open(a.path)
		if errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("risk model not found", "path", a.path)
			return
		}
		if err != nil {
			a.loadErr = fmt.Errorf("open model: %w", err)
			a.logger.Error("risk model unreadable", "path", a.path, "error", err)
			return
		}
		defer f.Close()

		m, err := DecodeLogisticModel(f)
		if err != nil {
			a.loadErr = err
			a.logger.Error("risk model could not be decoded", "path", a.path, "error", err)
			return
		}
		a.model, a.version = m, m.Version
		a.logger.Info("risk model loaded", "path", a.path, "version", m.Version)
	})
}

// Available reports whether a classifier is loaded.
func (a *Adapter) Available() bool {
	a.load()
	return a.model != nil
}

// LoadError explains why an existing model file could not be used, if so.
// A missing file is not an error and yields nil.
func (a *Adapter) LoadError() error {
	a.load()
	return a.loadErr
}

// Version is the loaded model's version string.
func (a *Adapter) Version() string {
	a.load()
	return a.version
}

// Predict runs one classification. Classifier errors, panics, and
// out-of-range outputs are reported as ErrPredictionFailed and leave the
// loaded model untouched.
func (a *Adapter) Predict(fv FeatureVector) (p Prediction, err error) {
	a.load()
	if a.model == nil {
		return Prediction{}, ErrModelAbsent
	}

	defer func() {
		if r := recover(); r != nil {
			p, err = Prediction{}, fmt.Errorf("%w: classifier panicked: %v", ErrPredictionFailed, r)
		}
	}()

	label, err := a.model.Predict(fv)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: label: %w", ErrPredictionFailed, err)
	}
	prob, err := a.model.PredictProbability(fv)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: probability: %w", ErrPredictionFailed, err)
	}
	if label != 0 && label != 1 {
		return Prediction{}, fmt.Errorf("%w: label %d is not binary", ErrPredictionFailed, label)
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return Prediction{}, fmt.Errorf("%w: probability %v outside [0,1]", ErrPredictionFailed, prob)
	}
	return Prediction{Label: label, Probability: prob}, nil
}
