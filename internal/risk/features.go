package risk

import "transitrisk/internal/gtfs"

// Placeholder values for the calendar-window features. Every service is
// scored as a default full-year service, whatever its real start and end dates.
const (
	DefaultStartMonth      = 1
	DefaultEndMonth        = 12
	DefaultServiceDuration = 30
)

// FeatureNames is the classifier's input order.
var FeatureNames = [...]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"start_month", "end_month", "service_duration",
}

// FeatureVector is the fixed 10-field classifier input.
type FeatureVector struct {
	Monday          float64 `json:"monday"`
	Tuesday         float64 `json:"tuesday"`
	Wednesday       float64 `json:"wednesday"`
	Thursday        float64 `json:"thursday"`
	Friday          float64 `json:"friday"`
	Saturday        float64 `json:"saturday"`
	Sunday          float64 `json:"sunday"`
	StartMonth      float64 `json:"start_month"`
	EndMonth        float64 `json:"end_month"`
	ServiceDuration float64 `json:"service_duration"`
}

// BuildFeatures copies the day flags from svc and fills the window
// features with the fixed placeholders.
func BuildFeatures(svc gtfs.Service) FeatureVector {
	d := svc.DayFlags()
	return FeatureVector{
		Monday:          float64(d[0]),
		Tuesday:         float64(d[1]),
		Wednesday:       float64(d[2]),
		Thursday:        float64(d[3]),
		Friday:          float64(d[4]),
		Saturday:        float64(d[5]),
		Sunday:          float64(d[6]),
		StartMonth:      DefaultStartMonth,
		EndMonth:        DefaultEndMonth,
		ServiceDuration: DefaultServiceDuration,
	}
}

// Values returns the features in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.Monday, f.Tuesday, f.Wednesday, f.Thursday, f.Friday, f.Saturday, f.Sunday,
		f.StartMonth, f.EndMonth, f.ServiceDuration,
	}
}

// Get returns the feature with the given name.
func (f FeatureVector) Get(name string) (float64, bool) {
	for i, n := range FeatureNames {
		if n == name {
			return f.Values()[i], true
		}
	}
	return 0, false
}
