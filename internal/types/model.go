package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// ModelFamily tags the estimator behind a model artifact.
type ModelFamily string

const (
	// ModelFamilySoftmax is multinomial logistic regression.
	ModelFamilySoftmax ModelFamily = "softmax"
	// ModelFamilyPrior predicts the training class frequencies for every row.
	ModelFamilyPrior ModelFamily = "prior"
)

// DateRange is an inclusive range of days.
type DateRange struct {
	From time.Time `yaml:"from" json:"from"`
	To   time.Time `yaml:"to" json:"to"`
}

// Contains reports whether the day of t is inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)

	return !d.Before(Day(r.From)) && !d.After(Day(r.To))
}

// ValidationMetrics are the aggregate out-of-sample metrics stored on a model record.
// None means the metric was undefined, never zero.
type ValidationMetrics struct {
	IC1d     optional.Option[float64]
	IC3d     optional.Option[float64]
	IC7d     optional.Option[float64]
	Accuracy optional.Option[float64]
	Sharpe   optional.Option[float64]
	WinRate  optional.Option[float64]
}

// ModelRecord describes a trained model. Records are immutable once registered;
// only the Active flag changes, and only through the registry.
type ModelRecord struct {
	ID              int64
	Name            string
	Family          ModelFamily
	Target          Horizon
	Features        []string
	Hyperparameters map[string]string
	Train           DateRange
	Validation      DateRange
	Universe        string
	Metrics         ValidationMetrics
	ArtifactPath    string
	Active          bool
	CreatedAt       time.Time
}

// HyperparameterLabelFingerprint is the hyperparameter key that records which label
// threshold configuration the model was trained against.
const HyperparameterLabelFingerprint = "label_fingerprint"

// Activation is one entry of the activation audit trail.
type Activation struct {
	Version     int64
	ModelID     int64
	PreviousID  optional.Option[int64]
	ActivatedAt time.Time
}
