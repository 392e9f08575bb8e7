package types

import "time"

// Probabilities is the class distribution produced by a model, indexed by ClassIndex.
type Probabilities [ClassCount]float64

// Of returns the probability of direction d.
func (p Probabilities) Of(d Direction) float64 {
	return p[d.ClassIndex()]
}

// Attribution is the contribution of one feature to one class's output.
type Attribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Signal is the per-asset per-day output of the inference engine.
type Signal struct {
	Asset         string        `json:"asset"`
	Time          time.Time     `json:"time"`
	ModelID       int64         `json:"model_id"`
	Score         float64       `json:"score"`
	Direction     Direction     `json:"direction"`
	Probabilities Probabilities `json:"probabilities"`
	Confidence    float64       `json:"confidence"`
	// AttributionClass is the output class the TopFeatures explain.
	AttributionClass Direction     `json:"attribution_class"`
	TopFeatures      []Attribution `json:"top_features"`
	// NoData is set when every feature of the row was missing.
	NoData bool `json:"no_data"`
}
