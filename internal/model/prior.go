package model

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Prior predicts the training class frequencies for every row. It is the baseline every
// other family has to beat; its scores are constant, so evaluation flags it degenerate.
type Prior struct {
	FeatureNames []string            `yaml:"features"`
	Frequencies  types.Probabilities `yaml:"frequencies,flow"`
}

// FitPrior counts the class frequencies of y.
func FitPrior(features []string, y []types.Direction) (*Prior, error) {
	if len(y) == 0 {
		return nil, errors.New(errors.ErrCodeInsufficientTrainData, "no training rows")
	}

	var p types.Probabilities
	for _, d := range y {
		p[d.ClassIndex()]++
	}

	for i := range p {
		p[i] /= float64(len(y))
	}

	return &Prior{FeatureNames: append([]string(nil), features...), Frequencies: p}, nil
}

func (m *Prior) Family() types.ModelFamily {
	return types.ModelFamilyPrior
}

func (m *Prior) Features() []string {
	return m.FeatureNames
}

func (m *Prior) PredictProba(_ []optional.Option[float64]) types.Probabilities {
	return m.Frequencies
}

func (m *Prior) Attribute(_ []optional.Option[float64], _ types.Direction) []types.Attribution {
	return nil
}
