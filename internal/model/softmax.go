package model

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SoftmaxParams are the training hyperparameters of the softmax family.
type SoftmaxParams struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

// Softmax is a multinomial logistic regression over standardized features. Missing
// values are imputed with the training mean, which standardizes to zero.
type Softmax struct {
	FeatureNames []string                    `yaml:"features"`
	Means        []float64                   `yaml:"means,flow"`
	Scales       []float64                   `yaml:"scales,flow"`
	Weights      [types.ClassCount][]float64 `yaml:"weights"`
	Bias         [types.ClassCount]float64   `yaml:"bias,flow"`
}

// FitSoftmax trains the model with full-batch gradient descent on the cross-entropy loss
// with L2 regularisation on the weights.
func FitSoftmax(features []string, x [][]optional.Option[float64], y []types.Direction, params SoftmaxParams) (*Softmax, error) {
	if len(x) == 0 {
		return nil, errors.New(errors.ErrCodeInsufficientTrainData, "no training rows")
	}

	if len(x) != len(y) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "%d rows but %d labels", len(x), len(y))
	}

	for i, row := range x {
		if len(row) != len(features) {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "row %d has %d values, want %d", i, len(row), len(features))
		}
	}

	m := &Softmax{
		FeatureNames: append([]string(nil), features...),
		Means:        make([]float64, len(features)),
		Scales:       make([]float64, len(features)),
	}

	m.fitScaling(x)

	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = m.standardize(row)
	}

	for c := range m.Weights {
		m.Weights[c] = make([]float64, len(features))
	}

	n := float64(len(x))
	grad := [types.ClassCount][]float64{}

	for c := range grad {
		grad[c] = make([]float64, len(features))
	}

	for epoch := 0; epoch < params.Epochs; epoch++ {
		var gradBias [types.ClassCount]float64

		for c := range grad {
			for j := range grad[c] {
				grad[c][j] = params.L2 * m.Weights[c][j]
			}
		}

		for i, zi := range z {
			p := softmax(m.logits(zi))
			target := y[i].ClassIndex()

			for c := range p {
				diff := p[c]
				if c == target {
					diff--
				}

				diff /= n
				gradBias[c] += diff
				floats.AddScaled(grad[c], diff, zi)
			}
		}

		for c := range m.Weights {
			floats.AddScaled(m.Weights[c], -params.LearningRate, grad[c])
			m.Bias[c] -= params.LearningRate * gradBias[c]
		}
	}

	return m, nil
}

func (m *Softmax) fitScaling(x [][]optional.Option[float64]) {
	column := make([]float64, 0, len(x))

	for j := range m.FeatureNames {
		column = column[:0]

		for _, row := range x {
			if row[j].IsSome() {
				column = append(column, row[j].Unwrap())
			}
		}

		m.Means[j], m.Scales[j] = 0, 1
		if len(column) == 0 {
			continue
		}

		mean, std := stat.PopMeanStdDev(column, nil)
		m.Means[j] = mean

		if std > 0 && !math.IsNaN(std) {
			m.Scales[j] = std
		}
	}
}

func (m *Softmax) standardize(values []optional.Option[float64]) []float64 {
	z := make([]float64, len(m.FeatureNames))

	for j := range z {
		if j < len(values) && values[j].IsSome() {
			z[j] = (values[j].Unwrap() - m.Means[j]) / m.Scales[j]
		}
	}

	return z
}

func (m *Softmax) logits(z []float64) [types.ClassCount]float64 {
	var out [types.ClassCount]float64
	for c := range out {
		out[c] = m.Bias[c] + floats.Dot(m.Weights[c], z)
	}

	return out
}

func (m *Softmax) Family() types.ModelFamily {
	return types.ModelFamilySoftmax
}

func (m *Softmax) Features() []string {
	return m.FeatureNames
}

func (m *Softmax) PredictProba(values []optional.Option[float64]) types.Probabilities {
	return softmax(m.logits(m.standardize(values)))
}

// Attribute returns weight × standardized value for every feature of the given class.
// Together with the class bias the contributions sum exactly to the class logit.
func (m *Softmax) Attribute(values []optional.Option[float64], class types.Direction) []types.Attribution {
	z := m.standardize(values)
	w := m.Weights[class.ClassIndex()]

	out := make([]types.Attribution, len(z))
	for j := range z {
		out[j] = types.Attribution{Feature: m.FeatureNames[j], Weight: w[j] * z[j]}
	}

	return out
}
