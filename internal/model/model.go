package model

import (
	"math"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// Classifier maps one feature row to a distribution over SELL, HOLD and BUY.
// Values are aligned with Features(); missing values are allowed.
type Classifier interface {
	Family() types.ModelFamily
	Features() []string
	PredictProba(values []optional.Option[float64]) types.Probabilities
	// Attribute decomposes the raw output of one class into per-feature contributions.
	// Families without a per-feature decomposition return nil.
	Attribute(values []optional.Option[float64], class types.Direction) []types.Attribution
}

// TopAttributions returns the k attributions with the largest absolute weight.
// Ties are broken by feature name so the order is stable.
func TopAttributions(attrs []types.Attribution, k int) []types.Attribution {
	sorted := append([]types.Attribution(nil), attrs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := math.Abs(sorted[i].Weight), math.Abs(sorted[j].Weight)
		if a != b {
			return a > b
		}

		return sorted[i].Feature < sorted[j].Feature
	})

	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}

	return sorted
}

func softmax(logits [types.ClassCount]float64) types.Probabilities {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, l)
	}

	var (
		p   types.Probabilities
		sum float64
	)

	for i, l := range logits {
		p[i] = math.Exp(l - maxLogit)
		sum += p[i]
	}

	for i := range p {
		p[i] /= sum
	}

	return p
}

// Decide turns class probabilities into a direction. BUY needs prob_buy strictly above
// prob_sell, not below prob_hold and above floor; SELL mirrors it. Anything else is HOLD.
func Decide(p types.Probabilities, floor float64) types.Direction {
	buy, hold, sell := p.Of(types.DirectionBuy), p.Of(types.DirectionHold), p.Of(types.DirectionSell)

	switch {
	case buy > sell && buy >= hold && buy > floor:
		return types.DirectionBuy
	case sell > buy && sell >= hold && sell > floor:
		return types.DirectionSell
	default:
		return types.DirectionHold
	}
}

// Score is prob_buy - prob_sell.
func Score(p types.Probabilities) float64 {
	return p.Of(types.DirectionBuy) - p.Of(types.DirectionSell)
}
