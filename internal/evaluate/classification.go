package evaluate

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// Classification scores predicted directions against the realised class at h. Rows
// without a realised class are ignored. Ratios with a zero denominator are None.
func Classification(preds []Prediction, h types.Horizon) types.ClassificationMetrics {
	var correct, predictedBuy, actualBuy, truePositive int

	metrics := types.ClassificationMetrics{}

	for _, p := range preds {
		actual := p.Label.Class(h)
		if actual.IsNone() {
			continue
		}

		metrics.Samples++

		if actual.Unwrap() == p.Direction {
			correct++
		}

		if p.Direction == types.DirectionBuy {
			predictedBuy++
		}

		if actual.Unwrap() == types.DirectionBuy {
			actualBuy++

			if p.Direction == types.DirectionBuy {
				truePositive++
			}
		}
	}

	metrics.Accuracy = ratio(correct, metrics.Samples)
	metrics.PrecisionBuy = ratio(truePositive, predictedBuy)
	metrics.RecallBuy = ratio(truePositive, actualBuy)

	if metrics.PrecisionBuy.IsSome() && metrics.RecallBuy.IsSome() {
		p, r := metrics.PrecisionBuy.Unwrap(), metrics.RecallBuy.Unwrap()
		if p+r > 0 {
			metrics.F1Buy = optional.Some(2 * p * r / (p + r))
		} else {
			metrics.F1Buy = optional.Some(0.0)
		}
	}

	return metrics
}

func ratio(num, den int) optional.Option[float64] {
	if den == 0 {
		return optional.None[float64]()
	}

	return optional.Some(float64(num) / float64(den))
}
