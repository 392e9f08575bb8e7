package evaluate

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// Prediction is a model output for one validation row together with its realised label.
type Prediction struct {
	Label     types.Label
	Score     float64
	Direction types.Direction
}

// Evaluator computes the out-of-sample metrics of one walk-forward window.
type Evaluator struct {
	cfg config.EvaluationConfig
}

func NewEvaluator(cfg config.EvaluationConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate fills the metric fields of a BacktestResult. Identity fields (ids, ranges,
// window index) are left for the caller.
func (e *Evaluator) Evaluate(preds []Prediction, target types.Horizon) types.BacktestResult {
	var result types.BacktestResult

	result.IC1d = e.PooledIC(preds, types.Horizon1d)
	result.IC3d = e.PooledIC(preds, types.Horizon3d)
	result.IC7d = e.PooledIC(preds, types.Horizon7d)

	summary := Summarize(e.DailyIC(preds, target))
	result.ICMean, result.ICStd, result.ICIR, result.ICDays = summary.Mean, summary.Std, summary.IR, summary.Days

	switch {
	case len(preds) == 0:
		result.Degenerate = true
		result.Notes = "no validation rows"
	case constantScores(preds):
		result.Degenerate = true
		result.Notes = "model scores are constant"
	case summary.Days == 0:
		result.Degenerate = true
		result.Notes = "no day with a defined cross-sectional IC"
	}

	// A degenerate ranking carries no information, so the basket and accuracy figures
	// built on it are left undefined.
	if result.Degenerate {
		result.Classification = types.ClassificationMetrics{Samples: Classification(preds, target).Samples}
		result.Portfolio = types.PortfolioMetrics{AvgHoldingDays: float64(target.Days())}

		return result
	}

	result.Classification = Classification(preds, target)
	result.Portfolio = e.Simulate(preds, target)

	return result
}

// PooledIC is the Spearman IC of score against the h-day forward return over every row
// where that return is realised.
func (e *Evaluator) PooledIC(preds []Prediction, h types.Horizon) optional.Option[float64] {
	scores, returns := pairs(preds, h)

	return SpearmanIC(scores, returns, e.cfg.MinICObservations)
}

// DailyIC returns the defined cross-sectional ICs of each day, in day order. Days with
// fewer than MinAssetsPerDay realised returns are skipped.
func (e *Evaluator) DailyIC(preds []Prediction, h types.Horizon) []float64 {
	out := make([]float64, 0)

	for _, day := range byDay(preds) {
		scores, returns := pairs(day, h)
		if len(scores) < e.cfg.MinAssetsPerDay {
			continue
		}

		if ic := SpearmanIC(scores, returns, e.cfg.MinAssetsPerDay); ic.IsSome() {
			out = append(out, ic.Unwrap())
		}
	}

	return out
}

func pairs(preds []Prediction, h types.Horizon) ([]float64, []float64) {
	scores := make([]float64, 0, len(preds))
	returns := make([]float64, 0, len(preds))

	for _, p := range preds {
		ret := p.Label.ForwardReturn(h)
		if ret.IsNone() {
			continue
		}

		scores = append(scores, p.Score)
		returns = append(returns, ret.Unwrap())
	}

	return scores, returns
}

// byDay groups predictions by decision day, in ascending day order.
func byDay(preds []Prediction) [][]Prediction {
	groups := make(map[time.Time][]Prediction)
	days := make([]time.Time, 0)

	for _, p := range preds {
		day := types.Day(p.Label.Time)
		if _, ok := groups[day]; !ok {
			days = append(days, day)
		}

		groups[day] = append(groups[day], p)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([][]Prediction, len(days))
	for i, d := range days {
		out[i] = groups[d]
	}

	return out
}

func constantScores(preds []Prediction) bool {
	for _, p := range preds[1:] {
		if p.Score != preds[0].Score {
			return false
		}
	}

	return true
}
