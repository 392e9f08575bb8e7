package evaluate

import (
	"math"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// minReturnStd is the smallest daily return dispersion a Sharpe ratio is computed for.
// Anything below it is rounding noise on a constant series.
const minReturnStd = 1e-12

// Simulate runs the daily long/short basket: each day with at least MinAssetsPerDay
// realised h-day returns, go long the top BasketFraction of assets by score and short
// the bottom fraction, equally weighted. The day's return is the long basket's mean
// return minus the short basket's. Positions are held for h days, so daily returns of
// consecutive days overlap when h > 1.
func (e *Evaluator) Simulate(preds []Prediction, h types.Horizon) types.PortfolioMetrics {
	metrics := types.PortfolioMetrics{AvgHoldingDays: float64(h.Days())}
	daily := make([]float64, 0)

	for _, day := range byDay(preds) {
		realised := make([]Prediction, 0, len(day))
		for _, p := range day {
			if p.Label.ForwardReturn(h).IsSome() {
				realised = append(realised, p)
			}
		}

		if len(realised) < e.cfg.MinAssetsPerDay || len(realised) < 2 {
			continue
		}

		sort.SliceStable(realised, func(i, j int) bool {
			if realised[i].Score != realised[j].Score {
				return realised[i].Score > realised[j].Score
			}

			return realised[i].Label.Asset < realised[j].Label.Asset
		})

		n := int(math.Floor(float64(len(realised)) * e.cfg.BasketFraction))
		n = min(max(n, 1), len(realised)/2)

		long := meanReturn(realised[:n], h)
		short := meanReturn(realised[len(realised)-n:], h)

		daily = append(daily, long-short)
		metrics.TotalTrades += 2 * n
	}

	metrics.TradingDays = len(daily)
	if len(daily) == 0 {
		return metrics
	}

	equity := decimal.NewFromInt(1)
	peak := equity
	maxDrawdown := decimal.Zero
	wins := 0

	for _, r := range daily {
		if r > 0 {
			wins++
		}

		equity = equity.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(r)))
		if equity.GreaterThan(peak) {
			peak = equity
		}

		if peak.IsPositive() {
			drawdown := peak.Sub(equity).Div(peak)
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
	}

	metrics.TotalReturn = optional.Some(equity.Sub(decimal.NewFromInt(1)).InexactFloat64())
	metrics.MaxDrawdown = optional.Some(maxDrawdown.InexactFloat64())
	metrics.WinRate = optional.Some(float64(wins) / float64(len(daily)))

	if len(daily) >= 2 {
		mean, std := stat.PopMeanStdDev(daily, nil)
		if std > minReturnStd {
			metrics.Sharpe = optional.Some(mean / std * math.Sqrt(e.cfg.PeriodsPerYear))
		}
	}

	return metrics
}

func meanReturn(preds []Prediction, h types.Horizon) float64 {
	var sum float64
	for _, p := range preds {
		sum += p.Label.ForwardReturn(h).Unwrap()
	}

	return sum / float64(len(preds))
}
