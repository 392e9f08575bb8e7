package evaluate

import (
	"sort"

	"github.com/moznion/go-optional"
	"gonum.org/v1/gonum/stat"
)

// SpearmanIC is the Spearman rank correlation of x and y. It is undefined (None) when
// there are fewer than minObs pairs or either side is constant.
func SpearmanIC(x, y []float64, minObs int) optional.Option[float64] {
	if len(x) != len(y) || len(x) < minObs || len(x) < 2 {
		return optional.None[float64]()
	}

	if constant(x) || constant(y) {
		return optional.None[float64]()
	}

	return optional.Some(stat.Correlation(ranks(x), ranks(y), nil))
}

// ranks assigns 1-based ranks, averaging the ranks of tied values.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, len(values))

	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && values[idx[end]] == values[idx[start]] {
			end++
		}

		// positions start..end-1 share the average of ranks start+1..end
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			out[idx[k]] = avg
		}

		start = end
	}

	return out
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}

	return true
}

// ICSummary aggregates a daily IC series.
type ICSummary struct {
	Mean optional.Option[float64]
	Std  optional.Option[float64]
	IR   optional.Option[float64]
	Days int
}

// Summarize computes mean, population std and mean/std over the defined daily ICs.
func Summarize(daily []float64) ICSummary {
	summary := ICSummary{Days: len(daily)}
	if len(daily) == 0 {
		return summary
	}

	mean, std := stat.PopMeanStdDev(daily, nil)
	summary.Mean = optional.Some(mean)

	if len(daily) < 2 {
		return summary
	}

	summary.Std = optional.Some(std)
	if std > 0 {
		summary.IR = optional.Some(mean / std)
	}

	return summary
}
