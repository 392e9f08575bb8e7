package features

import (
	"fmt"
	"sort"

	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// Label-derived columns stored alongside the feature columns of every matrix row.
const (
	ColumnAsset         = "asset"
	ColumnTime          = "ts"
	ColumnClose         = "close"
	ColumnVolatility7d  = "volatility_7d"
	ColumnVolatility30d = "volatility_30d"
)

// ForwardReturnColumn names the forward return column for h, e.g. fwd_return_3d.
func ForwardReturnColumn(h types.Horizon) string {
	return fmt.Sprintf("fwd_return_%s", h)
}

// LabelColumn names the class column for h, e.g. label_3d.
func LabelColumn(h types.Horizon) string {
	return fmt.Sprintf("label_%s", h)
}

// LabelColumns lists every label-derived column in storage order.
func LabelColumns() []string {
	cols := []string{ColumnAsset, ColumnTime, ColumnClose}
	for _, h := range types.Horizons {
		cols = append(cols, ForwardReturnColumn(h))
	}

	for _, h := range types.Horizons {
		cols = append(cols, LabelColumn(h))
	}

	return append(cols, ColumnVolatility7d, ColumnVolatility30d)
}

func sortRows(rows []types.MatrixRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Label, rows[j].Label
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}

		return a.Asset < b.Asset
	})
}
