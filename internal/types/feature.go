package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// FeatureRow is one row of a feature table. Asset is empty for market-wide tables.
type FeatureRow struct {
	Asset  string
	Time   time.Time
	Values []optional.Option[float64]
}

// FeatureTable is an upstream per-asset-per-day (or per-day) table of numeric features.
type FeatureTable struct {
	Name string
	// AssetScoped tables join on (asset, day); market-wide tables join on day and broadcast.
	AssetScoped bool
	Columns     []string
	Rows        []FeatureRow
}

// MatrixRow is one row of the assembled feature matrix: the label anchor plus one
// nullable value per matrix column.
type MatrixRow struct {
	Label  Label
	Values []optional.Option[float64]
}

// AllNull reports whether every value in the row is missing.
func (r MatrixRow) AllNull() bool {
	for _, v := range r.Values {
		if v.IsSome() {
			return false
		}
	}

	return true
}
