package features

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Snapshot is an immutable, fully assembled feature matrix.
type Snapshot struct {
	Version  int64
	ID       string
	BuiltAt  time.Time
	Columns  []string
	Rows     []types.MatrixRow
	Checksum string
}

// ColumnIndex returns the position of the named column, or -1.
func (s *Snapshot) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}

	return -1
}

// LatestPerAsset returns, for every asset, the most recent row dated on or before day.
// Rows are returned sorted by asset.
func (s *Snapshot) LatestPerAsset(day time.Time) []types.MatrixRow {
	cutoff := types.Day(day)
	latest := make(map[string]int)
	order := make([]string, 0)

	for i, row := range s.Rows {
		if row.Label.Time.After(cutoff) {
			continue
		}

		prev, ok := latest[row.Label.Asset]
		if !ok {
			order = append(order, row.Label.Asset)
			latest[row.Label.Asset] = i

			continue
		}

		if row.Label.Time.After(s.Rows[prev].Label.Time) {
			latest[row.Label.Asset] = i
		}
	}

	sort.Strings(order)

	out := make([]types.MatrixRow, 0, len(order))
	for _, asset := range order {
		out = append(out, s.Rows[latest[asset]])
	}

	return out
}

type assetIndex map[types.AssetDay][]optional.Option[float64]

type dayIndex map[time.Time][]optional.Option[float64]

// Assemble left-joins every table onto the labels. Asset-scoped tables join on
// (asset, day), market-wide tables on day. Every label yields exactly one row and
// unmatched joins are null. The result depends only on the inputs.
func Assemble(labels []types.Label, tables []types.FeatureTable) (*Snapshot, error) {
	columns, err := matrixColumns(tables)
	if err != nil {
		return nil, err
	}

	assetTables := make([]assetIndex, len(tables))
	dayTables := make([]dayIndex, len(tables))

	for i, table := range tables {
		if table.AssetScoped {
			assetTables[i], err = indexByAssetDay(table)
		} else {
			dayTables[i], err = indexByDay(table)
		}

		if err != nil {
			return nil, err
		}
	}

	seen := make(map[types.AssetDay]struct{}, len(labels))
	rows := make([]types.MatrixRow, 0, len(labels))

	for _, label := range labels {
		key := label.Key()
		if _, dup := seen[key]; dup {
			return nil, errors.Newf(errors.ErrCodeDuplicateKey, "duplicate label for %s on %s", key.Asset, key.Day.Format(time.DateOnly))
		}

		seen[key] = struct{}{}

		values := make([]optional.Option[float64], 0, len(columns))

		for i, table := range tables {
			var matched []optional.Option[float64]
			if table.AssetScoped {
				matched = assetTables[i][key]
			} else {
				matched = dayTables[i][key.Day]
			}

			if matched == nil {
				matched = make([]optional.Option[float64], len(table.Columns))
			}

			values = append(values, matched...)
		}

		label.Time = key.Day
		rows = append(rows, types.MatrixRow{Label: label, Values: values})
	}

	sortRows(rows)

	snapshot := &Snapshot{
		Version:  0,
		ID:       "",
		BuiltAt:  time.Time{},
		Columns:  columns,
		Rows:     rows,
		Checksum: "",
	}
	snapshot.Checksum = Checksum(snapshot.Columns, snapshot.Rows)

	return snapshot, nil
}

func matrixColumns(tables []types.FeatureTable) ([]string, error) {
	reserved := make(map[string]struct{})
	for _, c := range LabelColumns() {
		reserved[c] = struct{}{}
	}

	names := make(map[string]string)
	columns := make([]string, 0)

	for _, table := range tables {
		for _, column := range table.Columns {
			if _, ok := reserved[column]; ok {
				return nil, errors.Newf(errors.ErrCodeDuplicateColumn, "column %q of table %s collides with a label column", column, table.Name)
			}

			if owner, ok := names[column]; ok {
				return nil, errors.Newf(errors.ErrCodeDuplicateColumn, "column %q appears in both %s and %s", column, owner, table.Name)
			}

			names[column] = table.Name
			columns = append(columns, column)
		}
	}

	return columns, nil
}

func indexByAssetDay(table types.FeatureTable) (assetIndex, error) {
	index := make(assetIndex, len(table.Rows))

	for _, row := range table.Rows {
		if row.Asset == "" {
			return nil, errors.Newf(errors.ErrCodeDataIntegrity, "asset-scoped table %s has a row without asset", table.Name)
		}

		if len(row.Values) != len(table.Columns) {
			return nil, errors.Newf(errors.ErrCodeDataIntegrity, "table %s row for %s has %d values, want %d", table.Name, row.Asset, len(row.Values), len(table.Columns))
		}

		key := types.AssetDay{Asset: row.Asset, Day: types.Day(row.Time)}
		if _, dup := index[key]; dup {
			return nil, errors.Newf(errors.ErrCodeDuplicateKey, "table %s has duplicate rows for %s on %s", table.Name, key.Asset, key.Day.Format(time.DateOnly))
		}

		index[key] = row.Values
	}

	return index, nil
}

func indexByDay(table types.FeatureTable) (dayIndex, error) {
	index := make(dayIndex, len(table.Rows))

	for _, row := range table.Rows {
		if len(row.Values) != len(table.Columns) {
			return nil, errors.Newf(errors.ErrCodeDataIntegrity, "table %s row has %d values, want %d", table.Name, len(row.Values), len(table.Columns))
		}

		day := types.Day(row.Time)
		if _, dup := index[day]; dup {
			return nil, errors.Newf(errors.ErrCodeDuplicateKey, "market table %s has duplicate rows on %s", table.Name, day.Format(time.DateOnly))
		}

		index[day] = row.Values
	}

	return index, nil
}

// Checksum hashes the columns and every row value in order. Two snapshots with the same
// checksum hold identical content.
func Checksum(columns []string, rows []types.MatrixRow) string {
	h := sha256.New()
	buf := make([]byte, 8)

	writeFloat := func(o optional.Option[float64]) {
		if o.IsNone() {
			h.Write([]byte{0})

			return
		}

		h.Write([]byte{1})
		binary.LittleEndian.PutUint64(buf, math.Float64bits(o.Unwrap()))
		h.Write(buf)
	}

	for _, c := range columns {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}

	for _, row := range rows {
		h.Write([]byte(row.Label.Asset))
		binary.LittleEndian.PutUint64(buf, uint64(row.Label.Time.Unix()))
		h.Write(buf)
		writeFloat(optional.Some(row.Label.Close))

		for i := range row.Label.ForwardReturns {
			writeFloat(row.Label.ForwardReturns[i])
		}

		writeFloat(row.Label.Volatility7d)
		writeFloat(row.Label.Volatility30d)

		for _, v := range row.Values {
			writeFloat(v)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
