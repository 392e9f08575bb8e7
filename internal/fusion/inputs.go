package fusion

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/news"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// BuildInputs joins the external price scores of one day with that day's signals and news
// rows. Every asset with a price score gets an input; an asset without a signal is treated
// as having no news data, and an asset without a news row has no flags and null sentiment.
func BuildInputs(day time.Time, scores []types.PriceScore, signals []types.Signal, newsTable types.FeatureTable, assets config.AssetConfig) []Input {
	day = types.Day(day)

	bySignal := make(map[string]types.Signal, len(signals))
	for _, s := range signals {
		if types.Day(s.Time).Equal(day) {
			bySignal[s.Asset] = s
		}
	}

	lookup := newsLookup(newsTable, day)

	inputs := make([]Input, 0, len(scores))

	for _, score := range scores {
		signal, ok := bySignal[score.Asset]
		if !ok {
			signal = types.Signal{Asset: score.Asset, Time: day, NoData: true}
		}

		in := Input{
			Asset:      score.Asset,
			Time:       day,
			Tier:       assets.Tier(score.Asset),
			PriceScore: score.Score,
			Signal:     signal,
		}

		if row, ok := lookup.rows[score.Asset]; ok {
			in.Sentiment1d = lookup.value(row, news.ColumnSentiment1d)
			in.Sentiment3d = lookup.value(row, news.ColumnSentiment3d)
			in.VolumeZ = lookup.value(row, news.ColumnVolumeZScore)
			in.Regulatory = lookup.flag(row, news.ColumnRegulationFlag)
			in.Security = lookup.flag(row, news.ColumnSecurityFlag)
			in.Adoption = lookup.flag(row, news.ColumnAdoptionFlag)
		}

		inputs = append(inputs, in)
	}

	return inputs
}

type newsRows struct {
	columns map[string]int
	rows    map[string]types.FeatureRow
}

func newsLookup(table types.FeatureTable, day time.Time) newsRows {
	l := newsRows{
		columns: make(map[string]int, len(table.Columns)),
		rows:    make(map[string]types.FeatureRow),
	}

	for i, c := range table.Columns {
		l.columns[c] = i
	}

	for _, row := range table.Rows {
		if types.Day(row.Time).Equal(day) {
			l.rows[row.Asset] = row
		}
	}

	return l
}

func (l newsRows) value(row types.FeatureRow, column string) optional.Option[float64] {
	i, ok := l.columns[column]
	if !ok || i >= len(row.Values) {
		return optional.None[float64]()
	}

	return row.Values[i]
}

func (l newsRows) flag(row types.FeatureRow, column string) bool {
	v := l.value(row, column)

	return v.IsSome() && v.Unwrap() > 0
}
