package news

import (
	"sort"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Columns of the daily news signal table, in table order.
const (
	ColumnSentiment1d    = "news_sentiment_1d"
	ColumnSentiment3d    = "news_sentiment_3d"
	ColumnSentiment7d    = "news_sentiment_7d"
	ColumnMomentum       = "news_sentiment_momentum"
	ColumnVolume1d       = "news_volume_1d"
	ColumnVolume3d       = "news_volume_3d"
	ColumnVolumeZScore   = "news_volume_zscore_1d"
	ColumnBreakingFlag   = "news_breaking_flag"
	ColumnRegulationFlag = "news_regulation_flag"
	ColumnSecurityFlag   = "news_security_flag"
	ColumnAdoptionFlag   = "news_adoption_flag"
	ColumnSourceQuality  = "news_source_quality"
	ColumnTier1Count     = "news_tier1_count_1d"
	ColumnTier2Count     = "news_tier2_count_1d"
	ColumnTier3Count     = "news_tier3_count_1d"
)

const (
	// breakingWindow is how close to the end of its day a breaking article must be
	breakingWindow        = 4 * time.Hour
	// singleDayVolumeStdDev stands in for the deviation of a one-day baseline
	singleDayVolumeStdDev = 1.0
)

// Columns lists the news signal columns in table order.
func Columns() []string {
	return []string{
		ColumnSentiment1d, ColumnSentiment3d, ColumnSentiment7d, ColumnMomentum,
		ColumnVolume1d, ColumnVolume3d, ColumnVolumeZScore,
		ColumnBreakingFlag, ColumnRegulationFlag, ColumnSecurityFlag, ColumnAdoptionFlag,
		ColumnSourceQuality, ColumnTier1Count, ColumnTier2Count, ColumnTier3Count,
	}
}

// bucket is everything known about one asset on one day.
type bucket struct {
	scores   []float64
	weights  []float64
	tiers    [4]int
	events   map[EventType]struct{}
	breaking bool
}

func (b *bucket) count() int {
	return len(b.scores)
}

// Aggregator turns scored articles into the daily per-asset news signal table.
type Aggregator struct {
	cfg    config.NewsConfig
	mapper *Mapper
	logger *logger.Logger
}

func NewAggregator(cfg config.NewsConfig, mapper *Mapper, log *logger.Logger) *Aggregator {
	return &Aggregator{cfg: cfg, mapper: mapper, logger: log}
}

// Aggregate builds one row per (asset, day) for every day between the first and last
// article on which the asset has news in the trailing seven days. Sentiments are
// tier-weighted means over windows of 1, 3 and 7 days ending on the row's day; a window
// without articles gives null, never zero.
func (a *Aggregator) Aggregate(articles []types.Article) types.FeatureTable {
	table := types.FeatureTable{Name: a.cfg.TableName, AssetScoped: true, Columns: Columns()}

	buckets, first, last := a.index(articles)
	if len(buckets) == 0 {
		a.logger.Info("No news articles mapped to assets", zap.Int("articles", len(articles)))

		return table
	}

	assets := make([]string, 0, len(buckets))
	for asset := range buckets {
		assets = append(assets, asset)
	}

	sort.Strings(assets)

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, asset := range assets {
			days := buckets[asset]

			week := window(days, day, 7)
			if len(week) == 0 {
				continue
			}

			table.Rows = append(table.Rows, types.FeatureRow{
				Asset:  asset,
				Time:   day,
				Values: a.row(days, day, week),
			})
		}
	}

	a.logger.Info("News signals aggregated",
		zap.Int("articles", len(articles)),
		zap.Int("assets", len(assets)),
		zap.Int("rows", len(table.Rows)),
		zap.Time("from", first),
		zap.Time("to", last),
	)

	return table
}

func (a *Aggregator) index(articles []types.Article) (map[string]map[time.Time]*bucket, time.Time, time.Time) {
	buckets := make(map[string]map[time.Time]*bucket)

	var first, last time.Time

	for _, art := range articles {
		categories := ParseCategories(art.Categories)

		assets := a.mapper.Assets(categories)
		if len(assets) == 0 {
			continue
		}

		event := EventType(art.EventType)
		if event == "" {
			event = ClassifyEvent(categories, art.Title)
		}

		day := types.Day(art.Published)
		if first.IsZero() || day.Before(first) {
			first = day
		}

		if day.After(last) {
			last = day
		}

		tier := a.mapper.SourceTier(art.Source)
		breaking := isBreaking(art.Tags) && !art.Published.Before(day.AddDate(0, 0, 1).Add(-breakingWindow))

		for _, asset := range assets {
			days, ok := buckets[asset]
			if !ok {
				days = make(map[time.Time]*bucket)
				buckets[asset] = days
			}

			b, ok := days[day]
			if !ok {
				b = &bucket{events: make(map[EventType]struct{})}
				days[day] = b
			}

			b.scores = append(b.scores, art.Score)
			b.weights = append(b.weights, a.cfg.Weight(tier))
			b.tiers[tier]++
			b.events[event] = struct{}{}
			b.breaking = b.breaking || breaking
		}
	}

	return buckets, first, last
}

func (a *Aggregator) row(days map[time.Time]*bucket, day time.Time, week []*bucket) []optional.Option[float64] {
	today := window(days, day, 1)
	three := window(days, day, 3)

	s1 := weightedMean(today)
	s7 := weightedMean(week)

	momentum := optional.None[float64]()
	if s1.IsSome() && s7.IsSome() {
		momentum = optional.Some(s1.Unwrap() - s7.Unwrap())
	}

	var current *bucket
	if len(today) > 0 {
		current = today[0]
	} else {
		current = &bucket{events: map[EventType]struct{}{}}
	}

	volume := float64(current.count())

	return []optional.Option[float64]{
		s1,
		weightedMean(three),
		s7,
		momentum,
		optional.Some(volume),
		optional.Some(float64(total(three))),
		optional.Some(a.zScore(days, day, volume)),
		flag(current.breaking),
		flag(current.has(EventRegulation)),
		flag(current.has(EventHackExploit)),
		flag(current.has(EventAdoptionPartnership)),
		a.sourceQuality(current),
		optional.Some(float64(current.tiers[1])),
		optional.Some(float64(current.tiers[2])),
		optional.Some(float64(current.tiers[3])),
	}
}

// zScore compares today's article count with the counts of the preceding baseline days
// that had any news. The standard deviation is floored so quiet assets do not explode.
func (a *Aggregator) zScore(days map[time.Time]*bucket, day time.Time, volume float64) float64 {
	counts := make([]float64, 0, a.cfg.BaselineDays)

	for k := 1; k <= a.cfg.BaselineDays; k++ {
		if b, ok := days[day.AddDate(0, 0, -k)]; ok {
			counts = append(counts, float64(b.count()))
		}
	}

	if len(counts) == 0 {
		return volume
	}

	mean, std := stat.Mean(counts, nil), singleDayVolumeStdDev
	if len(counts) > 1 {
		std = stat.StdDev(counts, nil)
	}

	return (volume - mean) / max(std, a.cfg.MinVolumeStd)
}

// sourceQuality is the mean tier weight of today's articles relative to the best tier.
func (a *Aggregator) sourceQuality(b *bucket) optional.Option[float64] {
	best := a.cfg.Weight(1)
	if b.count() == 0 || best <= 0 {
		return optional.None[float64]()
	}

	return optional.Some(stat.Mean(b.weights, nil) / best)
}

func (b *bucket) has(event EventType) bool {
	_, ok := b.events[event]

	return ok
}

// window returns the non-empty buckets of the n days ending on day.
func window(days map[time.Time]*bucket, day time.Time, n int) []*bucket {
	out := make([]*bucket, 0, n)

	for k := 0; k < n; k++ {
		if b, ok := days[day.AddDate(0, 0, -k)]; ok {
			out = append(out, b)
		}
	}

	return out
}

func weightedMean(buckets []*bucket) optional.Option[float64] {
	var sum, weight float64

	for _, b := range buckets {
		for i, s := range b.scores {
			sum += s * b.weights[i]
			weight += b.weights[i]
		}
	}

	if weight <= 0 {
		return optional.None[float64]()
	}

	return optional.Some(sum / weight)
}

func total(buckets []*bucket) int {
	n := 0
	for _, b := range buckets {
		n += b.count()
	}

	return n
}

func flag(v bool) optional.Option[float64] {
	if v {
		return optional.Some(1.0)
	}

	return optional.Some(0.0)
}

func isBreaking(tags string) bool {
	return strings.Contains(strings.ToLower(tags), "breaking")
}
