package labels

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Builder turns daily closes into point-in-time forward-return labels.
type Builder struct {
	cfg    config.LabelConfig
	logger *logger.Logger
}

// NewBuilder creates a Builder for the given thresholds and volatility windows.
func NewBuilder(cfg config.LabelConfig, log *logger.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: log,
	}
}

// series is the close history of one asset keyed by day.
type series struct {
	asset  string
	closes map[time.Time]float64
	days   []time.Time
}

// Build produces one label per (asset, day) that has a close and at least one realised
// forward close at exactly day+h, with day+h not after asOf. Bars dated after asOf are
// ignored. Duplicate bars and non-positive closes abort the whole build.
func (b *Builder) Build(bars []types.PriceBar, asOf time.Time) ([]types.Label, error) {
	cutoff := types.Day(asOf)

	all, err := groupSeries(bars, cutoff)
	if err != nil {
		return nil, err
	}

	labels := make([]types.Label, 0, len(bars))
	skipped := 0

	for _, s := range all {
		for _, day := range s.days {
			label, ok := b.labelFor(s, day)
			if !ok {
				skipped++

				continue
			}

			labels = append(labels, label)
		}
	}

	sortLabels(labels)

	b.logger.Debug("Built labels",
		zap.Int("assets", len(all)),
		zap.Int("labels", len(labels)),
		zap.Int("unrealized_days", skipped),
		zap.Time("as_of", cutoff),
	)

	return labels, nil
}

func (b *Builder) labelFor(s *series, day time.Time) (types.Label, bool) {
	closeNow := s.closes[day]
	label := types.Label{
		Asset:          s.asset,
		Time:           day,
		Close:          closeNow,
		ForwardReturns: [types.HorizonCount]optional.Option[float64]{},
		Classes:        [types.HorizonCount]optional.Option[types.Direction]{},
		Volatility7d:   b.volatility(s, day, b.cfg.ShortVolatility),
		Volatility30d:  b.volatility(s, day, b.cfg.LongVolatility),
	}

	realized := false

	for i, h := range types.Horizons {
		future, ok := s.closes[h.After(day)]
		if !ok {
			continue
		}

		ret := (future - closeNow) / closeNow
		label.ForwardReturns[i] = optional.Some(ret)
		label.Classes[i] = optional.Some(Classify(ret, b.cfg.Threshold(h)))
		realized = true
	}

	return label, realized
}

// volatility is the sample std of the window daily returns ending at day. Any missing
// return inside the window makes the value null.
func (b *Builder) volatility(s *series, day time.Time, window int) optional.Option[float64] {
	returns := make([]float64, 0, window)

	for offset := window - 1; offset >= 0; offset-- {
		d := day.AddDate(0, 0, -offset)

		prev, okPrev := s.closes[d.AddDate(0, 0, -1)]
		cur, okCur := s.closes[d]
		if !okPrev || !okCur {
			return optional.None[float64]()
		}

		returns = append(returns, cur/prev-1)
	}

	return optional.Some(stat.StdDev(returns, nil))
}

// Classify maps a forward return to BUY, SELL or HOLD using a symmetric threshold.
func Classify(ret, threshold float64) types.Direction {
	switch {
	case ret > threshold:
		return types.DirectionBuy
	case ret < -threshold:
		return types.DirectionSell
	default:
		return types.DirectionHold
	}
}

func groupSeries(bars []types.PriceBar, cutoff time.Time) ([]*series, error) {
	byAsset := make(map[string]*series)

	for _, bar := range bars {
		day := types.Day(bar.Time)
		if day.After(cutoff) {
			continue
		}

		if bar.Close <= 0 {
			return nil, errors.Newf(errors.ErrCodeNonPositivePrice, "non-positive close %.8f for %s on %s", bar.Close, bar.Asset, day.Format(time.DateOnly))
		}

		s, ok := byAsset[bar.Asset]
		if !ok {
			s = &series{asset: bar.Asset, closes: make(map[time.Time]float64), days: nil}
			byAsset[bar.Asset] = s
		}

		if _, dup := s.closes[day]; dup {
			return nil, errors.Newf(errors.ErrCodeDuplicateKey, "duplicate close for %s on %s", bar.Asset, day.Format(time.DateOnly))
		}

		s.closes[day] = bar.Close
		s.days = append(s.days, day)
	}

	out := make([]*series, 0, len(byAsset))
	for _, s := range byAsset {
		sort.Slice(s.days, func(i, j int) bool { return s.days[i].Before(s.days[j]) })
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].asset < out[j].asset })

	return out, nil
}

func sortLabels(labels []types.Label) {
	sort.Slice(labels, func(i, j int) bool {
		if !labels[i].Time.Equal(labels[j].Time) {
			return labels[i].Time.Before(labels[j].Time)
		}

		return labels[i].Asset < labels[j].Asset
	})
}
