package mocks

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

// DataGenerator generates synthetic daily closes and feature tables for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how price series are generated.
type GeneratorConfig struct {
	// Assets are the symbols to generate, one series each
	Assets []string
	// Start is the first day of every series
	Start time.Time
	// Days is the number of daily closes per asset
	Days int
	// InitialPrice is the starting close
	InitialPrice float64
	// Volatility is the daily return standard deviation (0.03 = 3%)
	Volatility float64
	// VolumeBase is the average daily volume
	VolumeBase float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Assets:       []string{"BTC", "ETH", "SOL", "ADA", "XRP"},
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:         120,
		InitialPrice: 100.0,
		Volatility:   0.04,
		VolumeBase:   1e6,
	}
}

// Prices creates daily closes following a geometric random walk, sorted by (asset, day).
func (g *DataGenerator) Prices(config GeneratorConfig) []types.PriceBar {
	bars := make([]types.PriceBar, 0, len(config.Assets)*config.Days)

	for _, asset := range config.Assets {
		price := config.InitialPrice * (0.5 + g.rng.Float64())

		for d := 0; d < config.Days; d++ {
			bars = append(bars, types.PriceBar{
				Asset:  asset,
				Time:   config.Start.AddDate(0, 0, d),
				Close:  roundToDecimals(price, 6),
				Volume: roundToDecimals(config.VolumeBase*(0.5+g.rng.Float64()), 2),
			})

			price *= math.Exp(config.Volatility * g.rng.NormFloat64())
		}
	}

	return bars
}

// LeadingFeature builds an asset-scoped feature table whose single column is the realised
// forward return over h days plus gaussian noise. It lets tests check that a model can
// learn something. Rows without a forward close are omitted.
func (g *DataGenerator) LeadingFeature(name string, bars []types.PriceBar, h types.Horizon, noise float64) types.FeatureTable {
	closes := make(map[types.AssetDay]float64, len(bars))
	for _, b := range bars {
		closes[types.AssetDay{Asset: b.Asset, Day: types.Day(b.Time)}] = b.Close
	}

	table := types.FeatureTable{Name: name, AssetScoped: true, Columns: []string{name}}

	for _, b := range bars {
		day := types.Day(b.Time)
		fwd, ok := closes[types.AssetDay{Asset: b.Asset, Day: h.After(day)}]
		if !ok {
			continue
		}

		value := fwd/b.Close - 1 + noise*g.rng.NormFloat64()
		table.Rows = append(table.Rows, types.FeatureRow{
			Asset:  b.Asset,
			Time:   day,
			Values: []optional.Option[float64]{optional.Some(value)},
		})
	}

	sort.Slice(table.Rows, func(i, j int) bool {
		if !table.Rows[i].Time.Equal(table.Rows[j].Time) {
			return table.Rows[i].Time.Before(table.Rows[j].Time)
		}

		return table.Rows[i].Asset < table.Rows[j].Asset
	})

	return table
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
