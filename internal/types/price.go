package types

import "time"

// PriceBar is one daily close for one asset.
type PriceBar struct {
	Asset  string
	Time   time.Time
	Close  float64
	Volume float64
}

// AssetDay identifies a row keyed by asset and decision day.
type AssetDay struct {
	Asset string
	Day   time.Time
}

// PriceScore is the external price-forecast score of one asset, in [-1, 1].
type PriceScore struct {
	Asset string
	Score float64
}
