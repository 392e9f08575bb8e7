package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

type Provider interface {
	// DailyCloses returns one bar per UTC day in [start, end] for the provider's ticker,
	// oldest first. The bars carry the ticker as Asset; callers remap it.
	// The context can be used to cancel the download.
	DailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]types.PriceBar, error)
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, polygonAPIKey string) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClient(), nil
	case ProviderPolygon:
		return NewPolygonClient(polygonAPIKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported market data provider: %s", providerType)
	}
}
