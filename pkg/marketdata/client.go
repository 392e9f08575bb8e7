package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/rxtech-lab/argo-fusion/pkg/marketdata/provider"
	"go.uber.org/zap"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType  provider.ProviderType `validate:"required,oneof=polygon binance"`
	PolygonAPIKey string                `validate:"required_if=ProviderType polygon"`
	// BinanceQuote is appended to the symbol to form the Binance pair, e.g. BTC + USDT.
	BinanceQuote string `validate:"required_if=ProviderType binance"`
}

// DownloadParams holds the parameters for a market data download request.
type DownloadParams struct {
	// Symbols maps upstream symbols (BTC) to asset slugs (bitcoin).
	Symbols   map[string]string `validate:"required,min=1"`
	StartDate time.Time         `validate:"required"`
	EndDate   time.Time         `validate:"required,gtfield=StartDate"`
}

// OnDownloadProgress is called after each symbol finishes.
type OnDownloadProgress = func(done int, total int, symbol string)

// Client downloads daily closes for every configured symbol and labels them with the
// asset slug used everywhere else.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	logger     *logger.Logger
	onProgress OnDownloadProgress
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger, onProgress OnDownloadProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data client configuration", err)
	}

	marketProvider, err := provider.NewMarketDataProvider(config.ProviderType, config.PolygonAPIKey)
	if err != nil {
		return nil, err
	}

	return newClientWithProvider(marketProvider, config, log, onProgress), nil
}

func newClientWithProvider(p provider.Provider, config ClientConfig, log *logger.Logger, onProgress OnDownloadProgress) *Client {
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}

	return &Client{
		provider:   p,
		config:     config,
		validate:   validator.New(),
		logger:     log,
		onProgress: onProgress,
	}
}

// Ticker returns the provider ticker of an upstream symbol.
func (c *Client) Ticker(symbol string) string {
	switch c.config.ProviderType {
	case provider.ProviderPolygon:
		return "X:" + symbol + "USD"
	default:
		return symbol + c.config.BinanceQuote
	}
}

// Download fetches every symbol in name order. The first failure aborts the download
// and nothing is returned.
func (c *Client) Download(ctx context.Context, params DownloadParams) ([]types.PriceBar, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	symbols := make([]string, 0, len(params.Symbols))
	for symbol := range params.Symbols {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	bars := make([]types.PriceBar, 0)

	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, "download canceled", err)
		}

		ticker := c.Ticker(symbol)

		fetched, err := c.provider.DailyCloses(ctx, ticker, params.StartDate, params.EndDate)
		if err != nil {
			return nil, err
		}

		asset := params.Symbols[symbol]
		for _, bar := range fetched {
			bar.Asset = asset
			bars = append(bars, bar)
		}

		c.logger.Debug("Downloaded daily closes",
			zap.String("symbol", symbol),
			zap.String("ticker", ticker),
			zap.String("asset", asset),
			zap.Int("bars", len(fetched)),
		)

		c.onProgress(i+1, len(symbols), symbol)
	}

	return bars, nil
}
