package marketdata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/rxtech-lab/argo-fusion/pkg/marketdata/provider"
	"github.com/stretchr/testify/suite"
)

// fakeProvider returns one bar per requested ticker, or fails for tickers in failOn.
type fakeProvider struct {
	tickers []string
	failOn  map[string]bool
}

func (f *fakeProvider) DailyCloses(_ context.Context, ticker string, start, _ time.Time) ([]types.PriceBar, error) {
	f.tickers = append(f.tickers, ticker)

	if f.failOn[ticker] {
		return nil, errors.New(errors.ErrCodeDownloadFailed, "boom")
	}

	return []types.PriceBar{{Asset: ticker, Time: types.Day(start), Close: 10, Volume: 1}}, nil
}

type ClientTestSuite struct {
	suite.Suite
	params DownloadParams
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupTest() {
	suite.params = DownloadParams{
		Symbols:   map[string]string{"ETH": "ethereum", "BTC": "bitcoin"},
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func (suite *ClientTestSuite) client(p provider.Provider, config ClientConfig, progress OnDownloadProgress) *Client {
	return newClientWithProvider(p, config, logger.NewNopLogger(), progress)
}

func (suite *ClientTestSuite) TestNewClientValidatesConfig() {
	tests := []struct {
		name   string
		config ClientConfig
		code   errors.ErrorCode
	}{
		{name: "missing provider", config: ClientConfig{}, code: errors.ErrCodeInvalidConfiguration},
		{name: "unknown provider", config: ClientConfig{ProviderType: "kraken"}, code: errors.ErrCodeInvalidConfiguration},
		{name: "polygon without key", config: ClientConfig{ProviderType: provider.ProviderPolygon}, code: errors.ErrCodeInvalidConfiguration},
		{name: "binance without quote", config: ClientConfig{ProviderType: provider.ProviderBinance}, code: errors.ErrCodeInvalidConfiguration},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := NewClient(tc.config, logger.NewNopLogger(), nil)
			suite.Equal(tc.code, errors.GetCode(err))
		})
	}

	client, err := NewClient(ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, logger.NewNopLogger(), nil)
	suite.Require().NoError(err)
	suite.NotNil(client)
}

func (suite *ClientTestSuite) TestTicker() {
	binance := suite.client(&fakeProvider{}, ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, nil)
	suite.Equal("BTCUSDT", binance.Ticker("BTC"))

	polygon := suite.client(&fakeProvider{}, ClientConfig{ProviderType: provider.ProviderPolygon, PolygonAPIKey: "key"}, nil)
	suite.Equal("X:BTCUSD", polygon.Ticker("BTC"))
}

func (suite *ClientTestSuite) TestDownloadMapsSymbolsToAssets() {
	fake := &fakeProvider{}

	var progress []string

	client := suite.client(fake, ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, func(done, total int, symbol string) {
		progress = append(progress, fmt.Sprintf("%d/%d %s", done, total, symbol))
	})

	bars, err := client.Download(context.Background(), suite.params)
	suite.Require().NoError(err)

	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, fake.tickers)
	suite.Require().Len(bars, 2)
	suite.Equal("bitcoin", bars[0].Asset)
	suite.Equal("ethereum", bars[1].Asset)
	suite.Equal([]string{"1/2 BTC", "2/2 ETH"}, progress)
}

func (suite *ClientTestSuite) TestDownloadStopsOnFailure() {
	fake := &fakeProvider{failOn: map[string]bool{"BTCUSDT": true}}
	client := suite.client(fake, ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, nil)

	bars, err := client.Download(context.Background(), suite.params)
	suite.Nil(bars)
	suite.Equal(errors.ErrCodeDownloadFailed, errors.GetCode(err))
	suite.Equal([]string{"BTCUSDT"}, fake.tickers)
}

func (suite *ClientTestSuite) TestDownloadValidatesParams() {
	client := suite.client(&fakeProvider{}, ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, nil)

	params := suite.params
	params.EndDate = params.StartDate.AddDate(0, 0, -1)
	_, err := client.Download(context.Background(), params)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))

	params = suite.params
	params.Symbols = nil
	_, err = client.Download(context.Background(), params)
	suite.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (suite *ClientTestSuite) TestDownloadCanceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := suite.client(&fakeProvider{}, ClientConfig{ProviderType: provider.ProviderBinance, BinanceQuote: "USDT"}, nil)

	_, err := client.Download(ctx, suite.params)
	suite.Equal(errors.ErrCodeCanceled, errors.GetCode(err))
}
