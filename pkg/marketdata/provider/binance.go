package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// binancePageSize is the number of klines Binance returns per request by default.
const binancePageSize = 500

// BinanceAPIClient is the part of the Binance SDK the downloader uses.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

// BinanceKlinesService builds one klines request.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

type BinanceClient struct {
	apiClient BinanceAPIClient
}

// NewBinanceClient uses the public market data endpoints, which need no API key.
func NewBinanceClient() *BinanceClient {
	return NewBinanceClientWithAPI(&binanceSDK{client: binance.NewClient("", "")})
}

func NewBinanceClientWithAPI(api BinanceAPIClient) *BinanceClient {
	return &BinanceClient{apiClient: api}
}

// DailyCloses pages through the 1d klines of ticker. Each page starts one millisecond
// after the close time of the previous page's last kline.
func (c *BinanceClient) DailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]types.PriceBar, error) {
	startMillis := types.Day(start).UnixMilli()
	endMillis := types.Day(end).AddDate(0, 0, 1).UnixMilli() - 1

	bars := make([]types.PriceBar, 0)

	for cursor := startMillis; cursor <= endMillis; {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(ticker).
			Interval("1d").
			StartTime(cursor).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDownloadFailed, err, "failed to fetch %s klines from binance", ticker)
		}

		for _, k := range klines {
			bar, err := klineBar(ticker, k)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < binancePageSize {
			break
		}

		cursor = klines[len(klines)-1].CloseTime + 1
	}

	return bars, nil
}

func klineBar(ticker string, k *binance.Kline) (types.PriceBar, error) {
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeDataIntegrity, err, "invalid close %q for %s", k.Close, ticker)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.PriceBar{}, errors.Wrapf(errors.ErrCodeDataIntegrity, err, "invalid volume %q for %s", k.Volume, ticker)
	}

	return types.PriceBar{
		Asset:  ticker,
		Time:   types.Day(time.UnixMilli(k.OpenTime)),
		Close:  closePrice,
		Volume: volume,
	}, nil
}

// binanceSDK adapts the SDK's concrete builder to BinanceAPIClient.
type binanceSDK struct {
	client *binance.Client
}

func (b *binanceSDK) NewKlinesService() BinanceKlinesService {
	return &binanceKlines{service: b.client.NewKlinesService()}
}

type binanceKlines struct {
	service *binance.KlinesService
}

func (k *binanceKlines) Symbol(symbol string) BinanceKlinesService {
	k.service.Symbol(symbol)

	return k
}

func (k *binanceKlines) Interval(interval string) BinanceKlinesService {
	k.service.Interval(interval)

	return k
}

func (k *binanceKlines) StartTime(startTime int64) BinanceKlinesService {
	k.service.StartTime(startTime)

	return k
}

func (k *binanceKlines) EndTime(endTime int64) BinanceKlinesService {
	k.service.EndTime(endTime)

	return k
}

func (k *binanceKlines) Do(ctx context.Context) ([]*binance.Kline, error) {
	return k.service.Do(ctx)
}
