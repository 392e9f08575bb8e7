package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// PolygonAPIClient is the part of the Polygon SDK the downloader uses.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

// PolygonAggsIterator walks the pages of an aggregates response.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

type PolygonClient struct {
	apiClient PolygonAPIClient
}

func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon provider requires an API key")
	}

	return NewPolygonClientWithAPI(&polygonSDK{client: polygon.New(apiKey)}), nil
}

func NewPolygonClientWithAPI(api PolygonAPIClient) *PolygonClient {
	return &PolygonClient{apiClient: api}
}

// DailyCloses reads the 1-day aggregates of ticker. Crypto tickers use Polygon's X:
// prefix, e.g. X:BTCUSD.
func (c *PolygonClient) DailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]types.PriceBar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(types.Day(start)),
		To:         models.Millis(types.Day(end)),
	}.WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, params)

	bars := make([]types.PriceBar, 0)

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.PriceBar{
			Asset:  ticker,
			Time:   types.Day(time.Time(agg.Timestamp)),
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDownloadFailed, err, "failed to iterate polygon aggregates for %s", ticker)
	}

	return bars, nil
}

type polygonSDK struct {
	client *polygon.Client
}

func (p *polygonSDK) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return p.client.ListAggs(ctx, params, options...)
}
