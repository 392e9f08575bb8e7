package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockPolygonAPIClient implements PolygonAPIClient for testing.
type mockPolygonAPIClient struct {
	iterator *mockPolygonIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params

	return m.iterator
}

// mockPolygonIterator implements PolygonAggsIterator for testing.
type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index >= len(m.aggs) {
		return false
	}

	m.index++

	return true
}

func (m *mockPolygonIterator) Item() models.Agg {
	return m.aggs[m.index-1]
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}

type PolygonClientTestSuite struct {
	suite.Suite
}

func TestPolygonClientSuite(t *testing.T) {
	suite.Run(t, new(PolygonClientTestSuite))
}

func (suite *PolygonClientTestSuite) TestDailyCloses() {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	//nolint:exhaustruct // third-party struct with many optional fields
	aggs := []models.Agg{
		{Timestamp: models.Millis(day), Close: 61000, Volume: 1500},
		{Timestamp: models.Millis(day.AddDate(0, 0, 1)), Close: 62000, Volume: 1200},
	}
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{aggs: aggs}}

	bars, err := NewPolygonClientWithAPI(api).DailyCloses(context.Background(), "X:BTCUSD", day, day.AddDate(0, 0, 1))
	suite.Require().NoError(err)
	suite.Equal([]types.PriceBar{
		{Asset: "X:BTCUSD", Time: day, Close: 61000, Volume: 1500},
		{Asset: "X:BTCUSD", Time: day.AddDate(0, 0, 1), Close: 62000, Volume: 1200},
	}, bars)

	suite.Require().NotNil(api.params)
	suite.Equal("X:BTCUSD", api.params.Ticker)
	suite.Equal(1, api.params.Multiplier)
	suite.Equal(models.Day, api.params.Timespan)
}

func (suite *PolygonClientTestSuite) TestDailyClosesIteratorError() {
	api := &mockPolygonAPIClient{iterator: &mockPolygonIterator{err: fmt.Errorf("unauthorized")}}

	_, err := NewPolygonClientWithAPI(api).DailyCloses(context.Background(), "X:BTCUSD", time.Now(), time.Now())
	suite.Equal(errors.ErrCodeDownloadFailed, errors.GetCode(err))
}
