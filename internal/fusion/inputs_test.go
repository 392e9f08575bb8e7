package fusion

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/news"
	"github.com/rxtech-lab/argo-fusion/internal/types"
)

func (suite *FusionTestSuite) TestBuildInputs() {
	cfg, err := config.Default()
	suite.Require().NoError(err)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	some := optional.Some[float64]
	none := optional.None[float64]()

	newsTable := types.FeatureTable{Name: "news_signals", AssetScoped: true, Columns: news.Columns()}
	row := func(asset string, t time.Time, s1, s3, z, regulation, security, adoption optional.Option[float64]) types.FeatureRow {
		values := make([]optional.Option[float64], len(news.Columns()))
		for i := range values {
			values[i] = none
		}

		for i, c := range news.Columns() {
			switch c {
			case news.ColumnSentiment1d:
				values[i] = s1
			case news.ColumnSentiment3d:
				values[i] = s3
			case news.ColumnVolumeZScore:
				values[i] = z
			case news.ColumnRegulationFlag:
				values[i] = regulation
			case news.ColumnSecurityFlag:
				values[i] = security
			case news.ColumnAdoptionFlag:
				values[i] = adoption
			}
		}

		return types.FeatureRow{Asset: asset, Time: t, Values: values}
	}

	newsTable.Rows = []types.FeatureRow{
		row("bitcoin", day.AddDate(0, 0, -1), some(0.9), some(0.9), some(9), some(1), some(1), some(1)),
		row("bitcoin", day, some(0.2), some(-0.4), some(1.5), some(1), some(0), some(1)),
		row("solana", day, none, none, none, some(0), some(0), some(0)),
	}

	signals := []types.Signal{
		{Asset: "bitcoin", Time: day, Score: 0.3, Direction: types.DirectionBuy},
		{Asset: "ethereum", Time: day.AddDate(0, 0, -1), Score: -0.8},
	}

	scores := []types.PriceScore{{Asset: "bitcoin", Score: 0.6}, {Asset: "ethereum", Score: -0.2}, {Asset: "solana", Score: 0.1}}

	inputs := BuildInputs(day.Add(15*time.Hour), scores, signals, newsTable, cfg.Assets)
	suite.Require().Len(inputs, 3)

	btc := inputs[0]
	suite.Equal("bitcoin", btc.Asset)
	suite.Equal(day, btc.Time)
	suite.Equal("large", btc.Tier)
	suite.Equal(0.6, btc.PriceScore)
	suite.Equal(0.3, btc.Signal.Score)
	suite.False(btc.Signal.NoData)
	suite.Equal(some(0.2), btc.Sentiment1d)
	suite.Equal(some(-0.4), btc.Sentiment3d)
	suite.Equal(some(1.5), btc.VolumeZ)
	suite.True(btc.Regulatory)
	suite.False(btc.Security)
	suite.True(btc.Adoption)

	// A signal from another day does not count.
	eth := inputs[1]
	suite.Equal("large", eth.Tier)
	suite.True(eth.Signal.NoData)
	suite.True(eth.Sentiment3d.IsNone())
	suite.False(eth.Regulatory)

	sol := inputs[2]
	suite.Equal("small", sol.Tier)
	suite.True(sol.Signal.NoData)
	suite.True(sol.Sentiment1d.IsNone())
	suite.True(sol.VolumeZ.IsNone())
	suite.False(sol.Adoption)

	// The joined inputs feed straight into Decide.
	decision, err := suite.fuser(config.FusionModeRules).Decide(btc)
	suite.Require().NoError(err)
	suite.Equal(types.DirectionHold, decision.Direction)
	suite.True(decision.Veto)
}
