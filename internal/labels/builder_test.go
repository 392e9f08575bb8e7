package labels

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BuilderTestSuite struct {
	suite.Suite
	builder *Builder
	start   time.Time
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

func (suite *BuilderTestSuite) SetupTest() {
	cfg, err := config.Default()
	suite.Require().NoError(err)

	suite.builder = NewBuilder(cfg.Labels, logger.NewNopLogger())
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BuilderTestSuite) bars(asset string, closes ...float64) []types.PriceBar {
	bars := make([]types.PriceBar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, types.PriceBar{Asset: asset, Time: suite.start.AddDate(0, 0, i), Close: c, Volume: 1})
	}

	return bars
}

func (suite *BuilderTestSuite) find(labels []types.Label, asset string, day time.Time) (types.Label, bool) {
	for _, l := range labels {
		if l.Asset == asset && l.Time.Equal(day) {
			return l, true
		}
	}

	return types.Label{}, false
}

func (suite *BuilderTestSuite) TestFourPercentRiseFlatThreeDays() {
	bars := suite.bars("bitcoin", 100, 104, 102, 100, 100)
	labels, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 30))
	suite.Require().NoError(err)

	first, ok := suite.find(labels, "bitcoin", suite.start)
	suite.Require().True(ok)
	suite.InDelta(0.04, first.ForwardReturn(types.Horizon1d).Unwrap(), 1e-12)
	suite.Equal(types.DirectionBuy, first.Class(types.Horizon1d).Unwrap())
	suite.InDelta(0.0, first.ForwardReturn(types.Horizon3d).Unwrap(), 1e-12)
	suite.Equal(types.DirectionHold, first.Class(types.Horizon3d).Unwrap())
	suite.True(first.ForwardReturn(types.Horizon7d).IsNone())
	suite.True(first.Class(types.Horizon14d).IsNone())
}

func (suite *BuilderTestSuite) TestUnrealizedDaysAreExcluded() {
	bars := suite.bars("ethereum", 100, 101, 102)
	labels, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 10))
	suite.Require().NoError(err)

	// the last day has no next close, so it has no label
	suite.Len(labels, 2)
	_, ok := suite.find(labels, "ethereum", suite.start.AddDate(0, 0, 2))
	suite.False(ok)
}

func (suite *BuilderTestSuite) TestAsOfHidesFutureBars() {
	bars := suite.bars("solana", 100, 110, 120, 130)
	labels, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 1))
	suite.Require().NoError(err)

	suite.Require().Len(labels, 1)
	suite.InDelta(0.10, labels[0].ForwardReturn(types.Horizon1d).Unwrap(), 1e-12)
	suite.True(labels[0].ForwardReturn(types.Horizon3d).IsNone())
}

func (suite *BuilderTestSuite) TestGapProducesNoLabel() {
	bars := suite.bars("ripple", 100, 101, 102, 103, 104, 105)
	// drop day 2
	bars = append(bars[:2], bars[3:]...)

	labels, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 30))
	suite.Require().NoError(err)

	_, ok := suite.find(labels, "ripple", suite.start.AddDate(0, 0, 2))
	suite.False(ok)

	// day 1 has no 1d close but its 3d close exists
	dayOne, ok := suite.find(labels, "ripple", suite.start.AddDate(0, 0, 1))
	suite.Require().True(ok)
	suite.True(dayOne.ForwardReturn(types.Horizon1d).IsNone())
	suite.InDelta(104.0/101.0-1, dayOne.ForwardReturn(types.Horizon3d).Unwrap(), 1e-12)
}

func (suite *BuilderTestSuite) TestVolatilityNeedsFullWindow() {
	closes := make([]float64, 0, 40)
	price := 100.0
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			price *= 1.02
		} else {
			price *= 0.99
		}

		closes = append(closes, price)
	}

	labels, err := suite.builder.Build(suite.bars("cardano", closes...), suite.start.AddDate(0, 0, 60))
	suite.Require().NoError(err)

	// day 6 has only 6 trailing returns
	early, ok := suite.find(labels, "cardano", suite.start.AddDate(0, 0, 6))
	suite.Require().True(ok)
	suite.True(early.Volatility7d.IsNone())

	// day 7 has exactly 7
	seven, ok := suite.find(labels, "cardano", suite.start.AddDate(0, 0, 7))
	suite.Require().True(ok)
	suite.True(seven.Volatility7d.IsSome())
	suite.True(seven.Volatility30d.IsNone())
	suite.Greater(seven.Volatility7d.Unwrap(), 0.0)

	late, ok := suite.find(labels, "cardano", suite.start.AddDate(0, 0, 30))
	suite.Require().True(ok)
	suite.True(late.Volatility30d.IsSome())
}

func (suite *BuilderTestSuite) TestConstantGrowthHasZeroVolatility() {
	closes := make([]float64, 0, 10)
	price := 100.0
	for i := 0; i < 10; i++ {
		closes = append(closes, price)
		price *= 1.01
	}

	labels, err := suite.builder.Build(suite.bars("dogecoin", closes...), suite.start.AddDate(0, 0, 20))
	suite.Require().NoError(err)

	label, ok := suite.find(labels, "dogecoin", suite.start.AddDate(0, 0, 8))
	suite.Require().True(ok)
	suite.InDelta(0.0, label.Volatility7d.Unwrap(), 1e-12)
}

func (suite *BuilderTestSuite) TestDuplicateBarFails() {
	bars := suite.bars("bitcoin", 100, 101)
	bars = append(bars, types.PriceBar{Asset: "bitcoin", Time: suite.start.Add(3 * time.Hour), Close: 100})

	_, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 5))
	suite.Error(err)
	suite.Equal(errors.ErrCodeDuplicateKey, errors.GetCode(err))
	suite.Equal(errors.ClassDataIntegrity, errors.ClassOf(err))
}

func (suite *BuilderTestSuite) TestNonPositiveCloseFails() {
	_, err := suite.builder.Build(suite.bars("bitcoin", 100, 0, 101), suite.start.AddDate(0, 0, 5))
	suite.Equal(errors.ErrCodeNonPositivePrice, errors.GetCode(err))
}

func (suite *BuilderTestSuite) TestOutputIsSortedAndVerifiable() {
	bars := append(suite.bars("ethereum", 100, 101, 99, 98, 100, 103, 104, 101, 100),
		suite.bars("bitcoin", 50, 52, 53, 50, 49, 48, 47, 49, 50)...)

	labels, err := suite.builder.Build(bars, suite.start.AddDate(0, 0, 30))
	suite.Require().NoError(err)
	suite.Require().NotEmpty(labels)

	for i := 1; i < len(labels); i++ {
		prev, cur := labels[i-1], labels[i]
		suite.True(prev.Time.Before(cur.Time) || (prev.Time.Equal(cur.Time) && prev.Asset < cur.Asset))
	}

	suite.NoError(Verify(labels, bars))
}

func (suite *BuilderTestSuite) TestClassify() {
	suite.Equal(types.DirectionBuy, Classify(0.031, 0.03))
	suite.Equal(types.DirectionHold, Classify(0.03, 0.03))
	suite.Equal(types.DirectionHold, Classify(-0.03, 0.03))
	suite.Equal(types.DirectionSell, Classify(-0.0301, 0.03))
}

type IntegrityTestSuite struct {
	suite.Suite
	day time.Time
}

func TestIntegritySuite(t *testing.T) {
	suite.Run(t, new(IntegrityTestSuite))
}

func (suite *IntegrityTestSuite) SetupTest() {
	suite.day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *IntegrityTestSuite) label(ret1d float64, complete bool) types.Label {
	label := types.Label{Asset: "bitcoin", Time: suite.day, Close: 100}
	label.ForwardReturns[0] = optional.Some(ret1d)
	label.Classes[0] = optional.Some(Classify(ret1d, 0.03))

	if complete {
		for i := 1; i < types.HorizonCount; i++ {
			label.ForwardReturns[i] = optional.Some(0.0)
			label.Classes[i] = optional.Some(types.DirectionHold)
		}
	}

	return label
}

func (suite *IntegrityTestSuite) TestVerifyRejectsMissingForwardClose() {
	label := suite.label(0.05, false)
	bars := []types.PriceBar{{Asset: "bitcoin", Time: suite.day, Close: 100}}

	err := Verify([]types.Label{label}, bars)
	suite.Equal(errors.ErrCodeLookahead, errors.GetCode(err))
}

func (suite *IntegrityTestSuite) TestVerifyRejectsWrongReturn() {
	label := suite.label(0.05, false)
	bars := []types.PriceBar{
		{Asset: "bitcoin", Time: suite.day, Close: 100},
		{Asset: "bitcoin", Time: suite.day.AddDate(0, 0, 1), Close: 101},
	}

	err := Verify([]types.Label{label}, bars)
	suite.Equal(errors.ErrCodeDataIntegrity, errors.GetCode(err))
}

func (suite *IntegrityTestSuite) TestVerifyRejectsDuplicates() {
	label := suite.label(0.01, false)
	bars := []types.PriceBar{
		{Asset: "bitcoin", Time: suite.day, Close: 100},
		{Asset: "bitcoin", Time: suite.day.AddDate(0, 0, 1), Close: 101},
	}

	err := Verify([]types.Label{label, label}, bars)
	suite.Equal(errors.ErrCodeDuplicateKey, errors.GetCode(err))
}

func (suite *IntegrityTestSuite) TestReconcile() {
	incomplete := suite.label(0.01, false)
	complete := suite.label(0.02, true)
	complete.Asset = "ethereum"

	freshIncomplete := suite.label(0.01, true)
	out, err := Reconcile([]types.Label{incomplete, complete}, []types.Label{freshIncomplete, complete})
	suite.Require().NoError(err)

	// the incomplete label is replaced, the unchanged complete one is skipped
	suite.Require().Len(out, 1)
	suite.Equal("bitcoin", out[0].Asset)
	suite.True(out[0].Complete())
}

func (suite *IntegrityTestSuite) TestReconcileRejectsChangedCompleteLabel() {
	complete := suite.label(0.02, true)
	changed := suite.label(0.025, true)

	_, err := Reconcile([]types.Label{complete}, []types.Label{changed})
	suite.Equal(errors.ErrCodeImmutableLabel, errors.GetCode(err))
}
