package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type FusionTestSuite struct {
	suite.Suite
	cfg config.FusionConfig
}

func TestFusionSuite(t *testing.T) {
	suite.Run(t, new(FusionTestSuite))
}

func (suite *FusionTestSuite) SetupTest() {
	cfg, err := config.Default()
	suite.Require().NoError(err)
	suite.cfg = cfg.Fusion
}

func (suite *FusionTestSuite) fuser(mode config.FusionMode) *Fuser {
	cfg := suite.cfg
	cfg.Mode = mode
	f, err := New(cfg)
	suite.Require().NoError(err)

	return f
}

func input(tier string, price, news float64) Input {
	return Input{
		Asset:      "BTC",
		Time:       time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		Tier:       tier,
		PriceScore: price,
		Signal:     types.Signal{Asset: "BTC", Score: news},
	}
}

func (suite *FusionTestSuite) TestNewRejectsBadConfig() {
	cfg := suite.cfg
	cfg.Mode = "vote"
	_, err := New(cfg)
	suite.Equal(errors.ErrCodeInvalidFusionMode, errors.GetCode(err))

	cfg = suite.cfg
	cfg.MinMultiplier, cfg.MaxMultiplier = 2, 1
	_, err = New(cfg)
	suite.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (suite *FusionTestSuite) TestVetoDominatesInEveryMode() {
	for _, mode := range []config.FusionMode{config.FusionModeRules, config.FusionModeWeighted, config.FusionModeComposed} {
		f := suite.fuser(mode)

		in := input("large", 0.9, 0.9)
		in.Regulatory = true
		in.Sentiment3d = optional.Some(-0.5)
		in.Adoption = true
		in.Sentiment1d = optional.Some(0.8)

		d, err := f.Decide(in)
		suite.Require().NoError(err)
		suite.Equal(types.DirectionHold, d.Direction, mode)
		suite.True(d.Veto, mode)
		suite.Equal([]Reason{ReasonRegulatory}, d.Reasons, mode)
		suite.Equal(1.0, d.TakeProfitAdjustment, mode)
		suite.Zero(d.LeverageMultiplier, mode)

		in = input("large", 0.9, 0.9)
		in.Security = true
		in.Sentiment1d = optional.Some(-0.25)

		d, err = f.Decide(in)
		suite.Require().NoError(err)
		suite.True(d.Veto, mode)
		suite.Equal([]Reason{ReasonSecurity}, d.Reasons, mode)
	}
}

func (suite *FusionTestSuite) TestVetoNeedsFlagAndSentiment() {
	f := suite.fuser(config.FusionModeRules)

	tests := []struct {
		name string
		edit func(*Input)
		veto bool
	}{
		{name: "flag without sentiment", edit: func(in *Input) { in.Regulatory = true }},
		{name: "sentiment without flag", edit: func(in *Input) { in.Sentiment3d = optional.Some(-0.9) }},
		{name: "sentiment at threshold", edit: func(in *Input) {
			in.Regulatory = true
			in.Sentiment3d = optional.Some(-0.3)
		}},
		{name: "security uses one-day sentiment", edit: func(in *Input) {
			in.Security = true
			in.Sentiment3d = optional.Some(-0.9)
		}},
		{name: "regulatory below threshold", edit: func(in *Input) {
			in.Regulatory = true
			in.Sentiment3d = optional.Some(-0.31)
		}, veto: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			in := input("large", 0.5, 0)
			tc.edit(&in)

			d, err := f.Decide(in)
			suite.Require().NoError(err)
			suite.Equal(tc.veto, d.Veto)
		})
	}
}

func (suite *FusionTestSuite) TestVetoDoesNotBlockShorts() {
	f := suite.fuser(config.FusionModeRules)

	in := input("large", -0.6, -0.2)
	in.Regulatory = true
	in.Sentiment3d = optional.Some(-0.8)

	d, err := f.Decide(in)
	suite.Require().NoError(err)
	suite.Equal(types.DirectionSell, d.Direction)
	suite.False(d.Veto)
}

func (suite *FusionTestSuite) TestMultiplierStaysInBounds() {
	for _, mode := range []config.FusionMode{config.FusionModeRules, config.FusionModeWeighted, config.FusionModeComposed} {
		f := suite.fuser(mode)

		for i := -20; i <= 20; i++ {
			s := float64(i) / 20
			for _, price := range []float64{-1, -0.3, 0, 0.3, 1} {
				in := input("small", price, s)
				in.Sentiment3d = optional.Some(s)
				in.VolumeZ = optional.Some(4 * s)

				d, err := f.Decide(in)
				suite.Require().NoError(err)
				if d.Direction == types.DirectionHold {
					suite.Zero(d.LeverageMultiplier)

					continue
				}

				suite.GreaterOrEqual(d.LeverageMultiplier, suite.cfg.MinMultiplier)
				suite.LessOrEqual(d.LeverageMultiplier, suite.cfg.MaxMultiplier)
			}
		}
	}
}

func (suite *FusionTestSuite) TestSentimentMultiplier() {
	f := suite.fuser(config.FusionModeRules)

	tests := []struct {
		name      string
		sentiment optional.Option[float64]
		want      float64
	}{
		{name: "missing is neutral", want: 1},
		{name: "positive", sentiment: optional.Some(0.4), want: 1.2},
		{name: "negative", sentiment: optional.Some(-0.4), want: 0.8},
		{name: "clamped high", sentiment: optional.Some(1.0), want: 1.5},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			in := input("large", 0.5, 0)
			in.Sentiment3d = tc.sentiment

			d, err := f.Decide(in)
			suite.Require().NoError(err)
			suite.InDelta(tc.want, d.LeverageMultiplier, 1e-9)
		})
	}
}

func (suite *FusionTestSuite) TestVolumeAnomalyCapsMultiplier() {
	f := suite.fuser(config.FusionModeRules)

	in := input("large", 0.5, 0)
	in.Sentiment3d = optional.Some(0.8)
	in.VolumeZ = optional.Some(-3.5)

	d, err := f.Decide(in)
	suite.Require().NoError(err)
	suite.Equal(1.0, d.LeverageMultiplier)
	suite.Contains(d.Reasons, ReasonVolumeCap)

	in.VolumeZ = optional.Some(2.9)
	d, err = f.Decide(in)
	suite.Require().NoError(err)
	suite.InDelta(1.4, d.LeverageMultiplier, 1e-9)

	// a multiplier already below one is left alone
	in.Sentiment3d = optional.Some(-0.6)
	in.VolumeZ = optional.Some(5.0)
	d, err = f.Decide(in)
	suite.Require().NoError(err)
	suite.InDelta(0.7, d.LeverageMultiplier, 1e-9)
}

func (suite *FusionTestSuite) TestBiasRuleByTier() {
	f := suite.fuser(config.FusionModeRules)

	tests := []struct {
		name  string
		tier  string
		price float64
		news  float64
		want  types.Direction
	}{
		{name: "small tier disagreement", tier: "small", price: 0.3, news: -0.2, want: types.DirectionHold},
		{name: "small tier below threshold", tier: "small", price: 0.1, news: -0.1, want: types.DirectionBuy},
		{name: "mid tier disagreement", tier: "mid", price: -0.4, news: 0.3, want: types.DirectionHold},
		{name: "mid tier below threshold", tier: "mid", price: -0.3, news: 0.1, want: types.DirectionSell},
		{name: "large tier ignores disagreement", tier: "large", price: 0.9, news: -0.9, want: types.DirectionBuy},
		{name: "unknown tier ignores disagreement", tier: "micro", price: 0.9, news: -0.9, want: types.DirectionBuy},
		{name: "agreement", tier: "small", price: 0.9, news: 0.1, want: types.DirectionBuy},
		{name: "neutral news", tier: "small", price: 0.9, news: 0, want: types.DirectionBuy},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			d, err := f.Decide(input(tc.tier, tc.price, tc.news))
			suite.Require().NoError(err)
			suite.Equal(tc.want, d.Direction)
			if tc.want == types.DirectionHold {
				suite.Equal([]Reason{ReasonDisagreement}, d.Reasons)
				suite.False(d.Veto)
				suite.Zero(d.LeverageMultiplier)
			}
		})
	}
}

func (suite *FusionTestSuite) TestTakeProfitOnAdoption() {
	f := suite.fuser(config.FusionModeRules)

	in := input("large", 0.4, 0)
	in.Adoption = true
	d, err := f.Decide(in)
	suite.Require().NoError(err)
	suite.Equal(1.5, d.TakeProfitAdjustment)

	in.PriceScore = -0.4
	d, err = f.Decide(in)
	suite.Require().NoError(err)
	suite.Equal(types.DirectionSell, d.Direction)
	suite.Equal(1.0, d.TakeProfitAdjustment)
}

func (suite *FusionTestSuite) TestWeightedMode() {
	f := suite.fuser(config.FusionModeWeighted)

	d, err := f.Decide(input("small", 0.5, -0.5))
	suite.Require().NoError(err)
	suite.InDelta(0.1, d.Combined, 1e-9)
	suite.Equal(types.DirectionBuy, d.Direction)
	suite.InDelta(0.6, d.LeverageMultiplier, 1e-9)

	d, err = f.Decide(input("large", -1, -1))
	suite.Require().NoError(err)
	suite.Equal(types.DirectionSell, d.Direction)
	suite.InDelta(1.5, d.LeverageMultiplier, 1e-9)

	d, err = f.Decide(input("large", 0.4, -0.6))
	suite.Require().NoError(err)
	suite.Equal(types.DirectionHold, d.Direction)
	suite.Equal([]Reason{ReasonNoDirection}, d.Reasons)
}

func (suite *FusionTestSuite) TestComposedModeAppliesRules() {
	f := suite.fuser(config.FusionModeComposed)

	// weighted direction is long but the small-tier bias rule blocks it
	d, err := f.Decide(input("small", 0.8, -0.4))
	suite.Require().NoError(err)
	suite.Equal(types.DirectionHold, d.Direction)
	suite.Equal([]Reason{ReasonDisagreement}, d.Reasons)

	in := input("large", 0.2, 0.6)
	in.Sentiment3d = optional.Some(0.2)
	d, err = f.Decide(in)
	suite.Require().NoError(err)
	suite.Equal(types.DirectionBuy, d.Direction)
	suite.InDelta(1.1, d.LeverageMultiplier, 1e-9)
}

func (suite *FusionTestSuite) TestRulesModeUsesPriceDirection() {
	f := suite.fuser(config.FusionModeRules)

	d, err := f.Decide(input("large", -0.1, 0.9))
	suite.Require().NoError(err)
	suite.Equal(types.DirectionSell, d.Direction)

	d, err = f.Decide(input("large", 0, 0.9))
	suite.Require().NoError(err)
	suite.Equal(types.DirectionHold, d.Direction)
	suite.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), d.Time)
}

func (suite *FusionTestSuite) TestNoDataSignalCountsAsNeutral() {
	f := suite.fuser(config.FusionModeWeighted)

	in := input("small", 0.5, 0)
	in.Signal.NoData = true
	d, err := f.Decide(in)
	suite.Require().NoError(err)
	suite.InDelta(0.3, d.Combined, 1e-9)
}

func (suite *FusionTestSuite) TestInvalidInput() {
	f := suite.fuser(config.FusionModeRules)

	tests := []struct {
		name string
		edit func(*Input)
	}{
		{name: "price above range", edit: func(in *Input) { in.PriceScore = 1.2 }},
		{name: "price NaN", edit: func(in *Input) { in.PriceScore = math.NaN() }},
		{name: "news below range", edit: func(in *Input) { in.Signal.Score = -1.01 }},
		{name: "sentiment out of range", edit: func(in *Input) { in.Sentiment1d = optional.Some(3.0) }},
		{name: "volume NaN", edit: func(in *Input) { in.VolumeZ = optional.Some(math.NaN()) }},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			in := input("large", 0.5, 0.5)
			tc.edit(&in)

			_, err := f.Decide(in)
			suite.Equal(errors.ErrCodeInvalidFusionInput, errors.GetCode(err))
		})
	}
}

func (suite *FusionTestSuite) TestDeterministic() {
	f := suite.fuser(config.FusionModeComposed)

	in := input("mid", 0.35, 0.2)
	in.Sentiment3d = optional.Some(0.3)
	in.VolumeZ = optional.Some(1.0)
	in.Adoption = true

	first, err := f.Decide(in)
	suite.Require().NoError(err)

	for range 10 {
		d, err := f.Decide(in)
		suite.Require().NoError(err)
		suite.Equal(first, d)
	}
}
