package inference

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/metrics"
	"github.com/rxtech-lab/argo-fusion/internal/model"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/internal/version"
	"github.com/rxtech-lab/argo-fusion/mocks"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const fingerprint = "abc123"

type EngineTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	registry  *mocks.MockRegistry
	artifacts *mocks.MockArtifactStore
	sink      *mocks.MockSignalSink
	recorder  *metrics.Recorder
	engine    *Engine
	snapshot  *features.Snapshot
	record    types.ModelRecord
	artifact  *model.Artifact
	day1      time.Time
	day2      time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func row(asset string, day time.Time, values ...optional.Option[float64]) types.MatrixRow {
	return types.MatrixRow{Label: types.Label{Asset: asset, Time: day}, Values: values}
}

func some(v float64) optional.Option[float64] {
	return optional.Some(v)
}

func none() optional.Option[float64] {
	return optional.None[float64]()
}

func (suite *EngineTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.registry = mocks.NewMockRegistry(suite.ctrl)
	suite.artifacts = mocks.NewMockArtifactStore(suite.ctrl)
	suite.sink = mocks.NewMockSignalSink(suite.ctrl)
	suite.recorder = metrics.NewRecorder()

	suite.engine = NewEngine(suite.registry, suite.artifacts,
		config.InferenceConfig{MinConfidence: 0.4, TopK: 1, MaxFeatureAgeDays: 1},
		fingerprint, suite.recorder, logger.NewNopLogger(), suite.sink)

	suite.day1 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	suite.day2 = suite.day1.AddDate(0, 0, 1)
	day3 := suite.day1.AddDate(0, 0, 2)

	// columns are x, a, b; the model reads a and b
	suite.snapshot = &features.Snapshot{
		Version: 4,
		Columns: []string{"x", "a", "b"},
		Rows: []types.MatrixRow{
			row("BTC", suite.day1, some(9), some(1), some(1)),
			row("ETH", suite.day1, some(9), some(-1), some(0)),
			row("BTC", suite.day2, some(9), some(1.5), some(0)),
			row("SOL", suite.day2, some(5), none(), none()),
			row("XRP", suite.day2, none(), some(0), some(0)),
			row("BTC", day3, some(9), some(-5), some(0)),
		},
	}

	suite.record = types.ModelRecord{
		ID:              7,
		Name:            "softmax-3d",
		Family:          types.ModelFamilySoftmax,
		Target:          types.Horizon3d,
		Features:        []string{"a", "b"},
		Hyperparameters: map[string]string{types.HyperparameterLabelFingerprint: fingerprint},
		ArtifactPath:    "softmax-3d.yaml",
		Active:          true,
	}

	suite.artifact = &model.Artifact{
		Format:           version.ArtifactFormat,
		Family:           types.ModelFamilySoftmax,
		Target:           types.Horizon3d,
		LabelFingerprint: fingerprint,
		Softmax: &model.Softmax{
			FeatureNames: []string{"a", "b"},
			Means:        []float64{0, 0},
			Scales:       []float64{1, 1},
			Weights:      [types.ClassCount][]float64{{-2, 0}, {0, 0}, {2, 0.5}},
		},
	}
}

func (suite *EngineTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *EngineTestSuite) expectModel() {
	suite.registry.EXPECT().GetActive(gomock.Any()).Return(suite.record, nil)
	suite.artifacts.EXPECT().Load(gomock.Any(), "softmax-3d.yaml").Return(suite.artifact, nil)
}

func (suite *EngineTestSuite) TestRun() {
	suite.expectModel()
	suite.sink.EXPECT().Publish(gomock.Any(), gomock.Len(4)).Return(nil)

	signals, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 4)

	btc := signals[0]
	suite.Equal("BTC", btc.Asset)
	suite.Equal(suite.day2, btc.Time)
	suite.Equal(int64(7), btc.ModelID)
	suite.Equal(types.DirectionBuy, btc.Direction)
	suite.Equal(types.DirectionBuy, btc.AttributionClass)
	suite.InDelta(btc.Probabilities.Of(types.DirectionBuy)-btc.Probabilities.Of(types.DirectionSell), btc.Score, 1e-12)
	suite.InDelta(btc.Probabilities.Of(types.DirectionBuy), btc.Confidence, 1e-12)
	suite.Equal([]types.Attribution{{Feature: "a", Weight: 3}}, btc.TopFeatures)
	suite.False(btc.NoData)

	eth := signals[1]
	suite.Equal("ETH", eth.Asset)
	suite.Equal(types.DirectionSell, eth.Direction)
	suite.Equal(types.DirectionSell, eth.AttributionClass)
	suite.Less(eth.Score, 0.0)
	suite.Equal([]types.Attribution{{Feature: "a", Weight: 2}}, eth.TopFeatures)

	sol := signals[2]
	suite.True(sol.NoData)
	suite.Equal(types.DirectionHold, sol.Direction)
	suite.Equal(types.Probabilities{}, sol.Probabilities)
	suite.Zero(sol.Confidence)
	suite.Empty(sol.TopFeatures)

	xrp := signals[3]
	suite.Equal(types.DirectionHold, xrp.Direction)
	suite.InDelta(0, xrp.Score, 1e-12)
	suite.InDelta(1.0/3, xrp.Confidence, 1e-12)
}

func (suite *EngineTestSuite) TestRunUsesLatestRowOnOrBeforeDay() {
	suite.expectModel()
	suite.sink.EXPECT().Publish(gomock.Any(), gomock.Len(2)).Return(nil)

	signals, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day1.Add(15*time.Hour))
	suite.Require().NoError(err)
	suite.Require().Len(signals, 2)
	suite.Equal(suite.day1, signals[0].Time)

	// BTC on day 1 has a=1 b=1
	p := suite.artifact.Softmax.PredictProba([]optional.Option[float64]{some(1), some(1)})
	suite.InDelta(model.Score(p), signals[0].Score, 1e-12)
}

func (suite *EngineTestSuite) TestStaleRowsProduceNoData() {
	suite.expectModel()
	suite.sink.EXPECT().Publish(gomock.Any(), gomock.Len(4)).Return(nil)

	day3 := suite.day1.AddDate(0, 0, 2)
	signals, err := suite.engine.Run(context.Background(), suite.snapshot, day3)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 4)

	// BTC has a row on day 3; SOL and XRP are one day old; ETH is two days old
	suite.Equal("BTC", signals[0].Asset)
	suite.False(signals[0].NoData)
	suite.Equal(types.DirectionSell, signals[0].Direction)

	suite.Equal("ETH", signals[1].Asset)
	suite.True(signals[1].NoData)
	suite.Equal(day3, signals[1].Time)
	suite.Zero(signals[1].Confidence)
	suite.Equal(types.DirectionHold, signals[1].Direction)

	suite.Equal("XRP", signals[3].Asset)
	suite.False(signals[3].NoData)
}

func (suite *EngineTestSuite) TestSameDayOnly() {
	engine := NewEngine(suite.registry, suite.artifacts,
		config.InferenceConfig{MinConfidence: 0.4, TopK: 1, MaxFeatureAgeDays: 0},
		fingerprint, suite.recorder, logger.NewNopLogger())

	suite.expectModel()

	signals, err := engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Require().NoError(err)
	suite.Require().Len(signals, 4)

	suite.False(signals[0].NoData, "BTC has a day 2 row")
	suite.True(signals[1].NoData, "ETH only has a day 1 row")
}

func (suite *EngineTestSuite) TestNoActiveModel() {
	suite.registry.EXPECT().GetActive(gomock.Any()).
		Return(types.ModelRecord{}, errors.New(errors.ErrCodeNoActiveModel, "no active model"))

	signals, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodeNoActiveModel, errors.GetCode(err))
	suite.Nil(signals)
}

func (suite *EngineTestSuite) TestFingerprintMismatch() {
	suite.record.Hyperparameters = map[string]string{types.HyperparameterLabelFingerprint: "other"}
	suite.registry.EXPECT().GetActive(gomock.Any()).Return(suite.record, nil)

	_, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodeThresholdMismatch, errors.GetCode(err))
	suite.Equal(errors.ClassConfiguration, errors.ClassOf(err))
}

func (suite *EngineTestSuite) TestArtifactFingerprintMismatch() {
	suite.artifact.LabelFingerprint = "other"
	suite.expectModel()

	_, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodeThresholdMismatch, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestIncompatibleArtifact() {
	suite.registry.EXPECT().GetActive(gomock.Any()).Return(suite.record, nil)
	suite.artifacts.EXPECT().Load(gomock.Any(), "softmax-3d.yaml").
		Return(nil, errors.New(errors.ErrCodeArtifactIncompatible, "format 9.0.0"))

	_, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodeArtifactIncompatible, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestMissingFeatureColumn() {
	suite.snapshot.Columns = []string{"x", "a", "c"}
	suite.expectModel()

	_, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodeUnknownFeature, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestSinkFailure() {
	suite.expectModel()
	suite.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodePublishFailed, "broker down"))

	_, err := suite.engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Equal(errors.ErrCodePublishFailed, errors.GetCode(err))
}

func (suite *EngineTestSuite) TestMinConfidenceFloor() {
	engine := NewEngine(suite.registry, suite.artifacts,
		config.InferenceConfig{MinConfidence: 0.99, TopK: 0},
		fingerprint, nil, logger.NewNopLogger())

	suite.expectModel()

	signals, err := engine.Run(context.Background(), suite.snapshot, suite.day2)
	suite.Require().NoError(err)

	for _, s := range signals {
		suite.Equal(types.DirectionHold, s.Direction, s.Asset)
		suite.Nil(s.TopFeatures)
	}

	suite.False(math.IsNaN(signals[0].Score))
}
