package inference

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/metrics"
	"github.com/rxtech-lab/argo-fusion/internal/model"
	"github.com/rxtech-lab/argo-fusion/internal/registry"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// SignalSink receives every batch of signals the engine produces.
type SignalSink interface {
	Publish(ctx context.Context, signals []types.Signal) error
}

// Engine scores the latest feature row of every asset with the active model. Rows older
// than MaxFeatureAgeDays are treated as missing.
type Engine struct {
	registry    registry.Registry
	artifacts   model.ArtifactStore
	cfg         config.InferenceConfig
	fingerprint string
	sinks       []SignalSink
	recorder    *metrics.Recorder
	logger      *logger.Logger
}

// NewEngine creates an engine. fingerprint is the label definition currently configured;
// models trained against a different one are refused.
func NewEngine(
	reg registry.Registry,
	artifacts model.ArtifactStore,
	cfg config.InferenceConfig,
	fingerprint string,
	recorder *metrics.Recorder,
	log *logger.Logger,
	sinks ...SignalSink,
) *Engine {
	return &Engine{
		registry:    reg,
		artifacts:   artifacts,
		cfg:         cfg,
		fingerprint: fingerprint,
		sinks:       sinks,
		recorder:    recorder,
		logger:      log,
	}
}

// Run produces one signal per asset for day and hands them to every sink.
func (e *Engine) Run(ctx context.Context, snapshot *features.Snapshot, day time.Time) ([]types.Signal, error) {
	record, clf, err := e.load(ctx)
	if err != nil {
		e.logger.Error("Inference aborted", zap.Time("day", day), zap.Error(err))

		return nil, err
	}

	indexes := make([]int, 0, len(clf.Features()))
	for _, name := range clf.Features() {
		idx := snapshot.ColumnIndex(name)
		if idx < 0 {
			err := errors.Newf(errors.ErrCodeUnknownFeature, "model %d needs feature %q, missing from matrix version %d", record.ID, name, snapshot.Version)
			e.logger.Error("Inference aborted", zap.Time("day", day), zap.Error(err))

			return nil, err
		}

		indexes = append(indexes, idx)
	}

	rows := snapshot.LatestPerAsset(day)
	oldest := types.Day(day).AddDate(0, 0, -e.cfg.MaxFeatureAgeDays)
	signals := make([]types.Signal, 0, len(rows))
	noData, stale := 0, 0

	for _, row := range rows {
		values := make([]optional.Option[float64], len(indexes))
		if row.Label.Time.Before(oldest) {
			stale++
		} else {
			for i, idx := range indexes {
				values[i] = row.Values[idx]
			}
		}

		signal := e.score(clf, record.ID, row.Label.Asset, types.Day(day), values)
		if signal.NoData {
			noData++
		}

		e.recorder.Signal(signal.Direction)
		signals = append(signals, signal)
	}

	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, signals); err != nil {
			e.logger.Error("Failed to publish signals", zap.Int("signals", len(signals)), zap.Error(err))

			return nil, err
		}
	}

	e.logger.Info("Inference finished",
		zap.Time("day", day),
		zap.Int64("model_id", record.ID),
		zap.Int64("matrix_version", snapshot.Version),
		zap.Int("signals", len(signals)),
		zap.Int("no_data", noData),
		zap.Int("stale", stale),
	)

	return signals, nil
}

// load resolves the active model and checks it was trained for the configured labels.
func (e *Engine) load(ctx context.Context) (types.ModelRecord, model.Classifier, error) {
	record, err := e.registry.GetActive(ctx)
	if err != nil {
		return types.ModelRecord{}, nil, err
	}

	if got := record.Hyperparameters[types.HyperparameterLabelFingerprint]; got != e.fingerprint {
		return types.ModelRecord{}, nil, errors.Newf(errors.ErrCodeThresholdMismatch,
			"model %d was trained with label fingerprint %q, configuration has %q", record.ID, got, e.fingerprint)
	}

	artifact, err := e.artifacts.Load(ctx, record.ArtifactPath)
	if err != nil {
		return types.ModelRecord{}, nil, err
	}

	if artifact.LabelFingerprint != e.fingerprint {
		return types.ModelRecord{}, nil, errors.Newf(errors.ErrCodeThresholdMismatch,
			"artifact %s has label fingerprint %q, configuration has %q", record.ArtifactPath, artifact.LabelFingerprint, e.fingerprint)
	}

	clf, err := artifact.Classifier()
	if err != nil {
		return types.ModelRecord{}, nil, err
	}

	return record, clf, nil
}

func (e *Engine) score(clf model.Classifier, modelID int64, asset string, day time.Time, values []optional.Option[float64]) types.Signal {
	signal := types.Signal{
		Asset:            asset,
		Time:             day,
		ModelID:          modelID,
		Direction:        types.DirectionHold,
		AttributionClass: types.DirectionHold,
	}

	if allNull(values) {
		signal.NoData = true

		return signal
	}

	p := clf.PredictProba(values)
	signal.Probabilities = p
	signal.Score = model.Score(p)
	signal.Direction = model.Decide(p, e.cfg.MinConfidence)
	signal.AttributionClass = signal.Direction

	for _, v := range p {
		signal.Confidence = max(signal.Confidence, v)
	}

	if e.cfg.TopK > 0 {
		signal.TopFeatures = model.TopAttributions(clf.Attribute(values, signal.Direction), e.cfg.TopK)
	}

	return signal
}

func allNull(values []optional.Option[float64]) bool {
	for _, v := range values {
		if v.IsSome() {
			return false
		}
	}

	return true
}
