package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/evaluate"
	"github.com/rxtech-lab/argo-fusion/internal/features"
	"github.com/rxtech-lab/argo-fusion/internal/logger"
	"github.com/rxtech-lab/argo-fusion/internal/model"
	"github.com/rxtech-lab/argo-fusion/internal/registry"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Callbacks report walk-forward progress. They may be called from several goroutines.
type Callbacks struct {
	OnWindowStart func(index int, window Window)
	OnWindowDone  func(index int, result types.BacktestResult)
}

// Result is the outcome of a successful run.
type Result struct {
	ModelID   int64
	Record    types.ModelRecord
	Backtests []types.BacktestResult
}

// Trainer fits one model per walk-forward window, evaluates each on its validation range
// and registers the model of the most recent window together with every window's result.
type Trainer struct {
	registry     registry.Registry
	artifacts    model.ArtifactStore
	evaluator    *evaluate.Evaluator
	minTrainRows int
	parallelism  int
	logger       *logger.Logger
	callbacks    Callbacks
}

func NewTrainer(reg registry.Registry, artifacts model.ArtifactStore, cfg *config.Config, log *logger.Logger, callbacks Callbacks) *Trainer {
	return &Trainer{
		registry:     reg,
		artifacts:    artifacts,
		evaluator:    evaluate.NewEvaluator(cfg.Evaluation),
		minTrainRows: cfg.Training.MinTrainRows,
		parallelism:  max(cfg.Training.Parallelism, 1),
		logger:       log,
		callbacks:    callbacks,
	}
}

type windowOutcome struct {
	classifier model.Classifier
	result     types.BacktestResult
}

// Run executes the plan against a matrix snapshot. Nothing is registered unless every
// window succeeds; a written artifact is removed when registration does not happen.
func (t *Trainer) Run(ctx context.Context, plan Plan, snapshot *features.Snapshot) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}

	indexes, err := featureIndexes(snapshot, plan.Features)
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	t.logger.Info("Training started",
		zap.String("name", plan.Name),
		zap.String("family", string(plan.Family)),
		zap.Stringer("target", plan.Target),
		zap.Int("features", len(plan.Features)),
		zap.Int("windows", len(plan.Windows)),
		zap.Int64("matrix_version", snapshot.Version),
	)

	outcomes := make([]windowOutcome, len(plan.Windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)

	for i, w := range plan.Windows {
		g.Go(func() error {
			out, err := t.runWindow(gctx, plan, snapshot, indexes, i, w)
			if err != nil {
				return err
			}

			outcomes[i] = out

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.logger.Error("Training failed", zap.String("name", plan.Name), zap.Error(err))

		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeCanceled, "training canceled", err)
	}

	backtests := make([]types.BacktestResult, len(outcomes))
	degenerate := 0

	for i, out := range outcomes {
		backtests[i] = out.result
		if out.result.Degenerate {
			degenerate++
		}
	}

	if degenerate == len(outcomes) {
		t.logger.Warn("Every window is degenerate", zap.String("name", plan.Name))
	}

	last := plan.Windows[len(plan.Windows)-1]
	final := outcomes[len(outcomes)-1].classifier

	record := types.ModelRecord{
		Name:            plan.Name,
		Family:          plan.Family,
		Target:          plan.Target,
		Features:        append([]string(nil), plan.Features...),
		Hyperparameters: copyParams(plan.Hyperparameters),
		Train:           last.Train,
		Validation:      last.Validation,
		Universe:        plan.Universe,
		Metrics:         aggregate(backtests),
	}

	artifact, err := model.NewArtifact(final, plan.Target, plan.Hyperparameters[types.HyperparameterLabelFingerprint])
	if err != nil {
		return Result{}, err
	}

	path, err := t.artifacts.Save(ctx, fmt.Sprintf("%s-%s", plan.Name, uuid.NewString()[:8]), artifact)
	if err != nil {
		return Result{}, err
	}

	record.ArtifactPath = path

	if err := ctx.Err(); err != nil {
		t.discard(path)

		return Result{}, errors.Wrap(errors.ErrCodeCanceled, "training canceled", err)
	}

	id, err := t.registry.Register(ctx, record, backtests...)
	if err != nil {
		t.discard(path)

		return Result{}, err
	}

	record.ID = id
	for i := range backtests {
		backtests[i].ModelID = id
	}

	t.logger.Info("Training finished",
		zap.String("name", plan.Name),
		zap.Int64("model_id", id),
		zap.Int("degenerate_windows", degenerate),
		zap.Duration("duration", time.Since(started)),
	)

	return Result{ModelID: id, Record: record, Backtests: backtests}, nil
}

func (t *Trainer) discard(path string) {
	if err := t.artifacts.Remove(context.Background(), path); err != nil {
		t.logger.Warn("Failed to remove artifact", zap.String("path", path), zap.Error(err))
	}
}

func (t *Trainer) runWindow(ctx context.Context, plan Plan, snapshot *features.Snapshot, indexes []int, index int, w Window) (windowOutcome, error) {
	if t.callbacks.OnWindowStart != nil {
		t.callbacks.OnWindowStart(index, w)
	}

	x, y := trainingRows(snapshot.Rows, plan, indexes, w)
	if len(x) < t.minTrainRows {
		return windowOutcome{}, errors.Newf(errors.ErrCodeInsufficientTrainData,
			"window %d has %d training rows, need %d", index, len(x), t.minTrainRows)
	}

	if err := ctx.Err(); err != nil {
		return windowOutcome{}, errors.Wrap(errors.ErrCodeCanceled, "training canceled", err)
	}

	clf, err := fit(plan, x, y)
	if err != nil {
		return windowOutcome{}, errors.Wrapf(errors.ErrCodeTrainingFailed, err, "window %d", index)
	}

	if err := ctx.Err(); err != nil {
		return windowOutcome{}, errors.Wrap(errors.ErrCodeCanceled, "training canceled", err)
	}

	floor, err := floatParam(plan.Hyperparameters, HyperparameterMinConfidence, 0)
	if err != nil {
		return windowOutcome{}, err
	}

	preds := make([]evaluate.Prediction, 0)

	for _, row := range snapshot.Rows {
		if !inUniverse(plan, row) || !w.Validation.Contains(row.Label.Time) {
			continue
		}

		p := clf.PredictProba(project(row, indexes))
		preds = append(preds, evaluate.Prediction{
			Label:     row.Label,
			Score:     model.Score(p),
			Direction: model.Decide(p, floor),
		})
	}

	result := t.evaluator.Evaluate(preds, plan.Target)
	result.ID = uuid.NewString()
	result.Window = index
	result.Train = w.Train
	result.Validation = w.Validation
	result.Universe = plan.Universe
	result.CreatedAt = time.Now().UTC()

	t.logger.Debug("Window evaluated",
		zap.Int("window", index),
		zap.Int("train_rows", len(x)),
		zap.Int("validation_rows", len(preds)),
		zap.Bool("degenerate", result.Degenerate),
	)

	if t.callbacks.OnWindowDone != nil {
		t.callbacks.OnWindowDone(index, result)
	}

	return windowOutcome{classifier: clf, result: result}, nil
}

func fit(plan Plan, x [][]optional.Option[float64], y []types.Direction) (model.Classifier, error) {
	switch plan.Family {
	case types.ModelFamilyPrior:
		return model.FitPrior(plan.Features, y)
	case types.ModelFamilySoftmax:
		lr, err := floatParam(plan.Hyperparameters, HyperparameterLearningRate, 0.1)
		if err != nil {
			return nil, err
		}

		epochs, err := floatParam(plan.Hyperparameters, HyperparameterEpochs, 300)
		if err != nil {
			return nil, err
		}

		l2, err := floatParam(plan.Hyperparameters, HyperparameterL2, 0)
		if err != nil {
			return nil, err
		}

		return model.FitSoftmax(plan.Features, x, y, model.SoftmaxParams{LearningRate: lr, Epochs: int(epochs), L2: l2})
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFamily, "unsupported model family %q", plan.Family)
	}
}

// trainingRows selects rows inside the train range whose target label exists and whose
// forward window closes on or before the end of training.
func trainingRows(rows []types.MatrixRow, plan Plan, indexes []int, w Window) ([][]optional.Option[float64], []types.Direction) {
	trainEnd := types.Day(w.Train.To)
	x := make([][]optional.Option[float64], 0)
	y := make([]types.Direction, 0)

	for _, row := range rows {
		if !inUniverse(plan, row) || !w.Train.Contains(row.Label.Time) {
			continue
		}

		class := row.Label.Class(plan.Target)
		if class.IsNone() || plan.Target.After(row.Label.Time).After(trainEnd) {
			continue
		}

		x = append(x, project(row, indexes))
		y = append(y, class.Unwrap())
	}

	return x, y
}

func inUniverse(plan Plan, row types.MatrixRow) bool {
	if plan.Assets == nil {
		return true
	}

	_, ok := plan.Assets[row.Label.Asset]

	return ok
}

func project(row types.MatrixRow, indexes []int) []optional.Option[float64] {
	out := make([]optional.Option[float64], len(indexes))
	for i, idx := range indexes {
		out[i] = row.Values[idx]
	}

	return out
}

func featureIndexes(snapshot *features.Snapshot, names []string) ([]int, error) {
	indexes := make([]int, len(names))

	for i, name := range names {
		idx := snapshot.ColumnIndex(name)
		if idx < 0 {
			return nil, errors.Newf(errors.ErrCodeUnknownFeature, "feature %q is not in matrix version %d", name, snapshot.Version)
		}

		indexes[i] = idx
	}

	return indexes, nil
}

// aggregate averages each metric over the non-degenerate windows where it is defined.
func aggregate(results []types.BacktestResult) types.ValidationMetrics {
	pick := func(get func(types.BacktestResult) optional.Option[float64]) optional.Option[float64] {
		var (
			sum float64
			n   int
		)

		for _, r := range results {
			if r.Degenerate {
				continue
			}

			if v := get(r); v.IsSome() {
				sum += v.Unwrap()
				n++
			}
		}

		if n == 0 {
			return optional.None[float64]()
		}

		return optional.Some(sum / float64(n))
	}

	return types.ValidationMetrics{
		IC1d:     pick(func(r types.BacktestResult) optional.Option[float64] { return r.IC1d }),
		IC3d:     pick(func(r types.BacktestResult) optional.Option[float64] { return r.IC3d }),
		IC7d:     pick(func(r types.BacktestResult) optional.Option[float64] { return r.IC7d }),
		Accuracy: pick(func(r types.BacktestResult) optional.Option[float64] { return r.Classification.Accuracy }),
		Sharpe:   pick(func(r types.BacktestResult) optional.Option[float64] { return r.Portfolio.Sharpe }),
		WinRate:  pick(func(r types.BacktestResult) optional.Option[float64] { return r.Portfolio.WinRate }),
	}
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}

	return out
}
