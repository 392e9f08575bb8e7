package trainer

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Window is one walk-forward split. Both ranges are inclusive days.
type Window struct {
	Train      types.DateRange
	Validation types.DateRange
}

// Plan describes one training run.
type Plan struct {
	Name     string
	Target   types.Horizon
	Features []string
	Universe string
	// Assets restricts the universe; nil means every asset in the matrix.
	Assets          map[string]struct{}
	Family          types.ModelFamily
	Hyperparameters map[string]string
	Windows         []Window
}

// Validate checks the plan before any work starts.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New(errors.ErrCodeMissingParameter, "plan name is required")
	}

	if p.Target.Index() < 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported target horizon %d", int(p.Target))
	}

	if len(p.Features) == 0 {
		return errors.New(errors.ErrCodeMissingParameter, "plan has no features")
	}

	switch p.Family {
	case types.ModelFamilySoftmax, types.ModelFamilyPrior:
	default:
		return errors.Newf(errors.ErrCodeUnsupportedFamily, "unsupported model family %q", p.Family)
	}

	return ValidateWindows(p.Windows)
}

// ValidateWindows requires every train range to end strictly before its validation range
// starts, and validation ranges to be increasing and non-overlapping.
func ValidateWindows(windows []Window) error {
	if len(windows) == 0 {
		return errors.New(errors.ErrCodeInvalidWindow, "at least one window is required")
	}

	for i, w := range windows {
		if w.Train.To.Before(w.Train.From) || w.Validation.To.Before(w.Validation.From) {
			return errors.Newf(errors.ErrCodeInvalidWindow, "window %d has an inverted range", i)
		}

		if !types.Day(w.Train.To).Before(types.Day(w.Validation.From)) {
			return errors.Newf(errors.ErrCodeInvalidWindow, "window %d trains on or after its validation start", i)
		}

		if i > 0 && !types.Day(windows[i-1].Validation.To).Before(types.Day(w.Validation.From)) {
			return errors.Newf(errors.ErrCodeInvalidWindow, "window %d validation overlaps window %d", i, i-1)
		}
	}

	return nil
}

// GenerateWindows lays out cfg.Windows consecutive validation ranges ending on end,
// each preceded by an embargo gap and a training range of cfg.TrainDays.
func GenerateWindows(cfg config.WalkForwardConfig, end time.Time) []Window {
	end = types.Day(end)
	windows := make([]Window, cfg.Windows)

	for k := range windows {
		valTo := end.AddDate(0, 0, -(cfg.Windows-1-k)*cfg.ValidationDays)
		valFrom := valTo.AddDate(0, 0, -(cfg.ValidationDays - 1))
		trainTo := valFrom.AddDate(0, 0, -1-cfg.EmbargoDays)
		trainFrom := trainTo.AddDate(0, 0, -(cfg.TrainDays - 1))

		windows[k] = Window{
			Train:      types.DateRange{From: trainFrom, To: trainTo},
			Validation: types.DateRange{From: valFrom, To: valTo},
		}
	}

	return windows
}

// PlanFromConfig builds a plan from the training section. Explicit windows win over the
// rolling layout, which ends at the last matrix day.
func PlanFromConfig(cfg *config.Config, columns []string, lastDay time.Time) (Plan, error) {
	target, err := cfg.Training.TargetHorizon()
	if err != nil {
		return Plan{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid training target", err)
	}

	features := cfg.Training.Features
	if len(features) == 0 {
		features = columns
	}

	var windows []Window
	for _, w := range cfg.Training.Windows {
		windows = append(windows, Window{
			Train:      types.DateRange{From: types.Day(w.TrainFrom), To: types.Day(w.TrainTo)},
			Validation: types.DateRange{From: types.Day(w.ValidationFrom), To: types.Day(w.ValidationTo)},
		})
	}

	if len(windows) == 0 {
		windows = GenerateWindows(cfg.Training.WalkForward, lastDay)
	}

	hyperparameters := map[string]string{
		HyperparameterLearningRate:  strconv.FormatFloat(cfg.Training.LearningRate, 'g', -1, 64),
		HyperparameterEpochs:        strconv.Itoa(cfg.Training.Epochs),
		HyperparameterL2:            strconv.FormatFloat(cfg.Training.L2, 'g', -1, 64),
		HyperparameterMinConfidence: strconv.FormatFloat(cfg.Inference.MinConfidence, 'g', -1, 64),
	}
	hyperparameters[types.HyperparameterLabelFingerprint] = cfg.Labels.Fingerprint()

	return Plan{
		Name:            cfg.Training.Name,
		Target:          target,
		Features:        append([]string(nil), features...),
		Universe:        cfg.Training.Universe,
		Assets:          cfg.Universe(cfg.Training.Universe),
		Family:          types.ModelFamily(cfg.Training.Family),
		Hyperparameters: hyperparameters,
		Windows:         windows,
	}, nil
}

// Hyperparameter keys written by PlanFromConfig.
const (
	HyperparameterLearningRate  = "learning_rate"
	HyperparameterEpochs        = "epochs"
	HyperparameterL2            = "l2"
	HyperparameterMinConfidence = "min_confidence"
)

func floatParam(params map[string]string, key string, fallback float64) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "hyperparameter %s", key)
	}

	return v, nil
}
