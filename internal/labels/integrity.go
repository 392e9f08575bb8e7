package labels

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Verify checks that every populated forward return was computed from a close strictly
// after the decision day that exists in bars. It is run before labels are persisted.
func Verify(labels []types.Label, bars []types.PriceBar) error {
	closes := make(map[types.AssetDay]float64, len(bars))
	for _, bar := range bars {
		closes[types.AssetDay{Asset: bar.Asset, Day: types.Day(bar.Time)}] = bar.Close
	}

	seen := make(map[types.AssetDay]struct{}, len(labels))

	for _, label := range labels {
		key := label.Key()
		if _, dup := seen[key]; dup {
			return errors.Newf(errors.ErrCodeDuplicateKey, "duplicate label for %s on %s", key.Asset, key.Day.Format(time.DateOnly))
		}

		seen[key] = struct{}{}

		for _, h := range types.Horizons {
			ret := label.ForwardReturn(h)
			if ret.IsNone() {
				continue
			}

			target := h.After(label.Time)
			if !target.After(key.Day) {
				return errors.Newf(errors.ErrCodeLookahead, "label %s/%s horizon %s does not look forward", key.Asset, key.Day.Format(time.DateOnly), h)
			}

			future, ok := closes[types.AssetDay{Asset: key.Asset, Day: target}]
			if !ok {
				return errors.Newf(errors.ErrCodeLookahead, "label %s/%s horizon %s has no close on %s", key.Asset, key.Day.Format(time.DateOnly), h, target.Format(time.DateOnly))
			}

			expected := (future - label.Close) / label.Close
			if math.Abs(expected-ret.Unwrap()) > 1e-12 {
				return errors.Newf(errors.ErrCodeDataIntegrity, "label %s/%s horizon %s return %.10f differs from history %.10f", key.Asset, key.Day.Format(time.DateOnly), h, ret.Unwrap(), expected)
			}
		}
	}

	return nil
}

// Reconcile decides which freshly built labels should be written given the stored ones.
// A stored label whose horizons have all elapsed is immutable: an identical recomputation
// is skipped and a different one is an integrity error. Incomplete stored labels are
// replaced by the fresh value.
func Reconcile(existing, fresh []types.Label) ([]types.Label, error) {
	stored := make(map[types.AssetDay]types.Label, len(existing))
	for _, label := range existing {
		stored[label.Key()] = label
	}

	out := make([]types.Label, 0, len(fresh))

	for _, label := range fresh {
		old, ok := stored[label.Key()]
		if !ok || !old.Complete() {
			out = append(out, label)

			continue
		}

		if !Equal(old, label) {
			return nil, errors.Newf(errors.ErrCodeImmutableLabel, "completed label for %s on %s would change", label.Asset, label.Time.Format(time.DateOnly))
		}
	}

	return out, nil
}

// Equal compares two labels value by value.
func Equal(a, b types.Label) bool {
	if a.Asset != b.Asset || !a.Time.Equal(b.Time) || a.Close != b.Close {
		return false
	}

	for i := range a.ForwardReturns {
		if !sameFloat(a.ForwardReturns[i].IsSome(), b.ForwardReturns[i].IsSome(), a.ForwardReturns[i].Unwrap(), b.ForwardReturns[i].Unwrap()) {
			return false
		}

		if a.Classes[i].IsSome() != b.Classes[i].IsSome() || a.Classes[i].Unwrap() != b.Classes[i].Unwrap() {
			return false
		}
	}

	return sameFloat(a.Volatility7d.IsSome(), b.Volatility7d.IsSome(), a.Volatility7d.Unwrap(), b.Volatility7d.Unwrap()) &&
		sameFloat(a.Volatility30d.IsSome(), b.Volatility30d.IsSome(), a.Volatility30d.Unwrap(), b.Volatility30d.Unwrap())
}

func sameFloat(aSome, bSome bool, a, b float64) bool {
	if aSome != bSome {
		return false
	}

	return !aSome || math.Abs(a-b) <= 1e-12
}
