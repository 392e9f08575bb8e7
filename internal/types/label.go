package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Label is the point-in-time forward-looking outcome for one asset on one day.
// Forward returns and classes are indexed by Horizon.Index(); a None entry means the
// forward close at exactly t+h is not in the history.
type Label struct {
	Asset          string
	Time           time.Time
	Close          float64
	ForwardReturns [HorizonCount]optional.Option[float64]
	Classes        [HorizonCount]optional.Option[Direction]
	Volatility7d   optional.Option[float64]
	Volatility30d  optional.Option[float64]
}

// Key returns the (asset, day) key of the label.
func (l Label) Key() AssetDay {
	return AssetDay{Asset: l.Asset, Day: Day(l.Time)}
}

// ForwardReturn returns the forward return for h.
func (l Label) ForwardReturn(h Horizon) optional.Option[float64] {
	i := h.Index()
	if i < 0 {
		return optional.None[float64]()
	}

	return l.ForwardReturns[i]
}

// Class returns the 3-class label for h.
func (l Label) Class(h Horizon) optional.Option[Direction] {
	i := h.Index()
	if i < 0 {
		return optional.None[Direction]()
	}

	return l.Classes[i]
}

// Complete reports whether every horizon has elapsed. Complete labels are immutable.
func (l Label) Complete() bool {
	for i := range l.ForwardReturns {
		if l.ForwardReturns[i].IsNone() {
			return false
		}
	}

	return true
}
