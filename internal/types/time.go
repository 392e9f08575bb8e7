package types

import (
	"fmt"
	"time"
)

// Day truncates t to UTC midnight. All decision timestamps are days.
func Day(t time.Time) time.Time {
	u := t.UTC()

	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Horizon is a forward-looking window measured in days.
type Horizon int

const (
	Horizon1d  Horizon = 1
	Horizon3d  Horizon = 3
	Horizon7d  Horizon = 7
	Horizon14d Horizon = 14
)

// HorizonCount is the number of label horizons carried on every record.
const HorizonCount = 4

// Horizons lists the label horizons in ascending order.
var Horizons = [HorizonCount]Horizon{Horizon1d, Horizon3d, Horizon7d, Horizon14d}

// Index returns the position of h in Horizons, or -1 if h is not a label horizon.
func (h Horizon) Index() int {
	for i, candidate := range Horizons {
		if candidate == h {
			return i
		}
	}

	return -1
}

// Days returns the horizon as a duration-free day count.
func (h Horizon) Days() int {
	return int(h)
}

// After returns the day that is h days after t.
func (h Horizon) After(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, int(h))
}

func (h Horizon) String() string {
	return fmt.Sprintf("%dd", int(h))
}

// ParseHorizon accepts "3d" or "3".
func ParseHorizon(s string) (Horizon, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%dd", &n); err != nil {
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid horizon %q", s)
		}
	}

	h := Horizon(n)
	if h.Index() < 0 {
		return 0, fmt.Errorf("unsupported horizon %q", s)
	}

	return h, nil
}

// Direction is the 3-class label and signal direction.
type Direction int8

const (
	DirectionSell Direction = -1
	DirectionHold Direction = 0
	DirectionBuy  Direction = 1
)

// ClassCount is the number of output classes.
const ClassCount = 3

// ClassIndex maps a direction to its column in probability and weight matrices.
// Order is SELL, HOLD, BUY.
func (d Direction) ClassIndex() int {
	return int(d) + 1
}

// DirectionFromClassIndex is the inverse of ClassIndex.
func DirectionFromClassIndex(i int) Direction {
	return Direction(i - 1)
}

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	default:
		return "HOLD"
	}
}
