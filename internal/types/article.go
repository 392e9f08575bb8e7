package types

import "time"

// Article is one news article after sentiment scoring.
type Article struct {
	ID        string
	Published time.Time
	Source    string
	Title     string
	// Categories is the pipe-delimited category list of the upstream feed, e.g. "BTC|MARKET".
	Categories string
	Tags       string
	// Score is the composite sentiment in [-1, 1].
	Score      float64
	Confidence float64
	// EventType is filled by the classifier when the upstream row has none.
	EventType string
}
