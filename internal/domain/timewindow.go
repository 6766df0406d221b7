package domain

import (
	"errors"
	"time"
)

// TimeWindow is the interval during which a stop may be serviced.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return errors.New("time window: start and end must be set")
	}
	if !w.Start.Before(w.End) {
		return errors.New("time window: start must be before end")
	}
	return nil
}

// OverlapsPadded reports whether the window overlaps [t-pad, t+pad].
func (w TimeWindow) OverlapsPadded(t time.Time, pad time.Duration) bool {
	return !w.End.Before(t.Add(-pad)) && !w.Start.After(t.Add(pad))
}

// LatenessAt returns how far past the window end the given arrival is,
// or zero when the arrival is on time.
func (w TimeWindow) LatenessAt(arrival time.Time) time.Duration {
	if arrival.After(w.End) {
		return arrival.Sub(w.End)
	}
	return 0
}
