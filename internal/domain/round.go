package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusDraft      RoundStatus = "draft"
	RoundStatusPlanned    RoundStatus = "planned"
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusCompleted  RoundStatus = "completed"
	RoundStatusCanceled   RoundStatus = "canceled"
)

// Editable reports whether the round's stop set and order may still change.
func (s RoundStatus) Editable() bool {
	return s == RoundStatusDraft || s == RoundStatusPlanned
}

// Represents one driver's ordered set of stops for a day.
// The totals are derived values owned by the stats engine; they must be
// recomputed whenever the stop set or order changes and are never
// authoritative on their own.
type Round struct {
	RoundID  uuid.UUID
	Date     time.Time
	Depot    Coordinates
	DepartAt time.Time
	Status   RoundStatus

	// Stops are kept in ascending OrderIndex.
	Stops []*Stop

	TotalDistanceMeters  int
	TotalDurationSeconds int
	EstimatedEndAt       *time.Time
}

// ReindexStops rewrites order indices to the contiguous range 0..n-1,
// preserving the current slice order.
func (r *Round) ReindexStops() {
	for i, s := range r.Stops {
		s.OrderIndex = i
		s.RoundID = r.RoundID
	}
}

// GeocodedStops returns the stops that have coordinates, in sequence order.
func (r *Round) GeocodedStops() []*Stop {
	out := make([]*Stop, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.Geocoded() {
			out = append(out, s)
		}
	}
	return out
}

// StopOrder returns the current stop IDs in sequence order.
func (r *Round) StopOrder() []uuid.UUID {
	out := make([]uuid.UUID, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.StopID
	}
	return out
}

// InsertStopAt inserts a stop before position pos (pos == len appends) and
// reindexes the sequence.
func (r *Round) InsertStopAt(stop *Stop, pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(r.Stops) {
		pos = len(r.Stops)
	}
	r.Stops = append(r.Stops, nil)
	copy(r.Stops[pos+1:], r.Stops[pos:])
	r.Stops[pos] = stop
	r.ReindexStops()
}

// Clone returns a deep copy whose stops may be mutated without affecting
// the original. Candidate orders are always built on clones so a failed
// computation never leaves a round partially updated.
func (r *Round) Clone() *Round {
	out := *r
	if r.EstimatedEndAt != nil {
		t := *r.EstimatedEndAt
		out.EstimatedEndAt = &t
	}
	out.Stops = make([]*Stop, len(r.Stops))
	for i, s := range r.Stops {
		out.Stops[i] = s.Clone()
	}
	return &out
}
