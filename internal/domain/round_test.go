package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestRoundInsertStopAt(t *testing.T) {
	round := &Round{RoundID: uuid.New(), Status: RoundStatusPlanned}
	a := &Stop{StopID: uuid.New()}
	b := &Stop{StopID: uuid.New()}
	round.Stops = []*Stop{a, b}
	round.ReindexStops()

	inserted := &Stop{StopID: uuid.New()}
	round.InsertStopAt(inserted, 1)

	if len(round.Stops) != 3 {
		t.Fatalf("stop count = %d, want 3", len(round.Stops))
	}
	if round.Stops[1] != inserted {
		t.Fatal("inserted stop is not at position 1")
	}
	for i, s := range round.Stops {
		if s.OrderIndex != i {
			t.Errorf("stop %d OrderIndex = %d, want %d", i, s.OrderIndex, i)
		}
		if s.RoundID != round.RoundID {
			t.Errorf("stop %d RoundID not set to the round", i)
		}
	}
}

func TestRoundCloneIsIndependent(t *testing.T) {
	loc := Coordinates{Lat: 48.87, Lon: 2.33}
	round := &Round{
		RoundID: uuid.New(),
		Status:  RoundStatusDraft,
		Stops: []*Stop{
			{StopID: uuid.New(), Location: &loc},
			{StopID: uuid.New()},
		},
	}
	round.ReindexStops()

	clone := round.Clone()
	clone.Stops[0].Location.Lat = 0
	clone.Stops = clone.Stops[:1]

	if round.Stops[0].Location.Lat != 48.87 {
		t.Fatal("mutating the clone's stop leaked into the original")
	}
	if len(round.Stops) != 2 {
		t.Fatal("truncating the clone's stop slice leaked into the original")
	}
}

func TestRoundStatusEditable(t *testing.T) {
	editable := map[RoundStatus]bool{
		RoundStatusDraft:      true,
		RoundStatusPlanned:    true,
		RoundStatusInProgress: false,
		RoundStatusCompleted:  false,
		RoundStatusCanceled:   false,
	}
	for status, want := range editable {
		if got := status.Editable(); got != want {
			t.Errorf("%s editable = %v, want %v", status, got, want)
		}
	}
}
