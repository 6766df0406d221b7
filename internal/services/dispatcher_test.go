package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
)

func dispatchCfg() DispatchConfig {
	return DispatchConfig{
		Stats:                    StatsConfig{FallbackSpeedKmh: 36},
		WindowTolerance:          30 * time.Minute,
		MaxRoundDuration:         10 * time.Hour,
		MaxInsertionDetourMeters: 25_000,
	}
}

func pendingAt(name string, lat float64, window *domain.TimeWindow) *domain.PendingStop {
	return &domain.PendingStop{
		StopID:          uuid.New(),
		Name:            name,
		Kind:            domain.StopKindDelivery,
		Location:        &domain.Coordinates{Lat: lat},
		Window:          window,
		ServiceDuration: 5 * time.Minute,
	}
}

func windowUTC(fromHour, toHour int) *domain.TimeWindow {
	return &domain.TimeWindow{
		Start: time.Date(2026, 1, 5, fromHour, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, toHour, 0, 0, 0, time.UTC),
	}
}

func TestDispatchAssignsToCheapestRound(t *testing.T) {
	near := testRound(latStop(1, 10*time.Minute))
	far := testRound(&domain.Stop{
		StopID:          uuid.New(),
		Kind:            domain.StopKindDelivery,
		Location:        &domain.Coordinates{Lon: 5},
		ServiceDuration: 10 * time.Minute,
	})

	gw, _ := newGridGateway(nil)
	stop := pendingAt("p", 1.1, windowUTC(8, 12))

	res, err := DispatchPendingStops(context.Background(),
		[]*domain.PendingStop{stop}, []*domain.Round{near, far}, gw, dispatchCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Failed) != 0 {
		t.Fatalf("failed = %v, want none", res.Failed)
	}
	if len(res.Dispatched) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(res.Dispatched))
	}

	got := res.Dispatched[0]
	if got.RoundID != near.RoundID {
		t.Fatalf("assigned round = %s, want the nearer round %s", got.RoundID, near.RoundID)
	}
	if got.Position != 1 {
		t.Fatalf("position = %d, want 1 (after the existing stop)", got.Position)
	}
	if got.Reason != ReasonClosestRound {
		t.Fatalf("reason = %q, want %q", got.Reason, ReasonClosestRound)
	}

	if len(res.Updated) != 1 || res.Updated[0].RoundID != near.RoundID {
		t.Fatal("only the receiving round should be reported as updated")
	}
	updated := res.Updated[0]
	if len(updated.Stops) != 2 || updated.Stops[1].StopID != stop.StopID {
		t.Fatal("updated round does not contain the dispatched stop at position 1")
	}

	stats := res.Stats[near.RoundID]
	if stats == nil {
		t.Fatal("stats missing for the updated round")
	}
	if stats.TotalDistanceMeters != 1100 {
		t.Fatalf("updated distance = %d, want 1100", stats.TotalDistanceMeters)
	}
	if stats.TotalDurationSeconds != 1010 {
		t.Fatalf("updated duration = %d, want 1010", stats.TotalDurationSeconds)
	}

	// Inputs stay untouched; callers persist the returned clones.
	if len(near.Stops) != 1 {
		t.Fatal("input round was mutated")
	}
}

func TestDispatchReportsWindowConflict(t *testing.T) {
	round := testRound(latStop(1, 10*time.Minute))
	gw, _ := newGridGateway(nil)

	// Arrival projects to shortly after 08:00; an evening window cannot be
	// met even with the 30 minute tolerance.
	stop := pendingAt("evening", 1.1, windowUTC(20, 21))

	res, err := DispatchPendingStops(context.Background(),
		[]*domain.PendingStop{stop}, []*domain.Round{round}, gw, dispatchCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Dispatched) != 0 {
		t.Fatalf("dispatched = %d, want 0", len(res.Dispatched))
	}
	if len(res.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(res.Failed))
	}
	if res.Failed[0].Reason != ReasonOutsideHours {
		t.Fatalf("reason = %q, want %q", res.Failed[0].Reason, ReasonOutsideHours)
	}
	if len(res.Updated) != 0 {
		t.Fatal("no round should be reported as updated")
	}
	if len(round.Stops) != 1 {
		t.Fatal("input round was mutated")
	}
}

func TestDispatchSkipsNonEditableRounds(t *testing.T) {
	round := testRound(latStop(1, 0))
	round.Status = domain.RoundStatusCompleted

	gw, _ := newGridGateway(nil)
	stop := pendingAt("p", 1.1, windowUTC(8, 12))

	res, err := DispatchPendingStops(context.Background(),
		[]*domain.PendingStop{stop}, []*domain.Round{round}, gw, dispatchCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Failed) != 1 || res.Failed[0].Reason != ReasonNoRound {
		t.Fatalf("failed = %v, want one failure with %q", res.Failed, ReasonNoRound)
	}
}

func TestDispatchRespectsDetourLimit(t *testing.T) {
	round := testRound(latStop(1, 0))
	gw, _ := newGridGateway(nil)

	cfg := dispatchCfg()
	cfg.MaxInsertionDetourMeters = 50

	stop := pendingAt("p", 1.1, windowUTC(8, 12))

	res, err := DispatchPendingStops(context.Background(),
		[]*domain.PendingStop{stop}, []*domain.Round{round}, gw, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Failed) != 1 || res.Failed[0].Reason != ReasonTooFar {
		t.Fatalf("failed = %v, want one failure with %q", res.Failed, ReasonTooFar)
	}
}

func TestDispatchProcessesWindowStartAscending(t *testing.T) {
	round := testRound()
	gw, _ := newGridGateway(nil)

	later := pendingAt("later", 1, windowUTC(9, 18))
	windowless := pendingAt("windowless", 3, nil)
	earlier := pendingAt("earlier", 2, windowUTC(8, 18))

	// A generous tolerance keeps every stop feasible; only the processing
	// order is under test.
	cfg := dispatchCfg()
	cfg.WindowTolerance = 2 * time.Hour

	res, err := DispatchPendingStops(context.Background(),
		[]*domain.PendingStop{later, windowless, earlier},
		[]*domain.Round{round}, gw, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Dispatched) != 3 {
		t.Fatalf("dispatched = %d, want 3", len(res.Dispatched))
	}

	names := make([]string, 0, 3)
	for _, a := range res.Dispatched {
		names = append(names, a.Stop.Name)
	}
	want := []string{"earlier", "later", "windowless"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", names, want)
		}
	}
}
