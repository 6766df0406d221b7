package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/adapters/routing"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

func optimizeCfg() OptimizeConfig {
	return OptimizeConfig{
		Stats:           StatsConfig{FallbackSpeedKmh: 36},
		MaxTwoOptPasses: 8,
	}
}

func assertOrder(t *testing.T, got []uuid.UUID, want ...*domain.Stop) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("order length = %d, want %d", len(got), len(want))
	}
	for i, s := range want {
		if got[i] != s.StopID {
			t.Fatalf("order[%d] = %s, want %s", i, got[i], s.StopID)
		}
	}
}

func TestOptimizeRoundDistanceFallback(t *testing.T) {
	a := latStop(1, 0)
	b := latStop(2, 0)
	c := latStop(3, 0)
	round := testRound(b, a, c)

	// No solver configured: the gateway reports it unavailable and the
	// nearest-neighbor + 2-opt heuristic runs on the matrix.
	gw, provider := newGridGateway(nil)

	res, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.DistanceOnly {
		t.Fatal("fallback result must be marked distance-only")
	}
	if provider.MatrixCalls != 1 {
		t.Fatalf("matrix calls = %d, want 1", provider.MatrixCalls)
	}

	assertOrder(t, res.Order, a, b, c)
	if res.DistanceSavedMeters != 2000 {
		t.Fatalf("distance saved = %d, want 2000", res.DistanceSavedMeters)
	}
	if res.TimeSavedSeconds != 200 {
		t.Fatalf("time saved = %d, want 200", res.TimeSavedSeconds)
	}

	// Proposals never touch the round itself.
	assertOrder(t, round.StopOrder(), b, a, c)
}

func TestOptimizeRoundKeepsCurrentOrderWhenNotBetter(t *testing.T) {
	a := latStop(1, 0)
	b := latStop(2, 0)
	c := latStop(3, 0)
	round := testRound(a, b, c)

	gw, _ := newGridGateway(nil)

	res, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertOrder(t, res.Order, a, b, c)
	if res.DistanceSavedMeters != 0 || res.TimeSavedSeconds != 0 {
		t.Fatalf("savings = (%d, %d), want zero for an already-optimal order",
			res.DistanceSavedMeters, res.TimeSavedSeconds)
	}
}

func TestOptimizeRoundPrefersSolver(t *testing.T) {
	a := latStop(1, 0)
	b := latStop(2, 0)
	c := latStop(3, 0)
	round := testRound(b, a, c)

	solver := &routing.MockProvider{
		ProviderName: "solver",
		SolveFn: func(_ context.Context, _ domain.Coordinates, jobs []ports.Job) (ports.SolveResult, error) {
			if len(jobs) != 3 {
				t.Fatalf("jobs = %d, want 3", len(jobs))
			}
			return ports.SolveResult{
				Order: []string{a.StopID.String(), b.StopID.String(), c.StopID.String()},
			}, nil
		},
	}
	gw, provider := newGridGateway(solver)

	res, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.DistanceOnly {
		t.Fatal("solver result must not be marked distance-only")
	}
	if provider.MatrixCalls != 0 {
		t.Fatalf("matrix calls = %d, want 0 when the solver answers", provider.MatrixCalls)
	}
	assertOrder(t, res.Order, a, b, c)
	if res.DistanceSavedMeters != 2000 {
		t.Fatalf("distance saved = %d, want 2000", res.DistanceSavedMeters)
	}
}

func TestOptimizeRoundKeepsNonGeocodedPositions(t *testing.T) {
	a := latStop(1, 0)
	b := latStop(2, 0)
	c := latStop(3, 0)
	x := &domain.Stop{StopID: uuid.New(), Kind: domain.StopKindDelivery, ServiceDuration: 5 * time.Minute}
	round := testRound(b, x, a, c)

	gw, _ := newGridGateway(nil)

	res, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Geocoded stops are permuted among geocoded slots; the coordinate-less
	// stop keeps its sequence position.
	assertOrder(t, res.Order, a, x, b, c)
}

func TestOptimizeRoundRejectsNonEditable(t *testing.T) {
	round := testRound(latStop(1, 0), latStop(2, 0))
	round.Status = domain.RoundStatusInProgress

	gw, _ := newGridGateway(nil)

	_, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if !errors.Is(err, ErrRoundNotEditable) {
		t.Fatalf("error = %v, want ErrRoundNotEditable", err)
	}
}

func TestOptimizeRoundNeedsTwoGeocodedStops(t *testing.T) {
	x := &domain.Stop{StopID: uuid.New(), Kind: domain.StopKindDelivery}
	round := testRound(latStop(1, 0), x)

	gw, _ := newGridGateway(nil)

	_, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if !errors.Is(err, ErrNotEnoughPoints) {
		t.Fatalf("error = %v, want ErrNotEnoughPoints", err)
	}
}

func TestOptimizeRoundUnavailableWhenAllProvidersFail(t *testing.T) {
	provider := &routing.MockProvider{
		ProviderName: "down",
		RouteFn: func(context.Context, []domain.Coordinates) (ports.RouteResult, error) {
			return ports.RouteResult{}, errors.New("connection refused")
		},
		MatrixFn: func(context.Context, []domain.Coordinates) ([][]ports.Leg, error) {
			return nil, errors.New("connection refused")
		},
	}
	gw := routing.NewGateway(provider, nil, nil, routing.DefaultGatewayConfig(), zap.NewNop())

	round := testRound(latStop(1, 0), latStop(2, 0))

	_, err := OptimizeRound(context.Background(), round, gw, optimizeCfg(), zap.NewNop())
	if !errors.Is(err, ErrOptimizationUnavailable) {
		t.Fatalf("error = %v, want ErrOptimizationUnavailable", err)
	}
}

func TestApplyOrder(t *testing.T) {
	a := latStop(1, 0)
	b := latStop(2, 0)
	round := testRound(a, b)

	if err := ApplyOrder(round, []uuid.UUID{b.StopID, a.StopID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertOrder(t, round.StopOrder(), b, a)
	if round.Stops[0].OrderIndex != 0 || round.Stops[1].OrderIndex != 1 {
		t.Fatal("order indices were not rewritten")
	}

	if err := ApplyOrder(round, []uuid.UUID{uuid.New(), a.StopID}); err == nil {
		t.Fatal("expected an error for an order referencing a foreign stop")
	}
}
