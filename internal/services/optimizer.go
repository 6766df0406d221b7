package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

var (
	// ErrRoundNotEditable is returned for rounds past the planning stage.
	ErrRoundNotEditable = errors.New("round not editable")
	// ErrNotEnoughPoints is returned when fewer than two stops are geocoded.
	ErrNotEnoughPoints = errors.New("not enough geocoded stops to optimize")
	// ErrOptimizationUnavailable is returned when neither the solver nor the
	// matrix fallback can be reached.
	ErrOptimizationUnavailable = errors.New("optimization unavailable")
)

// OptimizeConfig tunes the optimizer and its fallback heuristic.
type OptimizeConfig struct {
	Stats StatsConfig
	// MaxTwoOptPasses bounds the 2-opt improvement loop so the fallback
	// always terminates.
	MaxTwoOptPasses int
}

// OptimizeResult reports a candidate order and its savings versus the
// round's current order. DistanceOnly marks results from the fallback
// heuristic, which ignores time windows.
type OptimizeResult struct {
	Order               []uuid.UUID
	DistanceSavedMeters int
	TimeSavedSeconds    int
	Stats               *RoundStats
	DistanceOnly        bool
}

// OptimizeRound produces a stop order that reduces (or preserves) total
// travel cost. The primary path submits depot + stops to a time-window
// solver; when the solver is disabled or unreachable a distance-only
// nearest-neighbor + 2-opt heuristic runs on the gateway's matrix.
//
// The round is never mutated. When the candidate order is not strictly
// better, the current order is returned with zero savings, which also makes
// repeated optimization idempotent.
func OptimizeRound(
	ctx context.Context,
	round *domain.Round,
	gw ports.RoutingGateway,
	cfg OptimizeConfig,
	logger *zap.Logger,
) (*OptimizeResult, error) {
	if round == nil {
		return nil, errors.New("optimize round: round must be non-nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !round.Status.Editable() {
		return nil, fmt.Errorf("optimize round %s: %w", round.RoundID, ErrRoundNotEditable)
	}

	geocoded := round.GeocodedStops()
	if len(geocoded) < 2 {
		return nil, fmt.Errorf("optimize round %s: %w", round.RoundID, ErrNotEnoughPoints)
	}

	prevStats, err := ComputeRoundStats(ctx, round, gw, cfg.Stats, logger)
	if err != nil {
		return nil, fmt.Errorf("optimize round: stats for current order: %w", err)
	}

	ordered, distanceOnly, err := candidateGeocodedOrder(ctx, round, geocoded, gw, cfg, logger)
	if err != nil {
		return nil, err
	}

	candidate := reorderGeocoded(round, ordered)
	candStats, err := ComputeRoundStats(ctx, candidate, gw, cfg.Stats, logger)
	if err != nil {
		return nil, fmt.Errorf("optimize round: stats for candidate order: %w", err)
	}

	if !candidateWins(round, candidate, prevStats, candStats) {
		return &OptimizeResult{
			Order:        round.StopOrder(),
			Stats:        prevStats,
			DistanceOnly: distanceOnly,
		}, nil
	}

	return &OptimizeResult{
		Order:               candidate.StopOrder(),
		DistanceSavedMeters: prevStats.TotalDistanceMeters - candStats.TotalDistanceMeters,
		TimeSavedSeconds:    prevStats.TotalDurationSeconds - candStats.TotalDurationSeconds,
		Stats:               candStats,
		DistanceOnly:        distanceOnly,
	}, nil
}

// ApplyOrder rearranges the round's stops to the given order and reindexes.
// The order must be a permutation of the round's current stop set.
func ApplyOrder(round *domain.Round, order []uuid.UUID) error {
	if len(order) != len(round.Stops) {
		return errors.New("apply order: order length does not match stop count")
	}
	byID := make(map[uuid.UUID]*domain.Stop, len(round.Stops))
	for _, s := range round.Stops {
		byID[s.StopID] = s
	}
	next := make([]*domain.Stop, 0, len(order))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			return fmt.Errorf("apply order: stop %s is not part of the round", id)
		}
		delete(byID, id)
		next = append(next, s)
	}
	round.Stops = next
	round.ReindexStops()
	return nil
}

// candidateGeocodedOrder returns the geocoded stops in a proposed visiting
// order, preferring the time-window solver and falling back to the
// distance-only heuristic.
func candidateGeocodedOrder(
	ctx context.Context,
	round *domain.Round,
	geocoded []*domain.Stop,
	gw ports.RoutingGateway,
	cfg OptimizeConfig,
	logger *zap.Logger,
) ([]*domain.Stop, bool, error) {
	jobs := make([]ports.Job, len(geocoded))
	byID := make(map[string]*domain.Stop, len(geocoded))
	for i, s := range geocoded {
		jobs[i] = ports.Job{
			ID:             s.StopID.String(),
			Location:       *s.Location,
			ServiceSeconds: int(s.ServiceDuration / time.Second),
			Window:         s.Window,
		}
		byID[s.StopID.String()] = s
	}

	res, err := gw.Solve(ctx, round.Depot, jobs)
	if err == nil {
		ordered := make([]*domain.Stop, 0, len(geocoded))
		taken := make(map[string]bool, len(geocoded))
		for _, id := range res.Order {
			if s, ok := byID[id]; ok && !taken[id] {
				ordered = append(ordered, s)
				taken[id] = true
			}
		}
		// Jobs the solver left out keep their current relative order.
		for _, s := range geocoded {
			if !taken[s.StopID.String()] {
				ordered = append(ordered, s)
			}
		}
		return ordered, false, nil
	}

	logger.Info("solver unavailable, optimizing with distance only",
		zap.String("round_id", round.RoundID.String()),
		zap.Error(err),
	)

	points := make([]domain.Coordinates, 0, 1+len(geocoded))
	points = append(points, round.Depot)
	for _, s := range geocoded {
		points = append(points, *s.Location)
	}

	matrix, err := gw.Matrix(ctx, points)
	if err != nil {
		return nil, false, fmt.Errorf("optimize round %s: %w: %v", round.RoundID, ErrOptimizationUnavailable, err)
	}

	tour := nearestNeighborTour(matrix)
	tour = twoOptImprove(matrix, tour, cfg.MaxTwoOptPasses)

	ordered := make([]*domain.Stop, 0, len(geocoded))
	for _, idx := range tour {
		ordered = append(ordered, geocoded[idx-1])
	}
	return ordered, true, nil
}

// nearestNeighborTour builds a tour over matrix indices 1..n starting from
// the depot at index 0. Ties break toward the lower index so the result is
// deterministic.
func nearestNeighborTour(matrix [][]ports.Leg) []int {
	n := len(matrix) - 1
	visited := make([]bool, len(matrix))
	tour := make([]int, 0, n)

	current := 0
	for len(tour) < n {
		best := -1
		for i := 1; i <= n; i++ {
			if visited[i] {
				continue
			}
			if best == -1 || matrix[current][i].DistanceMeters < matrix[current][best].DistanceMeters {
				best = i
			}
		}
		visited[best] = true
		tour = append(tour, best)
		current = best
	}
	return tour
}

// twoOptImprove applies 2-opt segment reversals while they reduce total
// distance, up to maxPasses full sweeps.
func twoOptImprove(matrix [][]ports.Leg, tour []int, maxPasses int) []int {
	if maxPasses <= 0 {
		maxPasses = 1
	}
	d := func(a, b int) int { return matrix[a][b].DistanceMeters }

	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for i := 0; i < len(tour)-1; i++ {
			prev := 0
			if i > 0 {
				prev = tour[i-1]
			}
			for j := i + 1; j < len(tour); j++ {
				// Reversing tour[i..j] replaces legs (prev,tour[i]) and
				// (tour[j],after) with (prev,tour[j]) and (tour[i],after).
				after := -1
				if j+1 < len(tour) {
					after = tour[j+1]
				}
				before := d(prev, tour[i])
				replacement := d(prev, tour[j])
				if after >= 0 {
					before += d(tour[j], after)
					replacement += d(tour[i], after)
				}
				if replacement < before {
					reverse(tour, i, j)
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return tour
}

func reverse(tour []int, i, j int) {
	for i < j {
		tour[i], tour[j] = tour[j], tour[i]
		i++
		j--
	}
}

// reorderGeocoded returns a clone of the round with the geocoded stops
// permuted into the given order. Stops without coordinates keep their
// original sequence positions, so the stop set is unchanged.
func reorderGeocoded(round *domain.Round, ordered []*domain.Stop) *domain.Round {
	clone := round.Clone()
	cloneByID := make(map[uuid.UUID]*domain.Stop, len(clone.Stops))
	for _, s := range clone.Stops {
		cloneByID[s.StopID] = s
	}

	next := 0
	for i, s := range clone.Stops {
		if !s.Geocoded() {
			continue
		}
		clone.Stops[i] = cloneByID[ordered[next].StopID]
		next++
	}
	clone.ReindexStops()
	return clone
}

// candidateWins decides whether to adopt the candidate order: strictly
// shorter wins; equal distance falls through to the smaller maximum
// time-window lateness, then to fewer position changes (stability).
func candidateWins(current, candidate *domain.Round, currentStats, candStats *RoundStats) bool {
	if candStats.TotalDistanceMeters != currentStats.TotalDistanceMeters {
		return candStats.TotalDistanceMeters < currentStats.TotalDistanceMeters
	}

	candLate := maxLateness(candidate, candStats)
	curLate := maxLateness(current, currentStats)
	if candLate != curLate {
		return candLate < curLate
	}

	// Stability: the current order needs zero position changes, so an
	// otherwise-equal candidate never displaces it.
	return false
}

// maxLateness returns the worst single-stop lateness relative to its time
// window, derived from the already-computed ETAs.
func maxLateness(round *domain.Round, stats *RoundStats) time.Duration {
	var worst time.Duration
	for _, s := range round.Stops {
		if s.Window == nil {
			continue
		}
		eta, ok := stats.ETAs[s.StopID]
		if !ok {
			continue
		}
		if late := s.Window.LatenessAt(eta); late > worst {
			worst = late
		}
	}
	return worst
}
