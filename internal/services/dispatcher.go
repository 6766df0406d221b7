package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// Human-readable dispatch outcomes surfaced to the caller.
const (
	ReasonClosestRound  = "closest existing round"
	ReasonNoRound       = "no round available"
	ReasonOutsideHours  = "outside working hours"
	ReasonTooFar        = "too far from any round"
	ReasonDurationLimit = "would exceed round duration limit"
)

// DispatchConfig tunes feasibility limits for the allocator.
type DispatchConfig struct {
	Stats StatsConfig
	// WindowTolerance pads the projected arrival when matching a stop's
	// time window against a round's current schedule.
	WindowTolerance time.Duration
	// MaxRoundDuration caps a round's projected depot-to-end duration.
	MaxRoundDuration time.Duration
	// MaxInsertionDetourMeters rejects insertions whose marginal distance
	// exceeds this limit.
	MaxInsertionDetourMeters int
}

// Assignment records a pending stop committed to a round.
type Assignment struct {
	Stop     *domain.PendingStop
	RoundID  uuid.UUID
	Position int
	Reason   string
}

// Failure records a pending stop that could not be placed.
type Failure struct {
	Stop   *domain.PendingStop
	Reason string
}

// DispatchResult carries the committed assignments, the failures, the
// updated round clones (only rounds that received at least one stop) and
// their recomputed stats. The input rounds are never mutated.
type DispatchResult struct {
	Dispatched []Assignment
	Failed     []Failure
	Updated    []*domain.Round
	Stats      map[uuid.UUID]*RoundStats
}

// insertionPlan is the best position found for one (stop, round) pair.
type insertionPlan struct {
	round        *domain.Round
	position     int
	detourMeters int
	blockReason  string
}

// DispatchPendingStops assigns a batch of unscheduled stops across the
// candidate rounds of one day. Stops are processed in a deterministic order
// (time-window start ascending, windowless stops last, ties by input
// order); each commits greedily to the feasible round with the cheapest
// insertion cost, and later stops see the updated sequences. This is a
// deliberate greedy simplification of an NP-hard joint assignment.
//
// A stop with no feasible round is accumulated into Failed with a reason;
// it never aborts the rest of the batch.
func DispatchPendingStops(
	ctx context.Context,
	pending []*domain.PendingStop,
	rounds []*domain.Round,
	gw ports.RoutingGateway,
	cfg DispatchConfig,
	logger *zap.Logger,
) (*DispatchResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Work on clones so a failed batch leaves every round untouched and
	// untouched rounds are never reported as updated.
	candidates := make([]*domain.Round, 0, len(rounds))
	for _, r := range rounds {
		if r.Status.Editable() {
			candidates = append(candidates, r.Clone())
		}
	}

	ordered := orderPending(pending)

	result := &DispatchResult{Stats: make(map[uuid.UUID]*RoundStats)}
	statsCache := make(map[uuid.UUID]*RoundStats)
	received := make(map[uuid.UUID]bool)

	for _, stop := range ordered {
		if len(candidates) == 0 {
			result.Failed = append(result.Failed, Failure{Stop: stop, Reason: ReasonNoRound})
			continue
		}

		var best *insertionPlan
		var closestBlocked *insertionPlan

		for _, round := range candidates {
			plan, err := bestInsertion(ctx, stop, round, gw, cfg, statsCache, logger)
			if err != nil {
				return nil, err
			}

			if plan.blockReason != "" {
				if closestBlocked == nil || plan.detourMeters < closestBlocked.detourMeters {
					closestBlocked = plan
				}
				continue
			}
			if best == nil ||
				plan.detourMeters < best.detourMeters ||
				(plan.detourMeters == best.detourMeters &&
					plan.round.RoundID.String() < best.round.RoundID.String()) {
				best = plan
			}
		}

		if best == nil {
			reason := ReasonTooFar
			if closestBlocked != nil {
				// Report the blocking reason of the nearest round.
				reason = closestBlocked.blockReason
			}
			result.Failed = append(result.Failed, Failure{Stop: stop, Reason: reason})
			continue
		}

		best.round.InsertStopAt(stop.ToStop(best.round.RoundID), best.position)
		received[best.round.RoundID] = true
		// The sequence changed; the cached schedule is stale.
		delete(statsCache, best.round.RoundID)

		result.Dispatched = append(result.Dispatched, Assignment{
			Stop:     stop,
			RoundID:  best.round.RoundID,
			Position: best.position,
			Reason:   ReasonClosestRound,
		})

		logger.Info("pending stop dispatched",
			zap.String("stop", stop.Name),
			zap.String("round_id", best.round.RoundID.String()),
			zap.Int("position", best.position),
			zap.Int("detour_meters", best.detourMeters),
		)
	}

	// One final recompute per affected round, not one per stop.
	for _, round := range candidates {
		if !received[round.RoundID] {
			continue
		}
		stats, err := ComputeRoundStats(ctx, round, gw, cfg.Stats, logger)
		if err != nil {
			return nil, err
		}
		ApplyStats(round, stats)
		result.Updated = append(result.Updated, round)
		result.Stats[round.RoundID] = stats
	}

	return result, nil
}

// orderPending sorts stops by time-window start ascending with windowless
// stops last; ties keep input order.
func orderPending(pending []*domain.PendingStop) []*domain.PendingStop {
	out := append([]*domain.PendingStop(nil), pending...)
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Window, out[j].Window
		switch {
		case wi == nil && wj == nil:
			return false
		case wi == nil:
			return false
		case wj == nil:
			return true
		default:
			return wi.Start.Before(wj.Start)
		}
	})
	return out
}

// bestInsertion finds the cheapest position to insert the stop into the
// round's current sequence and checks feasibility there. A lightweight
// pairwise-distance pass, not a full re-solve.
func bestInsertion(
	ctx context.Context,
	stop *domain.PendingStop,
	round *domain.Round,
	gw ports.RoutingGateway,
	cfg DispatchConfig,
	statsCache map[uuid.UUID]*RoundStats,
	logger *zap.Logger,
) (*insertionPlan, error) {
	stats, ok := statsCache[round.RoundID]
	if !ok {
		var err error
		stats, err = ComputeRoundStats(ctx, round, gw, cfg.Stats, logger)
		if err != nil {
			return nil, err
		}
		statsCache[round.RoundID] = stats
	}

	bestPos := len(round.Stops)
	bestDetour := -1
	var bestLeg ports.Leg

	for pos := 0; pos <= len(round.Stops); pos++ {
		prev := waypointBefore(round, pos)
		next := waypointAfter(round, pos)

		inLeg, err := legBetween(ctx, gw, prev, stop.Location, cfg.Stats)
		if err != nil {
			return nil, err
		}
		outLeg, err := legBetween(ctx, gw, stop.Location, next, cfg.Stats)
		if err != nil {
			return nil, err
		}
		directLeg, err := legBetween(ctx, gw, prev, next, cfg.Stats)
		if err != nil {
			return nil, err
		}

		detour := inLeg.DistanceMeters + outLeg.DistanceMeters - directLeg.DistanceMeters
		if bestDetour < 0 || detour < bestDetour {
			bestDetour = detour
			bestPos = pos
			bestLeg = inLeg
		}
	}

	plan := &insertionPlan{round: round, position: bestPos, detourMeters: bestDetour}

	if cfg.MaxInsertionDetourMeters > 0 && bestDetour > cfg.MaxInsertionDetourMeters {
		plan.blockReason = ReasonTooFar
		return plan, nil
	}

	arrival := projectedArrival(round, stats, bestPos, bestLeg)
	if stop.Window != nil && !stop.Window.OverlapsPadded(arrival, cfg.WindowTolerance) {
		plan.blockReason = ReasonOutsideHours
		return plan, nil
	}

	if cfg.MaxRoundDuration > 0 {
		// Conservative projection: current schedule plus the approach leg
		// and the new stop's service time.
		projected := time.Duration(stats.TotalDurationSeconds)*time.Second +
			time.Duration(bestLeg.DurationSeconds)*time.Second +
			stop.ServiceDuration
		if projected > cfg.MaxRoundDuration {
			plan.blockReason = ReasonDurationLimit
			return plan, nil
		}
	}

	return plan, nil
}

// waypointBefore returns the nearest geocoded coordinates preceding
// insertion position pos, falling back to the depot.
func waypointBefore(round *domain.Round, pos int) *domain.Coordinates {
	for i := pos - 1; i >= 0; i-- {
		if round.Stops[i].Geocoded() {
			return round.Stops[i].Location
		}
	}
	depot := round.Depot
	return &depot
}

// waypointAfter returns the nearest geocoded coordinates at or after
// insertion position pos. Nil when inserting past the last geocoded stop.
func waypointAfter(round *domain.Round, pos int) *domain.Coordinates {
	for i := pos; i < len(round.Stops); i++ {
		if round.Stops[i].Geocoded() {
			return round.Stops[i].Location
		}
	}
	return nil
}

// legBetween asks the gateway for one pairwise leg, degrading to the
// straight-line estimate when the provider is down. Missing coordinates on
// either side yield a zero-length leg, consistent with the stats engine.
func legBetween(
	ctx context.Context,
	gw ports.RoutingGateway,
	from, to *domain.Coordinates,
	cfg StatsConfig,
) (ports.Leg, error) {
	if from == nil || to == nil {
		return ports.Leg{}, nil
	}
	leg, err := gw.Distance(ctx, *from, *to)
	if err != nil {
		var pe *ports.ProviderError
		if errors.As(err, &pe) {
			return estimateLeg(*from, *to, cfg.FallbackSpeedKmh), nil
		}
		return ports.Leg{}, err
	}
	return leg, nil
}

// projectedArrival estimates when the driver would reach a stop inserted at
// the given position, from the round's current schedule.
func projectedArrival(round *domain.Round, stats *RoundStats, pos int, inLeg ports.Leg) time.Time {
	travel := time.Duration(inLeg.DurationSeconds) * time.Second
	if pos == 0 || len(round.Stops) == 0 {
		return round.DepartAt.Add(travel)
	}
	prev := round.Stops[min(pos, len(round.Stops))-1]
	if eta, ok := stats.ETAs[prev.StopID]; ok {
		return eta.Add(prev.ServiceDuration).Add(travel)
	}
	return round.DepartAt.Add(travel)
}
