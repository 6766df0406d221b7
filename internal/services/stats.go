package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// StatsConfig tunes the degraded straight-line fallback.
type StatsConfig struct {
	// FallbackSpeedKmh converts great-circle distance into an estimated
	// leg duration when the routing provider cannot answer.
	FallbackSpeedKmh float64
}

// RoundStats is the full derived output of one recompute pass.
// Degraded marks results built from straight-line estimates so callers
// can display reduced confidence; the numeric fields are always populated.
type RoundStats struct {
	Legs                 []ports.Leg
	ETAs                 map[uuid.UUID]time.Time
	TotalDistanceMeters  int
	TotalDurationSeconds int
	EstimatedEndAt       time.Time
	Degraded             bool
}

// ComputeRoundStats recomputes leg metrics, per-stop ETAs and round totals
// for the round's current order. It is a pure function of the round and the
// gateway's current answer: it never mutates the round or its order.
//
// Stops without coordinates stay in sequence as zero-length legs; they are
// excluded from the routed waypoint set but still consume their service
// duration on the time axis.
func ComputeRoundStats(
	ctx context.Context,
	round *domain.Round,
	gw ports.RoutingGateway,
	cfg StatsConfig,
	logger *zap.Logger,
) (*RoundStats, error) {
	if round == nil {
		return nil, errors.New("compute round stats: round must be non-nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	geocoded := round.GeocodedStops()

	waypoints := make([]domain.Coordinates, 0, 1+len(geocoded))
	waypoints = append(waypoints, round.Depot)
	for _, s := range geocoded {
		waypoints = append(waypoints, *s.Location)
	}

	var (
		legs     []ports.Leg
		degraded bool
	)

	if len(waypoints) >= 2 {
		// One batched call for the whole sequence keeps the external-call
		// count at O(1) per recompute.
		res, err := gw.Route(ctx, waypoints)
		if err != nil {
			// A provider outage must not block the mutation that triggered
			// this recompute; estimate legs from straight-line distance.
			logger.Warn("routing provider unavailable, using straight-line fallback",
				zap.String("round_id", round.RoundID.String()),
				zap.Error(err),
			)
			legs = estimateLegs(waypoints, cfg.FallbackSpeedKmh)
			degraded = true
		} else {
			legs = res.Legs
		}

		if len(legs) != len(waypoints)-1 {
			return nil, errors.New("compute round stats: leg count does not match waypoint sequence")
		}
	}

	stats := &RoundStats{
		Legs:     legs,
		ETAs:     make(map[uuid.UUID]time.Time, len(round.Stops)),
		Degraded: degraded,
	}

	// Walk the sequence in order-index order accumulating elapsed time.
	t := round.DepartAt
	legIdx := 0
	for _, s := range round.Stops {
		if s.Geocoded() {
			leg := legs[legIdx]
			legIdx++
			t = t.Add(time.Duration(leg.DurationSeconds) * time.Second)
			stats.TotalDistanceMeters += leg.DistanceMeters
			stats.TotalDurationSeconds += leg.DurationSeconds
		}
		stats.ETAs[s.StopID] = t
		t = t.Add(s.ServiceDuration)
		stats.TotalDurationSeconds += int(s.ServiceDuration / time.Second)
	}
	stats.EstimatedEndAt = t

	return stats, nil
}

// ApplyStats writes a recompute result onto the round: per-stop ETAs and
// the derived totals. Only call it once the whole pass has succeeded.
func ApplyStats(round *domain.Round, stats *RoundStats) {
	for _, s := range round.Stops {
		if eta, ok := stats.ETAs[s.StopID]; ok {
			etaCopy := eta
			s.EstimatedArrival = &etaCopy
		}
	}
	round.TotalDistanceMeters = stats.TotalDistanceMeters
	round.TotalDurationSeconds = stats.TotalDurationSeconds
	end := stats.EstimatedEndAt
	round.EstimatedEndAt = &end
}

// estimateLegs builds straight-line legs for consecutive waypoints at the
// configured average speed.
func estimateLegs(waypoints []domain.Coordinates, speedKmh float64) []ports.Leg {
	legs := make([]ports.Leg, 0, len(waypoints)-1)
	for i := 0; i+1 < len(waypoints); i++ {
		legs = append(legs, estimateLeg(waypoints[i], waypoints[i+1], speedKmh))
	}
	return legs
}

func estimateLeg(a, b domain.Coordinates, speedKmh float64) ports.Leg {
	meters := domain.GreatCircleMeters(a, b)
	if speedKmh <= 0 {
		speedKmh = 1
	}
	seconds := meters / (speedKmh / 3.6)
	return ports.Leg{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}
}
