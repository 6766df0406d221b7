package routing

import (
	"context"
	"errors"
	"math"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// LocalProvider is an offline RouteProvider estimating legs from
// great-circle distance at a fixed average speed. It keeps the engine fully
// functional without any external routing service (local runs, tests).
type LocalProvider struct {
	SpeedKmh float64
}

func NewLocalProvider(speedKmh float64) *LocalProvider {
	if speedKmh <= 0 {
		speedKmh = 50
	}
	return &LocalProvider{SpeedKmh: speedKmh}
}

func (p *LocalProvider) Name() string { return "straight-line" }

func (p *LocalProvider) leg(a, b domain.Coordinates) ports.Leg {
	meters := domain.GreatCircleMeters(a, b)
	seconds := meters / (p.SpeedKmh / 3.6)
	return ports.Leg{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}
}

func (p *LocalProvider) Route(_ context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
	if len(waypoints) < 2 {
		return ports.RouteResult{}, errors.New("local route: need at least two waypoints")
	}
	out := ports.RouteResult{Legs: make([]ports.Leg, 0, len(waypoints)-1)}
	for i := 0; i+1 < len(waypoints); i++ {
		leg := p.leg(waypoints[i], waypoints[i+1])
		out.Legs = append(out.Legs, leg)
		out.DistanceMeters += leg.DistanceMeters
		out.DurationSeconds += leg.DurationSeconds
	}
	return out, nil
}

func (p *LocalProvider) Matrix(_ context.Context, points []domain.Coordinates) ([][]ports.Leg, error) {
	if len(points) < 2 {
		return nil, errors.New("local matrix: need at least two points")
	}
	out := make([][]ports.Leg, len(points))
	for i := range points {
		out[i] = make([]ports.Leg, len(points))
		for j := range points {
			if i == j {
				continue
			}
			out[i][j] = p.leg(points[i], points[j])
		}
	}
	return out, nil
}

func (p *LocalProvider) Ping(context.Context) error { return nil }
