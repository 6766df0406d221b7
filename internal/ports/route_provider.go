package ports

import (
	"context"

	"route-dispatch-service/internal/domain"
)

// Contract for retrieving routed legs and pairwise matrices from one
// concrete routing service.
type RouteProvider interface {
	Name() string
	Route(ctx context.Context, waypoints []domain.Coordinates) (RouteResult, error)
	Matrix(ctx context.Context, points []domain.Coordinates) ([][]Leg, error)
	// Ping verifies the provider is reachable.
	Ping(ctx context.Context) error
}

// Contract for a provider that can solve a time-window visiting order.
type SolveProvider interface {
	Name() string
	Solve(ctx context.Context, depot domain.Coordinates, jobs []Job) (SolveResult, error)
	Ping(ctx context.Context) error
}
