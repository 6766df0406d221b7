package ports

import (
	"context"
	"fmt"

	"route-dispatch-service/internal/domain"
)

// Leg is the travel segment between two consecutive waypoints.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
}

// RouteResult is the routed breakdown of an ordered waypoint sequence:
// one leg per consecutive pair plus the summed totals.
type RouteResult struct {
	Legs            []Leg
	DistanceMeters  int
	DurationSeconds int
}

// Job is a single visit submitted to a time-window-aware solver.
type Job struct {
	ID             string
	Location       domain.Coordinates
	ServiceSeconds int
	Window         *domain.TimeWindow
}

// SolveResult is a solver's proposed visiting order. Feasible reports,
// per job ID, whether the solver could honor its time window.
type SolveResult struct {
	Order    []string
	Feasible map[string]bool
}

// ProviderHealth describes which routing capability level is active.
type ProviderHealth struct {
	Available    bool
	ProviderName string
	Features     []string
}

// RoutingGateway is the uniform interface over external distance/duration
// and solve services. Implementations own caching, provider selection and
// health checks; callers receive typed errors, never transport failures.
type RoutingGateway interface {
	// Route returns legs for the full ordered waypoint sequence in one
	// batched call. Results may be served from cache.
	Route(ctx context.Context, waypoints []domain.Coordinates) (RouteResult, error)

	// RouteLive bypasses the cache and forces a provider call. Diagnostics only.
	RouteLive(ctx context.Context, waypoints []domain.Coordinates) (RouteResult, error)

	// Matrix returns the full pairwise leg matrix for the given points.
	Matrix(ctx context.Context, points []domain.Coordinates) ([][]Leg, error)

	// Distance returns the single leg between two points.
	Distance(ctx context.Context, from, to domain.Coordinates) (Leg, error)

	// Solve submits depot + jobs to a time-window-capable solver.
	Solve(ctx context.Context, depot domain.Coordinates, jobs []Job) (SolveResult, error)

	// Health reports the active provider and its capability level.
	Health(ctx context.Context) ProviderHealth
}

// ProviderError wraps any provider-level failure (timeout, non-2xx,
// malformed payload) so business logic can apply its degraded fallback
// instead of inspecting transport errors.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("routing provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
