package routing

import (
	"context"
	"errors"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// MockProvider is a scriptable provider double for tests. Unset functions
// fail rather than silently succeeding.
type MockProvider struct {
	ProviderName string
	RouteFn      func(ctx context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error)
	MatrixFn     func(ctx context.Context, points []domain.Coordinates) ([][]ports.Leg, error)
	SolveFn      func(ctx context.Context, depot domain.Coordinates, jobs []ports.Job) (ports.SolveResult, error)
	PingErr      error

	RouteCalls  int
	MatrixCalls int
	SolveCalls  int
}

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockProvider) Route(ctx context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
	m.RouteCalls++
	if m.RouteFn == nil {
		return ports.RouteResult{}, errors.New("mock provider: RouteFn not set")
	}
	return m.RouteFn(ctx, waypoints)
}

func (m *MockProvider) Matrix(ctx context.Context, points []domain.Coordinates) ([][]ports.Leg, error) {
	m.MatrixCalls++
	if m.MatrixFn == nil {
		return nil, errors.New("mock provider: MatrixFn not set")
	}
	return m.MatrixFn(ctx, points)
}

func (m *MockProvider) Solve(ctx context.Context, depot domain.Coordinates, jobs []ports.Job) (ports.SolveResult, error) {
	m.SolveCalls++
	if m.SolveFn == nil {
		return ports.SolveResult{}, errors.New("mock provider: SolveFn not set")
	}
	return m.SolveFn(ctx, depot, jobs)
}

func (m *MockProvider) Ping(context.Context) error { return m.PingErr }
