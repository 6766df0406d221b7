package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// GatewayConfig tunes caching and provider call bounds.
type GatewayConfig struct {
	// CacheTTL bounds how long a cached result is trusted. Road conditions
	// do not change within a recompute burst, but entries must expire.
	CacheTTL time.Duration
	// CallTimeout bounds every provider call so an unresponsive routing
	// service can never hang a recompute.
	CallTimeout time.Duration
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CacheTTL:    5 * time.Minute,
		CallTimeout: 10 * time.Second,
	}
}

// Gateway is the uniform front over the configured providers. It owns the
// result cache, per-provider circuit breakers, and health reporting. All
// failures surface as *ports.ProviderError; transport errors never reach
// business logic.
type Gateway struct {
	router ports.RouteProvider
	solver ports.SolveProvider // optional; nil degrades to distance only

	cache ports.RouteCache // optional

	routerBreaker *gobreaker.CircuitBreaker
	solverBreaker *gobreaker.CircuitBreaker

	cfg    GatewayConfig
	logger *zap.Logger
}

func NewGateway(router ports.RouteProvider, solver ports.SolveProvider, cache ports.RouteCache, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		router: router,
		solver: solver,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
	g.routerBreaker = newBreaker("router:" + router.Name())
	if solver != nil {
		g.solverBreaker = newBreaker("solver:" + solver.Name())
	}
	return g
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

var _ ports.RoutingGateway = (*Gateway)(nil)

// Route returns legs for the waypoint sequence, serving from cache when a
// fresh entry exists.
func (g *Gateway) Route(ctx context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
	return g.route(ctx, waypoints, false)
}

// RouteLive bypasses the cache and forces a provider call. Diagnostics only.
func (g *Gateway) RouteLive(ctx context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
	return g.route(ctx, waypoints, true)
}

func (g *Gateway) route(ctx context.Context, waypoints []domain.Coordinates, bypassCache bool) (ports.RouteResult, error) {
	key := routeKey("route", waypoints)

	if g.cache != nil && !bypassCache {
		if res, ok, err := g.cache.GetRoute(ctx, key); err != nil {
			g.logger.Warn("route cache read failed", zap.Error(err))
		} else if ok {
			return res, nil
		}
	}

	out, err := g.callRouter(ctx, func(ctx context.Context) (ports.RouteResult, error) {
		return g.router.Route(ctx, waypoints)
	})
	if err != nil {
		return ports.RouteResult{}, err
	}

	if g.cache != nil {
		if err := g.cache.PutRoute(ctx, key, out, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("route cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// Matrix returns the full pairwise leg matrix. Matrices are not cached;
// they are only requested by explicit optimize calls.
func (g *Gateway) Matrix(ctx context.Context, points []domain.Coordinates) ([][]ports.Leg, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	res, err := g.routerBreaker.Execute(func() (any, error) {
		return g.router.Matrix(ctx, points)
	})
	if err != nil {
		return nil, &ports.ProviderError{Provider: g.router.Name(), Err: err}
	}
	return res.([][]ports.Leg), nil
}

// Distance returns the single leg between two points via the cached
// two-waypoint route path.
func (g *Gateway) Distance(ctx context.Context, from, to domain.Coordinates) (ports.Leg, error) {
	res, err := g.Route(ctx, []domain.Coordinates{from, to})
	if err != nil {
		return ports.Leg{}, err
	}
	if len(res.Legs) != 1 {
		return ports.Leg{}, &ports.ProviderError{
			Provider: g.router.Name(),
			Err:      fmt.Errorf("expected 1 leg, got %d", len(res.Legs)),
		}
	}
	return res.Legs[0], nil
}

// Solve submits depot + jobs to the time-window solver.
func (g *Gateway) Solve(ctx context.Context, depot domain.Coordinates, jobs []ports.Job) (ports.SolveResult, error) {
	if g.solver == nil {
		return ports.SolveResult{}, &ports.ProviderError{
			Provider: "solver",
			Err:      fmt.Errorf("no solver configured"),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	res, err := g.solverBreaker.Execute(func() (any, error) {
		return g.solver.Solve(ctx, depot, jobs)
	})
	if err != nil {
		return ports.SolveResult{}, &ports.ProviderError{Provider: g.solver.Name(), Err: err}
	}
	return res.(ports.SolveResult), nil
}

// Health reports which capability level is active: the solver when it is
// configured and reachable, otherwise the plain route provider (distance
// optimization only), otherwise unavailable.
func (g *Gateway) Health(ctx context.Context) ports.ProviderHealth {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	if g.solver != nil && g.solverBreaker.State() != gobreaker.StateOpen {
		if err := g.solver.Ping(ctx); err == nil {
			return ports.ProviderHealth{
				Available:    true,
				ProviderName: g.solver.Name(),
				Features:     []string{"route", "matrix", "solve", "time-windows"},
			}
		}
	}

	if g.routerBreaker.State() != gobreaker.StateOpen {
		if err := g.router.Ping(ctx); err == nil {
			return ports.ProviderHealth{
				Available:    true,
				ProviderName: g.router.Name(),
				Features:     []string{"route", "matrix"},
			}
		}
	}

	return ports.ProviderHealth{ProviderName: g.router.Name()}
}

func (g *Gateway) callRouter(ctx context.Context, fn func(ctx context.Context) (ports.RouteResult, error)) (ports.RouteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	res, err := g.routerBreaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return ports.RouteResult{}, &ports.ProviderError{Provider: g.router.Name(), Err: err}
	}
	return res.(ports.RouteResult), nil
}

// routeKey fingerprints an ordered waypoint set. Coordinates are rounded to
// four decimals (~11 m) so jitter does not fragment the cache.
func routeKey(kind string, waypoints []domain.Coordinates) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteString(":v1")
	for _, w := range waypoints {
		fmt.Fprintf(&b, ";%.4f,%.4f", w.Lat, w.Lon)
	}
	return b.String()
}
