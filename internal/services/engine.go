package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/platform/obs"
	"route-dispatch-service/internal/ports"
)

// Config groups the tunables of the three engine components.
type Config struct {
	Stats    StatsConfig
	Optimize OptimizeConfig
	Dispatch DispatchConfig
}

// DefaultConfig returns conservative defaults suitable for urban rounds.
func DefaultConfig() Config {
	stats := StatsConfig{FallbackSpeedKmh: 50}
	return Config{
		Stats: stats,
		Optimize: OptimizeConfig{
			Stats:           stats,
			MaxTwoOptPasses: 8,
		},
		Dispatch: DispatchConfig{
			Stats:                    stats,
			WindowTolerance:          30 * time.Minute,
			MaxRoundDuration:         10 * time.Hour,
			MaxInsertionDetourMeters: 25_000,
		},
	}
}

// Engine is the library surface of the sequencing and dispatch core.
// It computes derived values (ETAs, totals, orders, assignments) and
// returns them; persisting the results is the caller's job.
type Engine struct {
	gateway ports.RoutingGateway
	rounds  ports.RoundRepository
	locker  *RoundLocker
	cfg     Config
	logger  *zap.Logger
}

// NewEngine wires the engine. The repository is only used to list candidate
// rounds for dispatch; pass nil when dispatching with caller-supplied rounds.
func NewEngine(gw ports.RoutingGateway, rounds ports.RoundRepository, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		gateway: gw,
		rounds:  rounds,
		locker:  NewRoundLocker(),
		cfg:     cfg,
		logger:  logger,
	}
}

// RecomputeRoundStats recomputes ETAs and totals for the round's current
// order, applies them to the in-memory round and returns them. The pass is
// serialized per round.
func (e *Engine) RecomputeRoundStats(ctx context.Context, round *domain.Round) (_ *RoundStats, err error) {
	defer obs.Time(e.logger, "engine.RecomputeRoundStats")(&err)

	if round == nil {
		return nil, errors.New("recompute round stats: round must be non-nil")
	}
	unlock := e.locker.Lock(round.RoundID)
	defer unlock()

	stats, err := ComputeRoundStats(ctx, round, e.gateway, e.cfg.Stats, e.logger)
	if err != nil {
		return nil, err
	}
	ApplyStats(round, stats)
	return stats, nil
}

// OptimizeRound proposes a new stop order for the round. The round itself
// is left untouched; callers decide whether to adopt the order (ApplyOrder)
// and persist it.
func (e *Engine) OptimizeRound(ctx context.Context, round *domain.Round) (_ *OptimizeResult, err error) {
	defer obs.Time(e.logger, "engine.OptimizeRound")(&err)

	if round == nil {
		return nil, errors.New("optimize round: round must be non-nil")
	}
	unlock := e.locker.Lock(round.RoundID)
	defer unlock()

	return OptimizeRound(ctx, round, e.gateway, e.cfg.Optimize, e.logger)
}

// DispatchPendingStops assigns the batch across the editable rounds of the
// given day. All touched rounds are locked for the duration of the batch in
// a fixed order.
func (e *Engine) DispatchPendingStops(ctx context.Context, date time.Time, pending []*domain.PendingStop) (_ *DispatchResult, err error) {
	defer obs.Time(e.logger, "engine.DispatchPendingStops")(&err)

	if e.rounds == nil {
		return nil, errors.New("dispatch: engine has no round repository")
	}
	rounds, err := e.rounds.ListRoundsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list rounds for %s: %w", date.Format("2006-01-02"), err)
	}
	return e.DispatchToRounds(ctx, pending, rounds)
}

// DispatchToRounds is the repository-free variant operating on
// caller-supplied round snapshots.
func (e *Engine) DispatchToRounds(ctx context.Context, pending []*domain.PendingStop, rounds []*domain.Round) (*DispatchResult, error) {
	ids := make([]uuid.UUID, 0, len(rounds))
	for _, r := range rounds {
		ids = append(ids, r.RoundID)
	}
	unlock := e.locker.LockAll(ids)
	defer unlock()

	return DispatchPendingStops(ctx, pending, rounds, e.gateway, e.cfg.Dispatch, e.logger)
}

// CalculateStopServiceDuration recomputes and caches the stop's service
// duration from its products, options and kind.
func (e *Engine) CalculateStopServiceDuration(stop *domain.Stop) time.Duration {
	if stop == nil {
		return 0
	}
	return stop.RefreshServiceDuration()
}

// ProviderHealth reports the gateway's active provider and capability level.
func (e *Engine) ProviderHealth(ctx context.Context) ports.ProviderHealth {
	return e.gateway.Health(ctx)
}

// LiveRoute routes the waypoint sequence against the live provider,
// bypassing the gateway's read cache. Diagnostics surface for checking
// provider answers against cached ones.
func (e *Engine) LiveRoute(ctx context.Context, waypoints []domain.Coordinates) (_ ports.RouteResult, err error) {
	defer obs.Time(e.logger, "engine.LiveRoute")(&err)

	if len(waypoints) < 2 {
		return ports.RouteResult{}, errors.New("live route: need at least two waypoints")
	}
	return e.gateway.RouteLive(ctx, waypoints)
}
