package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"route-dispatch-service/internal/domain"
)

// ErrRoundNotFound is returned by GetRound when the ID has no round.
var ErrRoundNotFound = errors.New("round not found")

// Port: a boundary for loading round snapshots and persisting the derived
// values the engine returns. The engine itself never writes storage.
type RoundRepository interface {
	// GetRound loads a round with its ordered stops.
	GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error)

	// ListRoundsByDate loads all rounds scheduled on the given calendar day.
	ListRoundsByDate(ctx context.Context, date time.Time) ([]*domain.Round, error)

	// SaveRoundDerived persists order indices, per-stop ETAs and round
	// totals for an already-stored round, atomically.
	SaveRoundDerived(ctx context.Context, round *domain.Round) error

	// InsertStops attaches newly dispatched stops to a round.
	InsertStops(ctx context.Context, roundID uuid.UUID, stops []*domain.Stop) error
}
