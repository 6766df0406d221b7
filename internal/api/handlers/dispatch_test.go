package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"route-dispatch-service/internal/adapters/routing"
	"route-dispatch-service/internal/api/dto"
	"route-dispatch-service/internal/api/handlers"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// recordingRepo captures persistence calls so tests can check what was
// written and in which order.
type recordingRepo struct {
	rounds []*domain.Round

	calls      []string
	savedIndex map[uuid.UUID]int
	inserted   []*domain.Stop
}

func (r *recordingRepo) GetRound(context.Context, uuid.UUID) (*domain.Round, error) {
	return nil, ports.ErrRoundNotFound
}

func (r *recordingRepo) ListRoundsByDate(context.Context, time.Time) ([]*domain.Round, error) {
	return r.rounds, nil
}

func (r *recordingRepo) SaveRoundDerived(_ context.Context, round *domain.Round) error {
	r.calls = append(r.calls, "save")
	r.savedIndex = make(map[uuid.UUID]int, len(round.Stops))
	for _, s := range round.Stops {
		r.savedIndex[s.StopID] = s.OrderIndex
	}
	return nil
}

func (r *recordingRepo) InsertStops(_ context.Context, _ uuid.UUID, stops []*domain.Stop) error {
	r.calls = append(r.calls, "insert")
	r.inserted = append(r.inserted, stops...)
	return nil
}

// flatGateway prices travel on a flat grid: one degree is a kilometer and
// the driver moves at ten meters per second.
func flatGateway() *routing.Gateway {
	provider := &routing.MockProvider{
		ProviderName: "grid",
		RouteFn: func(_ context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
			var res ports.RouteResult
			for i := 0; i+1 < len(waypoints); i++ {
				a, b := waypoints[i], waypoints[i+1]
				meters := int(math.Round((math.Abs(a.Lat-b.Lat) + math.Abs(a.Lon-b.Lon)) * 1000))
				leg := ports.Leg{DistanceMeters: meters, DurationSeconds: meters / 10}
				res.Legs = append(res.Legs, leg)
				res.DistanceMeters += leg.DistanceMeters
				res.DurationSeconds += leg.DurationSeconds
			}
			return res, nil
		},
	}
	return routing.NewGateway(provider, nil, nil, routing.DefaultGatewayConfig(), zap.NewNop())
}

// A stop dispatched into the middle of a round takes an order index that a
// stored row still holds. The handler must rewrite the surviving rows
// before inserting the new ones or the unique index constraint rejects the
// insert.
func TestDispatch_reindexesSurvivorsBeforeInsert(t *testing.T) {
	departAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	first := &domain.Stop{StopID: uuid.New(), Kind: domain.StopKindDelivery, Location: &domain.Coordinates{Lat: 1}}
	last := &domain.Stop{StopID: uuid.New(), Kind: domain.StopKindDelivery, Location: &domain.Coordinates{Lat: 3}}
	round := &domain.Round{
		RoundID:  uuid.New(),
		Date:     departAt.Truncate(24 * time.Hour),
		DepartAt: departAt,
		Status:   domain.RoundStatusPlanned,
		Stops:    []*domain.Stop{first, last},
	}
	round.ReindexStops()

	repo := &recordingRepo{rounds: []*domain.Round{round}}
	engine := services.NewEngine(flatGateway(), repo, services.DefaultConfig(), zap.NewNop())
	h := &handlers.DispatchHandler{Repo: repo, Engine: engine, Logger: zap.NewNop()}

	body, err := json.Marshal(dto.DispatchRequest{
		Date: "2026-01-05",
		Stops: []dto.PendingStopRequest{{
			Kind:     "delivery",
			Location: &dto.CoordinatesRequest{Lat: 2},
		}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Dispatched, 1)
	require.Equal(t, 1, resp.Dispatched[0].Position)
	require.Empty(t, resp.Failed)

	require.Equal(t, []string{"save", "insert"}, repo.calls)

	// The trailing stop moved from stored index 1 to 2 in the derived
	// write, freeing slot 1 for the new row.
	require.Equal(t, 0, repo.savedIndex[first.StopID])
	require.Equal(t, 2, repo.savedIndex[last.StopID])
	require.Len(t, repo.inserted, 1)
	require.Equal(t, 1, repo.inserted[0].OrderIndex)
	require.Equal(t, resp.Dispatched[0].StopID, repo.inserted[0].StopID.String())
}
