package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// Postgres-backed implementation of the RoundRepository port.
type PostgresRoundRepository struct {
	DB *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) *PostgresRoundRepository {
	return &PostgresRoundRepository{DB: db}
}

// GetRound loads one round with its ordered stops.
func (r *PostgresRoundRepository) GetRound(ctx context.Context, roundID uuid.UUID) (*domain.Round, error) {
	if r.DB == nil {
		return nil, errors.New("round repository: db is nil")
	}

	row := r.DB.QueryRowContext(ctx, `
	SELECT round_id, round_date, depot_lat, depot_lon, depart_at, status,
	       total_distance_meters, total_duration_seconds, estimated_end_at
	FROM rounds
	WHERE round_id = $1;
	`, roundID)

	round, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get round %s: %w", roundID, ports.ErrRoundNotFound)
		}
		return nil, fmt.Errorf("get round %s: %w", roundID, err)
	}

	if err := r.loadStops(ctx, []*domain.Round{round}); err != nil {
		return nil, fmt.Errorf("get round %s: %w", roundID, err)
	}
	return round, nil
}

// ListRoundsByDate loads all rounds scheduled on the given calendar day,
// stops included.
func (r *PostgresRoundRepository) ListRoundsByDate(ctx context.Context, date time.Time) ([]*domain.Round, error) {
	if r.DB == nil {
		return nil, errors.New("round repository: db is nil")
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT round_id, round_date, depot_lat, depot_lon, depart_at, status,
	       total_distance_meters, total_duration_seconds, estimated_end_at
	FROM rounds
	WHERE round_date = $1
	ORDER BY round_id;
	`, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list rounds: query: %w", err)
	}
	defer rows.Close()

	rounds := make([]*domain.Round, 0, 8)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("list rounds: scan: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rounds: iteration: %w", err)
	}

	if err := r.loadStops(ctx, rounds); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

// SaveRoundDerived persists the engine's derived values (order indices,
// per-stop ETAs, round totals) in one transaction.
func (r *PostgresRoundRepository) SaveRoundDerived(ctx context.Context, round *domain.Round) error {
	if r.DB == nil {
		return errors.New("round repository: db is nil")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save round derived: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	UPDATE rounds
	SET total_distance_meters = $2,
	    total_duration_seconds = $3,
	    estimated_end_at = $4
	WHERE round_id = $1;
	`, round.RoundID, round.TotalDistanceMeters, round.TotalDurationSeconds, round.EstimatedEndAt); err != nil {
		return fmt.Errorf("save round derived: update round: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	UPDATE stops
	SET order_index = $2,
	    estimated_arrival = $3
	WHERE stop_id = $1;
	`)
	if err != nil {
		return fmt.Errorf("save round derived: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range round.Stops {
		if _, err := stmt.ExecContext(ctx, s.StopID, s.OrderIndex, s.EstimatedArrival); err != nil {
			return fmt.Errorf("save round derived: stop %s: %w", s.StopID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save round derived: commit: %w", err)
	}
	return nil
}

// InsertStops attaches newly dispatched stops to a round.
func (r *PostgresRoundRepository) InsertStops(ctx context.Context, roundID uuid.UUID, stops []*domain.Stop) error {
	if r.DB == nil {
		return errors.New("round repository: db is nil")
	}
	if len(stops) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert stops: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO stops (stop_id, round_id, kind, lat, lon, window_start, window_end,
	                   service_seconds, order_index, estimated_arrival)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (stop_id) DO UPDATE
	SET round_id = EXCLUDED.round_id,
	    order_index = EXCLUDED.order_index,
	    estimated_arrival = EXCLUDED.estimated_arrival;
	`)
	if err != nil {
		return fmt.Errorf("insert stops: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range stops {
		var lat, lon *float64
		if s.Location != nil {
			lat, lon = &s.Location.Lat, &s.Location.Lon
		}
		var wStart, wEnd *time.Time
		if s.Window != nil {
			wStart, wEnd = &s.Window.Start, &s.Window.End
		}
		if _, err := stmt.ExecContext(ctx,
			s.StopID, roundID, string(s.Kind), lat, lon, wStart, wEnd,
			int(s.ServiceDuration/time.Second), s.OrderIndex, s.EstimatedArrival,
		); err != nil {
			return fmt.Errorf("insert stops: stop %s: %w", s.StopID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert stops: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*domain.Round, error) {
	var (
		round  domain.Round
		date   time.Time
		status string
		endAt  sql.NullTime
	)
	if err := row.Scan(
		&round.RoundID, &date, &round.Depot.Lat, &round.Depot.Lon,
		&round.DepartAt, &status,
		&round.TotalDistanceMeters, &round.TotalDurationSeconds, &endAt,
	); err != nil {
		return nil, err
	}
	round.Date = date
	round.Status = domain.RoundStatus(status)
	if endAt.Valid {
		t := endAt.Time
		round.EstimatedEndAt = &t
	}
	return &round, nil
}

// loadStops fills in the stop lists for the given rounds, ordered by
// order_index.
func (r *PostgresRoundRepository) loadStops(ctx context.Context, rounds []*domain.Round) error {
	if len(rounds) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Round, len(rounds))
	ids := make([]uuid.UUID, 0, len(rounds))
	for _, round := range rounds {
		byID[round.RoundID] = round
		ids = append(ids, round.RoundID)
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT stop_id, round_id, kind, lat, lon, window_start, window_end,
	       service_seconds, order_index, estimated_arrival, actual_arrival, actual_departure
	FROM stops
	WHERE round_id = ANY($1)
	ORDER BY round_id, order_index;
	`, ids)
	if err != nil {
		return fmt.Errorf("load stops: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stop            domain.Stop
			kind            string
			lat, lon        sql.NullFloat64
			wStart, wEnd    sql.NullTime
			serviceSeconds  int
			eta, aArr, aDep sql.NullTime
		)
		if err := rows.Scan(
			&stop.StopID, &stop.RoundID, &kind, &lat, &lon, &wStart, &wEnd,
			&serviceSeconds, &stop.OrderIndex, &eta, &aArr, &aDep,
		); err != nil {
			return fmt.Errorf("load stops: scan: %w", err)
		}

		stop.Kind = domain.StopKind(kind)
		stop.ServiceDuration = time.Duration(serviceSeconds) * time.Second
		if lat.Valid && lon.Valid {
			stop.Location = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
		}
		if wStart.Valid && wEnd.Valid {
			stop.Window = &domain.TimeWindow{Start: wStart.Time, End: wEnd.Time}
		}
		if eta.Valid {
			t := eta.Time
			stop.EstimatedArrival = &t
		}
		if aArr.Valid {
			t := aArr.Time
			stop.ActualArrival = &t
		}
		if aDep.Valid {
			t := aDep.Time
			stop.ActualDeparture = &t
		}

		if round, ok := byID[stop.RoundID]; ok {
			round.Stops = append(round.Stops, &stop)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load stops: iteration: %w", err)
	}
	return nil
}
