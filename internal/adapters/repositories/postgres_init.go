package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// InitSchema creates the rounds and stops tables when they do not exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		round_id UUID PRIMARY KEY,
		round_date DATE NOT NULL,
		depot_lat DOUBLE PRECISION NOT NULL,
		depot_lon DOUBLE PRECISION NOT NULL,
		depart_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		total_distance_meters INTEGER NOT NULL DEFAULT 0,
		total_duration_seconds INTEGER NOT NULL DEFAULT 0,
		estimated_end_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS stops (
		stop_id UUID PRIMARY KEY,
		round_id UUID NOT NULL REFERENCES rounds(round_id),
		kind TEXT NOT NULL,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		window_start TIMESTAMPTZ,
		window_end TIMESTAMPTZ,
		service_seconds INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL,
		estimated_arrival TIMESTAMPTZ,
		actual_arrival TIMESTAMPTZ,
		actual_departure TIMESTAMPTZ,
		UNIQUE (round_id, order_index) DEFERRABLE INITIALLY DEFERRED
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_date ON rounds(round_date);
	CREATE INDEX IF NOT EXISTS idx_stops_round ON stops(round_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

type seedStop struct {
	Kind           string     `json:"kind"`
	Lat            *float64   `json:"lat"`
	Lon            *float64   `json:"lon"`
	WindowStart    *time.Time `json:"window_start"`
	WindowEnd      *time.Time `json:"window_end"`
	ServiceMinutes int        `json:"service_minutes"`
}

type seedRound struct {
	Date     string     `json:"date"`
	DepotLat float64    `json:"depot_lat"`
	DepotLon float64    `json:"depot_lon"`
	DepartAt time.Time  `json:"depart_at"`
	Status   string     `json:"status"`
	Stops    []seedStop `json:"stops"`
}

// SeedFromJSON loads demo rounds for local runs. Seeding is skipped when
// the rounds table already has rows.
func SeedFromJSON(db *sql.DB, path string) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rounds;`).Scan(&count); err != nil {
		return fmt.Errorf("seed rounds: count: %w", err)
	}
	if count > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seed rounds: read %q: %w", path, err)
	}

	var seeds []seedRound
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("seed rounds: decode %q: %w", path, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed rounds: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range seeds {
		roundID := uuid.New()
		if _, err := tx.Exec(`
		INSERT INTO rounds (round_id, round_date, depot_lat, depot_lon, depart_at, status)
		VALUES ($1, $2, $3, $4, $5, $6);
		`, roundID, r.Date, r.DepotLat, r.DepotLon, r.DepartAt, r.Status); err != nil {
			return fmt.Errorf("seed rounds: insert round: %w", err)
		}

		for i, s := range r.Stops {
			if _, err := tx.Exec(`
			INSERT INTO stops (stop_id, round_id, kind, lat, lon, window_start, window_end, service_seconds, order_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
			`, uuid.New(), roundID, s.Kind, s.Lat, s.Lon, s.WindowStart, s.WindowEnd, s.ServiceMinutes*60, i); err != nil {
				return fmt.Errorf("seed rounds: insert stop: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed rounds: commit: %w", err)
	}
	return nil
}
