package dto

import "time"

type RecomputeRequest struct {
	RoundID string `json:"round_id"`
}

type OptimizeRequest struct {
	RoundID string `json:"round_id"`
	// Apply persists the proposed order when it improves on the current one.
	Apply bool `json:"apply"`
}

type LegResponse struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

type StopETAResponse struct {
	StopID           string    `json:"stop_id"`
	EstimatedArrival time.Time `json:"estimated_arrival"`
}

type RoundStatsResponse struct {
	RoundID              string            `json:"round_id"`
	Legs                 []LegResponse     `json:"legs"`
	ETAs                 []StopETAResponse `json:"etas"`
	TotalDistanceMeters  int               `json:"total_distance_meters"`
	TotalDurationSeconds int               `json:"total_duration_seconds"`
	EstimatedEndAt       time.Time         `json:"estimated_end_at"`
	Degraded             bool              `json:"degraded"`
}

type OptimizeResponse struct {
	RoundID             string             `json:"round_id"`
	Order               []string           `json:"order"`
	DistanceSavedMeters int                `json:"distance_saved_meters"`
	TimeSavedSeconds    int                `json:"time_saved_seconds"`
	DistanceOnly        bool               `json:"distance_only"`
	Applied             bool               `json:"applied"`
	Stats               RoundStatsResponse `json:"stats"`
}

type ProviderHealthResponse struct {
	Available bool     `json:"available"`
	Provider  string   `json:"provider"`
	Features  []string `json:"features"`
}

type RouteLiveRequest struct {
	Waypoints []CoordinatesRequest `json:"waypoints"`
}

type RouteLiveResponse struct {
	Legs                 []LegResponse `json:"legs"`
	TotalDistanceMeters  int           `json:"total_distance_meters"`
	TotalDurationSeconds int           `json:"total_duration_seconds"`
}
