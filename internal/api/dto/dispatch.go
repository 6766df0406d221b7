package dto

import "time"

type CoordinatesRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type TimeWindowRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ProductLineRequest struct {
	ProductID                string `json:"product_id"`
	Name                     string `json:"name"`
	InstallDurationSeconds   int    `json:"install_duration_seconds"`
	UninstallDurationSeconds int    `json:"uninstall_duration_seconds"`
	Quantity                 int    `json:"quantity"`
}

type OptionRequest struct {
	OptionID             string `json:"option_id"`
	Name                 string `json:"name"`
	ExtraDurationSeconds int    `json:"extra_duration_seconds"`
}

type PendingStopRequest struct {
	StopID   string               `json:"stop_id"`
	Name     string               `json:"name"`
	Kind     string               `json:"kind"`
	Location *CoordinatesRequest  `json:"location"`
	Window   *TimeWindowRequest   `json:"window"`
	Products []ProductLineRequest `json:"products"`
	Options  []OptionRequest      `json:"options"`
}

type DispatchRequest struct {
	// Date selects the day's rounds, formatted 2006-01-02.
	Date  string               `json:"date"`
	Stops []PendingStopRequest `json:"stops"`
}

type AssignmentResponse struct {
	StopID   string `json:"stop_id"`
	RoundID  string `json:"round_id"`
	Position int    `json:"position"`
	Reason   string `json:"reason"`
}

type FailureResponse struct {
	StopID string `json:"stop_id"`
	Reason string `json:"reason"`
}

type DispatchResponse struct {
	Dispatched []AssignmentResponse `json:"dispatched"`
	Failed     []FailureResponse    `json:"failed"`
	Rounds     []RoundStatsResponse `json:"rounds"`
}
