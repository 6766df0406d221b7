package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// VroomSolver implements SolveProvider against a VROOM server, which
// understands time windows and per-job service durations.
type VroomSolver struct {
	client  apiClient
	baseURL string
}

func NewVroomSolver(baseURL string, timeout time.Duration) (*VroomSolver, error) {
	if baseURL == "" {
		return nil, errors.New("VROOM base URL is empty")
	}
	return &VroomSolver{
		client:  newAPIClient(timeout, ""),
		baseURL: baseURL,
	}, nil
}

func (v *VroomSolver) Name() string { return "vroom" }

type vroomVehicle struct {
	ID    int       `json:"id"`
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

type vroomJob struct {
	ID          int        `json:"id"`
	Location    []float64  `json:"location"`
	Service     int        `json:"service,omitempty"`
	TimeWindows [][2]int64 `json:"time_windows,omitempty"`
}

type vroomRequest struct {
	Vehicles []vroomVehicle `json:"vehicles"`
	Jobs     []vroomJob     `json:"jobs"`
}

type vroomResponse struct {
	Code   int `json:"code"`
	Routes []struct {
		Steps []struct {
			Type string `json:"type"`
			Job  int    `json:"job"`
		} `json:"steps"`
	} `json:"routes"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
}

// Solve submits one vehicle starting and ending at the depot plus one job
// per stop, and maps the solver's step order back to job IDs. Jobs the
// solver could not place are reported infeasible, not dropped.
func (v *VroomSolver) Solve(ctx context.Context, depot domain.Coordinates, jobs []ports.Job) (ports.SolveResult, error) {
	if len(jobs) == 0 {
		return ports.SolveResult{Feasible: map[string]bool{}}, nil
	}

	// VROOM wants numeric job IDs; keep the index mapping local.
	byIndex := make(map[int]string, len(jobs))
	reqJobs := make([]vroomJob, 0, len(jobs))
	for i, j := range jobs {
		byIndex[i+1] = j.ID
		vj := vroomJob{
			ID:       i + 1,
			Location: j.Location.CoordsToList(),
			Service:  j.ServiceSeconds,
		}
		if j.Window != nil {
			vj.TimeWindows = [][2]int64{{j.Window.Start.Unix(), j.Window.End.Unix()}}
		}
		reqJobs = append(reqJobs, vj)
	}

	payload, err := json.Marshal(vroomRequest{
		Vehicles: []vroomVehicle{{
			ID:    1,
			Start: depot.CoordsToList(),
			End:   depot.CoordsToList(),
		}},
		Jobs: reqJobs,
	})
	if err != nil {
		return ports.SolveResult{}, fmt.Errorf("marshal solve request: %w", err)
	}

	resp, err := v.client.doWithRetry(ctx, func() (*http.Request, error) {
		return v.client.newRequest(ctx, http.MethodPost, v.baseURL, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.SolveResult{}, fmt.Errorf("solve request failed: %w", err)
	}
	defer resp.Body.Close()

	var vr vroomResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return ports.SolveResult{}, fmt.Errorf("decode solve response: %w", err)
	}
	if vr.Code != 0 {
		return ports.SolveResult{}, fmt.Errorf("solver returned code %d", vr.Code)
	}

	out := ports.SolveResult{Feasible: make(map[string]bool, len(jobs))}
	for _, route := range vr.Routes {
		for _, step := range route.Steps {
			if step.Type != "job" {
				continue
			}
			id, ok := byIndex[step.Job]
			if !ok {
				return ports.SolveResult{}, errors.New("solver returned unknown job id " + strconv.Itoa(step.Job))
			}
			out.Order = append(out.Order, id)
			out.Feasible[id] = true
		}
	}
	for _, u := range vr.Unassigned {
		if id, ok := byIndex[u.ID]; ok {
			out.Feasible[id] = false
		}
	}
	return out, nil
}

// Ping verifies the solver is reachable.
func (v *VroomSolver) Ping(ctx context.Context) error {
	req, err := v.client.newRequest(ctx, http.MethodGet, v.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := v.client.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
