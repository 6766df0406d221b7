package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
)

// ORSProvider implements RouteProvider against OpenRouteService.
// Coordinates are inputs; no geocoding happens here.
// The provider is safe for concurrent use.
type ORSProvider struct {
	client  apiClient
	baseURL string
	profile string
}

func NewORSProvider(apiKey, baseURL string, timeout time.Duration) (*ORSProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	return &ORSProvider{
		client:  newAPIClient(timeout, apiKey),
		baseURL: baseURL,
		profile: "driving-car",
	}, nil
}

func (o *ORSProvider) Name() string { return "openrouteservice" }

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
	} `json:"routes"`
}

// Route fetches a routed breakdown of the full waypoint sequence in a
// single directions call; one segment per consecutive waypoint pair.
func (o *ORSProvider) Route(ctx context.Context, waypoints []domain.Coordinates) (ports.RouteResult, error) {
	if len(waypoints) < 2 {
		return ports.RouteResult{}, errors.New("ORS route: need at least two waypoints")
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	coords := make([][]float64, 0, len(waypoints))
	for _, w := range waypoints {
		coords = append(coords, w.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return ports.RouteResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) == 0 {
		return ports.RouteResult{}, errors.New("directions returned no routes")
	}

	route := dr.Routes[0]
	if len(route.Segments) != len(waypoints)-1 {
		return ports.RouteResult{}, fmt.Errorf(
			"segment count %d does not match waypoint count %d",
			len(route.Segments), len(waypoints),
		)
	}

	out := ports.RouteResult{Legs: make([]ports.Leg, 0, len(route.Segments))}
	for _, seg := range route.Segments {
		leg := ports.Leg{
			DistanceMeters:  int(math.Round(seg.Distance)),
			DurationSeconds: int(math.Round(seg.Duration)),
		}
		out.Legs = append(out.Legs, leg)
		out.DistanceMeters += leg.DistanceMeters
		out.DurationSeconds += leg.DurationSeconds
	}
	return out, nil
}

type matrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Matrix fetches the full pairwise distance/duration matrix for the given
// points in one call.
func (o *ORSProvider) Matrix(ctx context.Context, points []domain.Coordinates) ([][]ports.Leg, error) {
	if len(points) < 2 {
		return nil, errors.New("ORS matrix: need at least two points")
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(points))
	for _, p := range points {
		locations = append(locations, p.CoordsToList())
	}

	payload, err := json.Marshal(matrixRequest{
		Locations: locations,
		Metrics:   []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(points) || len(mr.Durations) != len(points) {
		return nil, fmt.Errorf(
			"matrix size does not match points: distances=%d durations=%d points=%d",
			len(mr.Distances), len(mr.Durations), len(points),
		)
	}

	out := make([][]ports.Leg, len(points))
	for i := range points {
		if len(mr.Distances[i]) != len(points) || len(mr.Durations[i]) != len(points) {
			return nil, fmt.Errorf("matrix row %d has wrong length", i)
		}
		out[i] = make([]ports.Leg, len(points))
		for j := range points {
			metersPtr := mr.Distances[i][j]
			secondsPtr := mr.Durations[i][j]
			if metersPtr == nil || secondsPtr == nil {
				return nil, fmt.Errorf("matrix returned invalid metrics at (%d,%d)", i, j)
			}
			// ORS returns float metrics; round for domain consistency.
			out[i][j] = ports.Leg{
				DistanceMeters:  int(math.Round(*metersPtr)),
				DurationSeconds: int(math.Round(*secondsPtr)),
			}
		}
	}
	return out, nil
}

// Ping verifies the service is reachable.
func (o *ORSProvider) Ping(ctx context.Context) error {
	req, err := o.client.newRequest(ctx, http.MethodGet, o.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
