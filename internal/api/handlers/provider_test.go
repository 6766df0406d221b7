package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"route-dispatch-service/internal/adapters/routing"
	"route-dispatch-service/internal/api/dto"
	"route-dispatch-service/internal/api/handlers"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

func routeLiveBody(t *testing.T, waypoints ...dto.CoordinatesRequest) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(dto.RouteLiveRequest{Waypoints: waypoints})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestProviderRouteLive_routesWaypoints(t *testing.T) {
	engine := services.NewEngine(flatGateway(), nil, services.DefaultConfig(), zap.NewNop())
	h := &handlers.ProviderHandler{Engine: engine, Logger: zap.NewNop()}

	body := routeLiveBody(t, dto.CoordinatesRequest{}, dto.CoordinatesRequest{Lat: 1}, dto.CoordinatesRequest{Lat: 3})
	rec := httptest.NewRecorder()
	h.RouteLive(rec, httptest.NewRequest(http.MethodPost, "/provider/route-live", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.RouteLiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Legs, 2)
	require.Equal(t, 3000, resp.TotalDistanceMeters)
	require.Equal(t, 300, resp.TotalDurationSeconds)
}

func TestProviderRouteLive_needsTwoWaypoints(t *testing.T) {
	engine := services.NewEngine(flatGateway(), nil, services.DefaultConfig(), zap.NewNop())
	h := &handlers.ProviderHandler{Engine: engine, Logger: zap.NewNop()}

	rec := httptest.NewRecorder()
	h.RouteLive(rec, httptest.NewRequest(http.MethodPost, "/provider/route-live", routeLiveBody(t, dto.CoordinatesRequest{Lat: 1})))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderRouteLive_reportsProviderOutage(t *testing.T) {
	provider := &routing.MockProvider{
		ProviderName: "down",
		RouteFn: func(context.Context, []domain.Coordinates) (ports.RouteResult, error) {
			return ports.RouteResult{}, errors.New("connection refused")
		},
	}
	gw := routing.NewGateway(provider, nil, nil, routing.DefaultGatewayConfig(), zap.NewNop())
	engine := services.NewEngine(gw, nil, services.DefaultConfig(), zap.NewNop())
	h := &handlers.ProviderHandler{Engine: engine, Logger: zap.NewNop()}

	body := routeLiveBody(t, dto.CoordinatesRequest{}, dto.CoordinatesRequest{Lat: 1})
	rec := httptest.NewRecorder()
	h.RouteLive(rec, httptest.NewRequest(http.MethodPost, "/provider/route-live", body))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
