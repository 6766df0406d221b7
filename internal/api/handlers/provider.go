package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"route-dispatch-service/internal/api/dto"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// ProviderHandler exposes routing-provider diagnostics: the active
// capability level and a cache-bypassing route call.
type ProviderHandler struct {
	Engine *services.Engine
	Logger *zap.Logger
}

func (h *ProviderHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.Logger, w, r, http.MethodGet) {
		return
	}

	health := h.Engine.ProviderHealth(r.Context())
	writeJSON(h.Logger, w, http.StatusOK, dto.ProviderHealthResponse{
		Available: health.Available,
		Provider:  health.ProviderName,
		Features:  health.Features,
	})
}

// RouteLive routes the given waypoints against the live provider, skipping
// the route cache. Useful for checking whether cached answers have drifted.
func (h *ProviderHandler) RouteLive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.Logger, w, r, http.MethodPost) {
		return
	}

	var req dto.RouteLiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Waypoints) < 2 {
		writeError(h.Logger, w, http.StatusBadRequest, "waypoints must contain at least two points")
		return
	}

	waypoints := make([]domain.Coordinates, 0, len(req.Waypoints))
	for _, wp := range req.Waypoints {
		waypoints = append(waypoints, domain.Coordinates{Lat: wp.Lat, Lon: wp.Lon})
	}

	res, err := h.Engine.LiveRoute(r.Context(), waypoints)
	if err != nil {
		var pe *ports.ProviderError
		if errors.As(err, &pe) {
			writeError(h.Logger, w, http.StatusBadGateway, "routing provider unavailable")
			return
		}
		h.Logger.Error("live route failed", zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := dto.RouteLiveResponse{
		Legs:                 make([]dto.LegResponse, 0, len(res.Legs)),
		TotalDistanceMeters:  res.DistanceMeters,
		TotalDurationSeconds: res.DurationSeconds,
	}
	for _, leg := range res.Legs {
		out.Legs = append(out.Legs, dto.LegResponse{
			DistanceMeters:  leg.DistanceMeters,
			DurationSeconds: leg.DurationSeconds,
		})
	}
	writeJSON(h.Logger, w, http.StatusOK, out)
}
