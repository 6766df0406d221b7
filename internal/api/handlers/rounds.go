package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/api/dto"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// RoundHandler exposes the recompute and optimize operations for one round.
type RoundHandler struct {
	Repo   ports.RoundRepository
	Engine *services.Engine
	Logger *zap.Logger
}

// Recompute refreshes a round's legs, ETAs and totals from the routing
// gateway and persists the derived values.
func (h *RoundHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.Logger, w, r, http.MethodPost) {
		return
	}

	var req dto.RecomputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, err.Error())
		return
	}

	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, "round_id must be a valid uuid")
		return
	}

	round, err := h.Repo.GetRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, ports.ErrRoundNotFound) {
			writeError(h.Logger, w, http.StatusNotFound, "round not found")
			return
		}
		h.Logger.Error("load round failed", zap.String("round_id", req.RoundID), zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	stats, err := h.Engine.RecomputeRoundStats(r.Context(), round)
	if err != nil {
		h.Logger.Error("recompute failed", zap.String("round_id", req.RoundID), zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.Repo.SaveRoundDerived(r.Context(), round); err != nil {
		h.Logger.Error("persist derived values failed", zap.String("round_id", req.RoundID), zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(h.Logger, w, http.StatusOK, statsResponse(round, stats))
}

// Optimize proposes an improved stop order for a round. With apply=true the
// proposal (and its recomputed stats) is persisted.
func (h *RoundHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.Logger, w, r, http.MethodPost) {
		return
	}

	var req dto.OptimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, err.Error())
		return
	}

	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, "round_id must be a valid uuid")
		return
	}

	round, err := h.Repo.GetRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, ports.ErrRoundNotFound) {
			writeError(h.Logger, w, http.StatusNotFound, "round not found")
			return
		}
		h.Logger.Error("load round failed", zap.String("round_id", req.RoundID), zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	res, err := h.Engine.OptimizeRound(r.Context(), round)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoundNotEditable):
			writeError(h.Logger, w, http.StatusConflict, "round is not editable")
		case errors.Is(err, services.ErrNotEnoughPoints):
			writeError(h.Logger, w, http.StatusUnprocessableEntity, "not enough geocoded stops to optimize")
		case errors.Is(err, services.ErrOptimizationUnavailable):
			writeError(h.Logger, w, http.StatusBadGateway, "routing providers unavailable")
		default:
			h.Logger.Error("optimize failed", zap.String("round_id", req.RoundID), zap.Error(err))
			writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	applied := false
	if req.Apply {
		if err := services.ApplyOrder(round, res.Order); err != nil {
			h.Logger.Error("apply order failed", zap.String("round_id", req.RoundID), zap.Error(err))
			writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		services.ApplyStats(round, res.Stats)
		if err := h.Repo.SaveRoundDerived(r.Context(), round); err != nil {
			h.Logger.Error("persist order failed", zap.String("round_id", req.RoundID), zap.Error(err))
			writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		applied = true
	}

	order := make([]string, 0, len(res.Order))
	for _, id := range res.Order {
		order = append(order, id.String())
	}

	writeJSON(h.Logger, w, http.StatusOK, dto.OptimizeResponse{
		RoundID:             round.RoundID.String(),
		Order:               order,
		DistanceSavedMeters: res.DistanceSavedMeters,
		TimeSavedSeconds:    res.TimeSavedSeconds,
		DistanceOnly:        res.DistanceOnly,
		Applied:             applied,
		Stats:               statsResponse(round, res.Stats),
	})
}

// statsResponse flattens engine stats into the wire shape. ETAs follow the
// round's stop order.
func statsResponse(round *domain.Round, stats *services.RoundStats) dto.RoundStatsResponse {
	res := dto.RoundStatsResponse{
		RoundID:              round.RoundID.String(),
		Legs:                 make([]dto.LegResponse, 0, len(stats.Legs)),
		ETAs:                 make([]dto.StopETAResponse, 0, len(stats.ETAs)),
		TotalDistanceMeters:  stats.TotalDistanceMeters,
		TotalDurationSeconds: stats.TotalDurationSeconds,
		EstimatedEndAt:       stats.EstimatedEndAt,
		Degraded:             stats.Degraded,
	}
	for _, leg := range stats.Legs {
		res.Legs = append(res.Legs, dto.LegResponse{
			DistanceMeters:  leg.DistanceMeters,
			DurationSeconds: leg.DurationSeconds,
		})
	}
	for _, stop := range round.Stops {
		eta, ok := stats.ETAs[stop.StopID]
		if !ok {
			continue
		}
		res.ETAs = append(res.ETAs, dto.StopETAResponse{
			StopID:           stop.StopID.String(),
			EstimatedArrival: eta,
		})
	}
	return res
}
