package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-dispatch-service/internal/api/dto"
	"route-dispatch-service/internal/domain"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// DispatchHandler runs the auto-dispatch allocator over one day's rounds.
type DispatchHandler struct {
	Repo   ports.RoundRepository
	Engine *services.Engine
	Logger *zap.Logger
}

// Dispatch assigns a batch of unscheduled stops to that day's editable
// rounds and persists every round that received at least one stop.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.Logger, w, r, http.MethodPost) {
		return
	}

	var req dto.DispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, "date must be formatted 2006-01-02")
		return
	}
	if len(req.Stops) == 0 {
		writeError(h.Logger, w, http.StatusBadRequest, "stops is required")
		return
	}

	pending, err := toPendingStops(req.Stops)
	if err != nil {
		writeError(h.Logger, w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Engine.DispatchPendingStops(r.Context(), date, pending)
	if err != nil {
		h.Logger.Error("dispatch failed", zap.String("date", req.Date), zap.Error(err))
		writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Persist derived values first: a mid-sequence insertion shifts the
	// order indices of the surviving rows, and those must be rewritten
	// before the new rows claim the freed slots or the unique
	// (round_id, order_index) constraint rejects the insert.
	assigned := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, a := range res.Dispatched {
		if assigned[a.RoundID] == nil {
			assigned[a.RoundID] = make(map[uuid.UUID]bool)
		}
		assigned[a.RoundID][a.Stop.StopID] = true
	}
	for _, round := range res.Updated {
		var inserted []*domain.Stop
		for _, stop := range round.Stops {
			if assigned[round.RoundID][stop.StopID] {
				inserted = append(inserted, stop)
			}
		}
		if err := h.Repo.SaveRoundDerived(r.Context(), round); err != nil {
			h.Logger.Error("persist derived values failed",
				zap.String("round_id", round.RoundID.String()), zap.Error(err))
			writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err := h.Repo.InsertStops(r.Context(), round.RoundID, inserted); err != nil {
			h.Logger.Error("persist dispatched stops failed",
				zap.String("round_id", round.RoundID.String()), zap.Error(err))
			writeError(h.Logger, w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	out := dto.DispatchResponse{
		Dispatched: make([]dto.AssignmentResponse, 0, len(res.Dispatched)),
		Failed:     make([]dto.FailureResponse, 0, len(res.Failed)),
		Rounds:     make([]dto.RoundStatsResponse, 0, len(res.Updated)),
	}
	for _, a := range res.Dispatched {
		out.Dispatched = append(out.Dispatched, dto.AssignmentResponse{
			StopID:   a.Stop.StopID.String(),
			RoundID:  a.RoundID.String(),
			Position: a.Position,
			Reason:   a.Reason,
		})
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, dto.FailureResponse{
			StopID: f.Stop.StopID.String(),
			Reason: f.Reason,
		})
	}
	for _, round := range res.Updated {
		if stats := res.Stats[round.RoundID]; stats != nil {
			out.Rounds = append(out.Rounds, statsResponse(round, stats))
		}
	}

	writeJSON(h.Logger, w, http.StatusOK, out)
}

func toPendingStops(reqs []dto.PendingStopRequest) ([]*domain.PendingStop, error) {
	pending := make([]*domain.PendingStop, 0, len(reqs))
	for i, req := range reqs {
		stop := &domain.PendingStop{Name: req.Name}

		// IDs are fixed before dispatch so committed stops can be matched
		// back to their assignments.
		stop.StopID = uuid.New()
		if req.StopID != "" {
			id, err := uuid.Parse(req.StopID)
			if err != nil {
				return nil, fmt.Errorf("stops[%d]: stop_id must be a valid uuid", i)
			}
			stop.StopID = id
		}

		kind, err := parseStopKind(req.Kind)
		if err != nil {
			return nil, fmt.Errorf("stops[%d]: %w", i, err)
		}
		stop.Kind = kind

		if req.Location != nil {
			stop.Location = &domain.Coordinates{Lat: req.Location.Lat, Lon: req.Location.Lon}
		}
		if req.Window != nil {
			w := domain.TimeWindow{Start: req.Window.Start, End: req.Window.End}
			if err := w.Validate(); err != nil {
				return nil, fmt.Errorf("stops[%d]: %w", i, err)
			}
			stop.Window = &w
		}

		for _, line := range req.Products {
			p := domain.Product{
				Name:              line.Name,
				InstallDuration:   time.Duration(line.InstallDurationSeconds) * time.Second,
				UninstallDuration: time.Duration(line.UninstallDurationSeconds) * time.Second,
			}
			if line.ProductID != "" {
				id, err := uuid.Parse(line.ProductID)
				if err != nil {
					return nil, fmt.Errorf("stops[%d]: product_id must be a valid uuid", i)
				}
				p.ProductID = id
			}
			qty := line.Quantity
			if qty <= 0 {
				qty = 1
			}
			stop.Products = append(stop.Products, domain.ProductLine{Product: p, Quantity: qty})
		}

		for _, opt := range req.Options {
			o := domain.Option{
				Name:          opt.Name,
				ExtraDuration: time.Duration(opt.ExtraDurationSeconds) * time.Second,
			}
			if opt.OptionID != "" {
				id, err := uuid.Parse(opt.OptionID)
				if err != nil {
					return nil, fmt.Errorf("stops[%d]: option_id must be a valid uuid", i)
				}
				o.OptionID = id
			}
			stop.Options = append(stop.Options, o)
		}

		pending = append(pending, stop)
	}
	return pending, nil
}

func parseStopKind(s string) (domain.StopKind, error) {
	switch domain.StopKind(s) {
	case domain.StopKindDelivery, domain.StopKindPickup, domain.StopKindDeliveryAndPickup:
		return domain.StopKind(s), nil
	default:
		return "", fmt.Errorf("kind must be one of delivery, pickup, delivery_and_pickup")
	}
}
