// README: Driver-facing trip execution handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

type TripHandler struct {
	plans *planner.Service
}

func NewTripHandler(svc *planner.Service) *TripHandler {
	return &TripHandler{plans: svc}
}

type tripStopView struct {
	ID            types.ID               `json:"id"`
	StopID        *types.ID              `json:"stopId"`
	StopOrder     int                    `json:"stopOrder"`
	Status        planner.TripStopStatus `json:"status"`
	EtaAt         *time.Time             `json:"etaAt"`
	ArrivedAt     *time.Time             `json:"arrivedAt"`
	CompletedAt   *time.Time             `json:"completedAt"`
	FailureReason *string                `json:"failureReason"`
}

func toTripStopView(ts *planner.TripStop) tripStopView {
	return tripStopView{
		ID:            ts.ID,
		StopID:        ts.StopID,
		StopOrder:     ts.StopOrder,
		Status:        ts.Status,
		EtaAt:         ts.EtaAt,
		ArrivedAt:     ts.ArrivedAt,
		CompletedAt:   ts.CompletedAt,
		FailureReason: ts.FailureReason,
	}
}

func (h *TripHandler) Stops(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := requireIdentity(w, r); !ok {
		return
	}
	stops, err := h.plans.ListTripStops(r.Context(), types.ID(r.PathValue("id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]tripStopView, 0, len(stops))
	for _, ts := range stops {
		views = append(views, toTripStopView(ts))
	}
	writeJSON(w, http.StatusOK, views)
}

type tripStopStatusReq struct {
	Status        string  `json:"status"`
	FailureReason *string `json:"failureReason"`
}

func (h *TripHandler) UpdateStopStatus(w http.ResponseWriter, r *http.Request) {
	user, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req tripStopStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	ts, err := h.plans.UpdateTripStopStatus(r.Context(), planner.TripStopUpdateCommand{
		TripStopID:    types.ID(r.PathValue("id")),
		To:            planner.TripStopStatus(req.Status),
		FailureReason: req.FailureReason,
		ActorID:       &user,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripStopView(ts))
}
