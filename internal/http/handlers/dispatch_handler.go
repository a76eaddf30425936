// README: Dispatch admission handlers for route and stop assignments.
package handlers

import (
	"encoding/json"
	"net/http"

	"lastmile/internal/modules/dispatch"
	"lastmile/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Coordinator
}

func NewDispatchHandler(coord *dispatch.Coordinator) *DispatchHandler {
	return &DispatchHandler{dispatch: coord}
}

type routeDispatchReq struct {
	RoutePlanID string  `json:"routePlanId"`
	DriverID    string  `json:"driverId"`
	VehicleID   *string `json:"vehicleId"`
}

func (h *DispatchHandler) Route(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req routeDispatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RoutePlanID == "" || req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "routePlanId and driverId are required")
		return
	}
	result, err := h.dispatch.DispatchRoute(r.Context(), dispatch.RouteCommand{
		OwnerUserID:    user,
		OrganizationID: orgOrEmpty(org),
		RoutePlanID:    types.ID(req.RoutePlanID),
		DriverID:       types.ID(req.DriverID),
		VehicleID:      optionalID(req.VehicleID),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type stopDispatchReq struct {
	StopID    string  `json:"stopId"`
	DriverID  string  `json:"driverId"`
	VehicleID *string `json:"vehicleId"`
}

func (h *DispatchHandler) Stop(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req stopDispatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StopID == "" || req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "stopId and driverId are required")
		return
	}
	result, err := h.dispatch.DispatchStop(r.Context(), dispatch.StopCommand{
		OwnerUserID:    user,
		OrganizationID: orgOrEmpty(org),
		StopID:         types.ID(req.StopID),
		DriverID:       types.ID(req.DriverID),
		VehicleID:      optionalID(req.VehicleID),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func optionalID(v *string) *types.ID {
	if v == nil || *v == "" {
		return nil
	}
	id := types.ID(*v)
	return &id
}
