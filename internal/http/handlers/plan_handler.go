// README: Route plan read and mutation handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

type PlanHandler struct {
	plans *planner.Service
}

func NewPlanHandler(svc *planner.Service) *PlanHandler {
	return &PlanHandler{plans: svc}
}

type planView struct {
	ID             types.ID           `json:"id"`
	Status         planner.PlanStatus `json:"status"`
	PlanDate       string             `json:"planDate"`
	SummaryMetrics json.RawMessage    `json:"summaryMetrics,omitempty"`
	Geometry       json.RawMessage    `json:"geometry,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func toPlanView(p *planner.RoutePlan) planView {
	return planView{
		ID:             p.ID,
		Status:         p.Status,
		PlanDate:       p.PlanDate,
		SummaryMetrics: p.SummaryMetrics,
		Geometry:       p.Geometry,
		CreatedAt:      p.CreatedAt,
	}
}

type routeStopView struct {
	ID              types.ID   `json:"id"`
	StopID          *types.ID  `json:"stopId"`
	StopOrder       int        `json:"stopOrder"`
	EtaAt           *time.Time `json:"etaAt"`
	DistanceMeters  *float64   `json:"distanceMeters"`
	DurationSeconds *float64   `json:"durationSeconds"`
}

func toRouteStopViews(stops []*planner.RouteStop) []routeStopView {
	views := make([]routeStopView, 0, len(stops))
	for _, rs := range stops {
		views = append(views, routeStopView{
			ID:              rs.ID,
			StopID:          rs.StopID,
			StopOrder:       rs.StopOrder,
			EtaAt:           rs.EtaAt,
			DistanceMeters:  rs.DistanceMeters,
			DurationSeconds: rs.DurationSeconds,
		})
	}
	return views
}

func planScope(user types.ID, org *types.ID) planner.PlanScope {
	return planner.PlanScope{OwnerUserID: user, OrganizationID: org}
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	filter := planner.PlanFilter{
		PlanDate: r.URL.Query().Get("planDate"),
		Status:   planner.PlanStatus(r.URL.Query().Get("status")),
	}
	plans, err := h.plans.ListPlans(r.Context(), planScope(user, org), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, toPlanView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	plan, err := h.plans.GetPlan(r.Context(), planScope(user, org), types.ID(r.PathValue("id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (h *PlanHandler) Stops(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	stops, err := h.plans.ListRouteStops(r.Context(), planScope(user, org), types.ID(r.PathValue("id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteStopViews(stops))
}

type assignDriverReq struct {
	DriverID  string  `json:"driverId"`
	VehicleID *string `json:"vehicleId"`
}

func (h *PlanHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req assignDriverReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DriverID == "" {
		writeError(w, http.StatusBadRequest, "driverId is required")
		return
	}
	trip, err := h.plans.AssignDriver(r.Context(), planner.AssignDriverCommand{
		OwnerUserID:    user,
		OrganizationID: org,
		RoutePlanID:    types.ID(r.PathValue("id")),
		DriverID:       types.ID(req.DriverID),
		VehicleID:      optionalID(req.VehicleID),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tripId":   trip.ID,
		"driverId": trip.DriverID,
		"status":   trip.Status,
	})
}

type reorderReq struct {
	StopIDs []string `json:"stopIds"`
}

func (h *PlanHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req reorderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ids := make([]types.ID, len(req.StopIDs))
	for i, s := range req.StopIDs {
		ids[i] = types.ID(s)
	}
	stops, err := h.plans.ReorderStops(r.Context(), planScope(user, org), types.ID(r.PathValue("id")), ids)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteStopViews(stops))
}
