// README: Plan-level flows: driver assignment, stop reordering, trip execution updates.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lastmile/internal/modules/audit"
	"lastmile/internal/types"
)

// reorderEtaSpacing is the synthetic gap applied when stops are manually
// resequenced; the solver's timings no longer apply.
const reorderEtaSpacing = 5 * time.Minute

// PlanScope bounds reads to the caller's organization when one is
// present; a caller without an organization sees only their own plans.
type PlanScope struct {
	OwnerUserID    types.ID
	OrganizationID *types.ID
}

// PlanFilter narrows plan listings. Zero values match everything.
type PlanFilter struct {
	PlanDate string
	Status   PlanStatus
}

// PlanStore is the persistence surface. *Store satisfies it; tests
// substitute in-memory fakes.
type PlanStore interface {
	CreateArtifacts(ctx context.Context, bundle *ArtifactBundle) error
	GetPlan(ctx context.Context, scope PlanScope, planID types.ID) (*RoutePlan, error)
	ListPlans(ctx context.Context, scope PlanScope, f PlanFilter) ([]*RoutePlan, error)
	MarkPlanDispatched(ctx context.Context, planID types.ID) error
	ListRouteStops(ctx context.Context, planID types.ID) ([]*RouteStop, error)
	UpdateRouteStopOrders(ctx context.Context, planID types.ID, stops []*RouteStop) error
	FindTripByPlan(ctx context.Context, planID types.ID) (*Trip, error)
	CreateTrip(ctx context.Context, t *Trip) error
	UpdateTripAssignment(ctx context.Context, tripID, driverID types.ID, vehicleID *types.ID) error
	ListTripStops(ctx context.Context, tripID types.ID) ([]*TripStop, error)
	GetTripStop(ctx context.Context, tripStopID types.ID) (*TripStop, error)
	UpdateTripStopStatus(ctx context.Context, tripStopID types.ID, from, to TripStopStatus, ts *TripStop) (bool, error)
}

// DispatchWriter records the dispatch row a driver assignment produces.
// The dispatch store satisfies it; keeping the interface here avoids a
// package cycle with the coordinator, which reads plans.
type DispatchWriter interface {
	RecordRouteAssignment(ctx context.Context, ownerID types.ID, orgID *types.ID, planID, driverID types.ID, vehicleID *types.ID) (types.ID, error)
}

type Service struct {
	store      PlanStore
	dispatches DispatchWriter
	audit      audit.Recorder
	log        *slog.Logger
	now        func() time.Time
}

func NewService(store PlanStore, dispatches DispatchWriter, rec audit.Recorder, log *slog.Logger) *Service {
	return &Service{store: store, dispatches: dispatches, audit: rec, log: log, now: time.Now}
}

func (s *Service) GetPlan(ctx context.Context, scope PlanScope, planID types.ID) (*RoutePlan, error) {
	return s.store.GetPlan(ctx, scope, planID)
}

func (s *Service) ListPlans(ctx context.Context, scope PlanScope, f PlanFilter) ([]*RoutePlan, error) {
	return s.store.ListPlans(ctx, scope, f)
}

func (s *Service) ListRouteStops(ctx context.Context, scope PlanScope, planID types.ID) ([]*RouteStop, error) {
	if _, err := s.store.GetPlan(ctx, scope, planID); err != nil {
		return nil, err
	}
	return s.store.ListRouteStops(ctx, planID)
}

func (s *Service) ListTripStops(ctx context.Context, tripID types.ID) ([]*TripStop, error) {
	return s.store.ListTripStops(ctx, tripID)
}

type AssignDriverCommand struct {
	OwnerUserID    types.ID
	OrganizationID *types.ID
	RoutePlanID    types.ID
	DriverID       types.ID
	VehicleID      *types.ID
}

// AssignDriver attaches a driver to the plan's trip, creating the trip
// when artifact construction could not resolve one, and moves the plan
// to dispatched.
func (s *Service) AssignDriver(ctx context.Context, cmd AssignDriverCommand) (*Trip, error) {
	scope := PlanScope{OwnerUserID: cmd.OwnerUserID, OrganizationID: cmd.OrganizationID}
	plan, err := s.store.GetPlan(ctx, scope, cmd.RoutePlanID)
	if err != nil {
		return nil, err
	}

	trip, err := s.store.FindTripByPlan(ctx, cmd.RoutePlanID)
	switch {
	case errors.Is(err, ErrNotFound):
		trip = &Trip{
			ID:             types.NewID(),
			OwnerUserID:    plan.OwnerUserID,
			OrganizationID: plan.OrganizationID,
			RoutePlanID:    &plan.ID,
			DriverID:       &cmd.DriverID,
			VehicleID:      cmd.VehicleID,
			Status:         TripPlanned,
			TripDate:       plan.PlanDate,
		}
		if err := s.store.CreateTrip(ctx, trip); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.store.UpdateTripAssignment(ctx, trip.ID, cmd.DriverID, cmd.VehicleID); err != nil {
			return nil, err
		}
		trip.DriverID = &cmd.DriverID
		trip.VehicleID = cmd.VehicleID
	}

	dispatchID, err := s.dispatches.RecordRouteAssignment(ctx, plan.OwnerUserID, plan.OrganizationID, cmd.RoutePlanID, cmd.DriverID, cmd.VehicleID)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkPlanDispatched(ctx, cmd.RoutePlanID); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, "plan.driver.assigned", "route_plan", cmd.RoutePlanID, &cmd.OwnerUserID,
		map[string]any{"driverId": cmd.DriverID, "tripId": trip.ID, "dispatchId": dispatchID})
	s.log.Info("driver assigned to plan", "routePlanId", cmd.RoutePlanID, "driverId", cmd.DriverID)
	return trip, nil
}

// ReorderStops applies a manual resequencing. The submitted ids must be
// exactly the plan's stops; orders are rewritten 1..N and ETAs respaced
// from now, with the first stop due immediately.
func (s *Service) ReorderStops(ctx context.Context, scope PlanScope, planID types.ID, orderedIDs []types.ID) ([]*RouteStop, error) {
	if _, err := s.store.GetPlan(ctx, scope, planID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListRouteStops(ctx, planID)
	if err != nil {
		return nil, err
	}

	byID := make(map[types.ID]*RouteStop, len(existing))
	for _, rs := range existing {
		byID[rs.ID] = rs
	}
	if len(orderedIDs) != len(existing) {
		return nil, fmt.Errorf("%w: expected %d stop ids, got %d", ErrValidation, len(existing), len(orderedIDs))
	}

	base := s.now()
	reordered := make([]*RouteStop, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		rs, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: stop %s does not belong to plan", ErrValidation, id)
		}
		delete(byID, id)
		rs.StopOrder = i + 1
		eta := base.Add(time.Duration(i) * reorderEtaSpacing)
		rs.EtaAt = &eta
		reordered = append(reordered, rs)
	}

	if err := s.store.UpdateRouteStopOrders(ctx, planID, reordered); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, "plan.stops.reordered", "route_plan", planID, &scope.OwnerUserID,
		map[string]any{"stopCount": len(reordered)})
	return reordered, nil
}

type TripStopUpdateCommand struct {
	TripStopID    types.ID
	To            TripStopStatus
	FailureReason *string
	ActorID       *types.ID
}

// UpdateTripStopStatus advances one stop through the execution flow.
// Illegal transitions and lost races both surface as ErrConflict.
func (s *Service) UpdateTripStopStatus(ctx context.Context, cmd TripStopUpdateCommand) (*TripStop, error) {
	ts, err := s.store.GetTripStop(ctx, cmd.TripStopID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionTripStop(ts.Status, cmd.To) {
		return nil, fmt.Errorf("%w: cannot move trip stop from %s to %s", ErrConflict, ts.Status, cmd.To)
	}

	from := ts.Status
	now := s.now()
	switch cmd.To {
	case TripStopArrived:
		ts.ArrivedAt = &now
	case TripStopCompleted:
		ts.CompletedAt = &now
	case TripStopFailed:
		ts.FailureReason = cmd.FailureReason
	}

	ok, err := s.store.UpdateTripStopStatus(ctx, cmd.TripStopID, from, cmd.To, ts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: trip stop changed concurrently", ErrConflict)
	}
	ts.Status = cmd.To

	s.appendEvent(ctx, "trip.stop."+string(cmd.To), "trip_stop", cmd.TripStopID, cmd.ActorID,
		map[string]any{"from": from, "to": cmd.To})
	return ts, nil
}

func (s *Service) appendEvent(ctx context.Context, eventType, entityType string, entityID types.ID, actor *types.ID, data map[string]any) {
	raw, _ := json.Marshal(data)
	err := s.audit.Append(ctx, audit.Event{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor,
		Data:       raw,
	})
	if err != nil {
		s.log.Error("audit append failed", "entityId", entityID, "error", err)
	}
}
