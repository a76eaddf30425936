// README: Dispatch coordinator; loads context, evaluates rules, persists the outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lastmile/internal/modules/audit"
	"lastmile/internal/modules/fleet"
	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

// FleetDirectory loads dispatch context records. *fleet.Store satisfies it.
type FleetDirectory interface {
	GetDriver(ctx context.Context, orgID, driverID types.ID) (*fleet.Driver, error)
	GetVehicle(ctx context.Context, orgID, vehicleID types.ID) (*fleet.Vehicle, error)
	GetStop(ctx context.Context, orgID, stopID types.ID) (*fleet.Stop, error)
}

// PlanDirectory exposes the plan-side reads and the dispatched
// transition. *planner.Store satisfies it.
type PlanDirectory interface {
	GetPlan(ctx context.Context, scope planner.PlanScope, planID types.ID) (*planner.RoutePlan, error)
	ListRouteStops(ctx context.Context, planID types.ID) ([]*planner.RouteStop, error)
	MarkPlanDispatched(ctx context.Context, planID types.ID) error
}

type DispatchStore interface {
	Create(ctx context.Context, d *Dispatch) error
}

type Coordinator struct {
	engine *Engine
	fleet  FleetDirectory
	plans  PlanDirectory
	store  DispatchStore
	audit  audit.Recorder
	log    *slog.Logger
	now    func() time.Time
}

func NewCoordinator(engine *Engine, fl FleetDirectory, plans PlanDirectory, store DispatchStore, rec audit.Recorder, log *slog.Logger) *Coordinator {
	return &Coordinator{
		engine: engine,
		fleet:  fl,
		plans:  plans,
		store:  store,
		audit:  rec,
		log:    log,
		now:    time.Now,
	}
}

type RouteCommand struct {
	OwnerUserID    types.ID
	OrganizationID types.ID
	RoutePlanID    types.ID
	DriverID       types.ID
	VehicleID      *types.ID
}

type StopCommand struct {
	OwnerUserID    types.ID
	OrganizationID types.ID
	StopID         types.ID
	DriverID       types.ID
	VehicleID      *types.ID
}

type Result struct {
	DispatchID types.ID `json:"dispatchId"`
	Status     string   `json:"status"`
	Decision   Decision `json:"decision"`
}

// DispatchRoute admits or rejects a driver/vehicle assignment to a whole
// route plan. The decision is audited regardless of outcome.
func (c *Coordinator) DispatchRoute(ctx context.Context, cmd RouteCommand) (*Result, error) {
	var (
		plan       *planner.RoutePlan
		routeStops []*planner.RouteStop
		driver     *fleet.Driver
		vehicle    *fleet.Vehicle
	)

	scope := planner.PlanScope{OwnerUserID: cmd.OwnerUserID}
	if cmd.OrganizationID != "" {
		scope.OrganizationID = &cmd.OrganizationID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		plan, err = c.plans.GetPlan(gctx, scope, cmd.RoutePlanID)
		return err
	})
	g.Go(func() (err error) {
		routeStops, err = c.plans.ListRouteStops(gctx, cmd.RoutePlanID)
		return err
	})
	g.Go(func() (err error) {
		driver, err = c.fleet.GetDriver(gctx, cmd.OrganizationID, cmd.DriverID)
		return err
	})
	if cmd.VehicleID != nil {
		g.Go(func() (err error) {
			vehicle, err = c.fleet.GetVehicle(gctx, cmd.OrganizationID, *cmd.VehicleID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	skills, err := c.aggregateSkills(ctx, cmd.OrganizationID, routeStops)
	if err != nil {
		return nil, err
	}

	decision := c.engine.Evaluate(RuleContext{
		Type:           TypeRoute,
		Now:            c.now(),
		Driver:         driver,
		Vehicle:        vehicle,
		RouteStopCount: len(routeStops),
		RequiredSkills: skills,
	})

	if !decision.Accepted {
		c.recordDecision(ctx, cmd.OwnerUserID, TypeRoute, "route_plan", cmd.RoutePlanID, cmd, decision)
		return nil, &RejectedError{Reasons: decision.Reasons}
	}

	d := &Dispatch{
		ID:             types.NewID(),
		OwnerUserID:    cmd.OwnerUserID,
		OrganizationID: cmd.OrganizationID,
		Type:           TypeRoute,
		RoutePlanID:    &cmd.RoutePlanID,
		DriverID:       cmd.DriverID,
		VehicleID:      cmd.VehicleID,
	}
	if err := c.store.Create(ctx, d); err != nil {
		return nil, err
	}
	c.recordDecision(ctx, cmd.OwnerUserID, TypeRoute, "dispatch", d.ID, cmd, decision)
	if err := c.plans.MarkPlanDispatched(ctx, cmd.RoutePlanID); err != nil {
		return nil, err
	}
	c.log.Info("route dispatch assigned",
		"routePlanId", cmd.RoutePlanID, "driverId", cmd.DriverID, "planStatus", plan.Status)
	return &Result{DispatchID: d.ID, Status: "assigned", Decision: decision}, nil
}

// DispatchStop admits or rejects a driver/vehicle assignment to a single
// stop.
func (c *Coordinator) DispatchStop(ctx context.Context, cmd StopCommand) (*Result, error) {
	var (
		stop    *fleet.Stop
		driver  *fleet.Driver
		vehicle *fleet.Vehicle
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stop, err = c.fleet.GetStop(gctx, cmd.OrganizationID, cmd.StopID)
		return err
	})
	g.Go(func() (err error) {
		driver, err = c.fleet.GetDriver(gctx, cmd.OrganizationID, cmd.DriverID)
		return err
	})
	if cmd.VehicleID != nil {
		g.Go(func() (err error) {
			vehicle, err = c.fleet.GetVehicle(gctx, cmd.OrganizationID, *cmd.VehicleID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decision := c.engine.Evaluate(RuleContext{
		Type:           TypeStop,
		Now:            c.now(),
		Driver:         driver,
		Vehicle:        vehicle,
		RequiredSkills: stop.RequiredSkills(),
		StopLocation:   &stop.Location,
	})

	if !decision.Accepted {
		c.recordDecision(ctx, cmd.OwnerUserID, TypeStop, "stop", cmd.StopID, cmd, decision)
		return nil, &RejectedError{Reasons: decision.Reasons}
	}

	d := &Dispatch{
		ID:             types.NewID(),
		OwnerUserID:    cmd.OwnerUserID,
		OrganizationID: cmd.OrganizationID,
		Type:           TypeStop,
		StopID:         &cmd.StopID,
		DriverID:       cmd.DriverID,
		VehicleID:      cmd.VehicleID,
	}
	if err := c.store.Create(ctx, d); err != nil {
		return nil, err
	}
	c.recordDecision(ctx, cmd.OwnerUserID, TypeStop, "dispatch", d.ID, cmd, decision)
	c.log.Info("stop dispatch assigned", "stopId", cmd.StopID, "driverId", cmd.DriverID)
	return &Result{DispatchID: d.ID, Status: "assigned", Decision: decision}, nil
}

func (c *Coordinator) aggregateSkills(ctx context.Context, orgID types.ID, routeStops []*planner.RouteStop) ([]string, error) {
	seen := make(map[string]bool)
	var skills []string
	for _, rs := range routeStops {
		if rs.StopID == nil {
			continue
		}
		stop, err := c.fleet.GetStop(ctx, orgID, *rs.StopID)
		if err != nil {
			if errors.Is(err, fleet.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, s := range stop.RequiredSkills() {
			if !seen[s] {
				seen[s] = true
				skills = append(skills, s)
			}
		}
	}
	return skills, nil
}

func (c *Coordinator) recordDecision(ctx context.Context, actor types.ID, typ Type, entityType string, entityID types.ID, cmd any, decision Decision) {
	outcome := "rejected"
	if decision.Accepted {
		outcome = "assigned"
	}
	data, _ := json.Marshal(map[string]any{
		"decision": decision,
		"command":  cmd,
	})
	err := c.audit.Append(ctx, audit.Event{
		EventType:  "dispatch." + string(typ) + "." + outcome,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    &actor,
		Data:       data,
	})
	if err != nil {
		c.log.Error("audit append failed", "entityId", entityID, "error", err)
	}
}
