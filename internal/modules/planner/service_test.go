package planner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/modules/audit"
	"lastmile/internal/types"
)

type fakePlanStore struct {
	plans      map[types.ID]*RoutePlan
	routeStops map[types.ID][]*RouteStop
	trips      map[types.ID]*Trip
	tripStops  map[types.ID]*TripStop
	bundles    []*ArtifactBundle
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		plans:      make(map[types.ID]*RoutePlan),
		routeStops: make(map[types.ID][]*RouteStop),
		trips:      make(map[types.ID]*Trip),
		tripStops:  make(map[types.ID]*TripStop),
	}
}

func (s *fakePlanStore) CreateArtifacts(ctx context.Context, bundle *ArtifactBundle) error {
	s.bundles = append(s.bundles, bundle)
	s.plans[bundle.Plan.ID] = &bundle.Plan
	for i := range bundle.Trips {
		s.trips[bundle.Trips[i].ID] = &bundle.Trips[i]
	}
	for i := range bundle.RouteStops {
		rs := &bundle.RouteStops[i]
		s.routeStops[rs.RoutePlanID] = append(s.routeStops[rs.RoutePlanID], rs)
	}
	for i := range bundle.TripStops {
		s.tripStops[bundle.TripStops[i].ID] = &bundle.TripStops[i]
	}
	return nil
}

func planInScope(p *RoutePlan, scope PlanScope) bool {
	if scope.OrganizationID != nil {
		return p.OrganizationID != nil && *p.OrganizationID == *scope.OrganizationID
	}
	return p.OwnerUserID == scope.OwnerUserID
}

func (s *fakePlanStore) GetPlan(ctx context.Context, scope PlanScope, planID types.ID) (*RoutePlan, error) {
	p, ok := s.plans[planID]
	if !ok || !planInScope(p, scope) {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *fakePlanStore) ListPlans(ctx context.Context, scope PlanScope, f PlanFilter) ([]*RoutePlan, error) {
	var out []*RoutePlan
	for _, p := range s.plans {
		if !planInScope(p, scope) {
			continue
		}
		if f.PlanDate != "" && p.PlanDate != f.PlanDate {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakePlanStore) MarkPlanDispatched(ctx context.Context, planID types.ID) error {
	p, ok := s.plans[planID]
	if !ok {
		return ErrNotFound
	}
	p.Status = PlanDispatched
	return nil
}

func (s *fakePlanStore) ListRouteStops(ctx context.Context, planID types.ID) ([]*RouteStop, error) {
	return s.routeStops[planID], nil
}

func (s *fakePlanStore) UpdateRouteStopOrders(ctx context.Context, planID types.ID, stops []*RouteStop) error {
	return nil
}

func (s *fakePlanStore) FindTripByPlan(ctx context.Context, planID types.ID) (*Trip, error) {
	for _, t := range s.trips {
		if t.RoutePlanID != nil && *t.RoutePlanID == planID {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakePlanStore) CreateTrip(ctx context.Context, t *Trip) error {
	s.trips[t.ID] = t
	return nil
}

func (s *fakePlanStore) UpdateTripAssignment(ctx context.Context, tripID, driverID types.ID, vehicleID *types.ID) error {
	t, ok := s.trips[tripID]
	if !ok {
		return ErrNotFound
	}
	t.DriverID = &driverID
	t.VehicleID = vehicleID
	return nil
}

func (s *fakePlanStore) ListTripStops(ctx context.Context, tripID types.ID) ([]*TripStop, error) {
	var out []*TripStop
	for _, ts := range s.tripStops {
		if ts.TripID == tripID {
			out = append(out, ts)
		}
	}
	return out, nil
}

func (s *fakePlanStore) GetTripStop(ctx context.Context, tripStopID types.ID) (*TripStop, error) {
	ts, ok := s.tripStops[tripStopID]
	if !ok {
		return nil, ErrNotFound
	}
	return ts, nil
}

func (s *fakePlanStore) UpdateTripStopStatus(ctx context.Context, tripStopID types.ID, from, to TripStopStatus, ts *TripStop) (bool, error) {
	cur, ok := s.tripStops[tripStopID]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = to
	cur.ArrivedAt = ts.ArrivedAt
	cur.CompletedAt = ts.CompletedAt
	cur.FailureReason = ts.FailureReason
	return true, nil
}

type fakeDispatchWriter struct {
	calls int
}

func (f *fakeDispatchWriter) RecordRouteAssignment(ctx context.Context, ownerID types.ID, orgID *types.ID, planID, driverID types.ID, vehicleID *types.ID) (types.ID, error) {
	f.calls++
	return types.NewID(), nil
}

type fakeRecorder struct {
	events []audit.Event
}

func (f *fakeRecorder) Append(ctx context.Context, e audit.Event) error {
	f.events = append(f.events, e)
	return nil
}

type serviceFixture struct {
	svc        *Service
	store      *fakePlanStore
	dispatches *fakeDispatchWriter
	audit      *fakeRecorder
	owner      types.ID
	plan       *RoutePlan
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newFakePlanStore()
	dispatches := &fakeDispatchWriter{}
	rec := &fakeRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, dispatches, rec, log)

	owner := types.NewID()
	plan := &RoutePlan{ID: types.NewID(), OwnerUserID: owner, Status: PlanOptimized, PlanDate: "2026-09-01"}
	store.plans[plan.ID] = plan

	return &serviceFixture{svc: svc, store: store, dispatches: dispatches, audit: rec, owner: owner, plan: plan}
}

func (fx *serviceFixture) scope() PlanScope {
	return PlanScope{OwnerUserID: fx.owner}
}

func (fx *serviceFixture) seedRouteStops(n int) []*RouteStop {
	stops := make([]*RouteStop, n)
	for i := range stops {
		stops[i] = &RouteStop{ID: types.NewID(), RoutePlanID: fx.plan.ID, StopOrder: i + 1}
	}
	fx.store.routeStops[fx.plan.ID] = stops
	return stops
}

func TestAssignDriverCreatesTripWhenMissing(t *testing.T) {
	fx := newServiceFixture(t)
	driverID := types.NewID()

	trip, err := fx.svc.AssignDriver(context.Background(), AssignDriverCommand{
		OwnerUserID: fx.owner,
		RoutePlanID: fx.plan.ID,
		DriverID:    driverID,
	})
	require.NoError(t, err)

	require.NotNil(t, trip.DriverID)
	assert.Equal(t, driverID, *trip.DriverID)
	assert.Equal(t, fx.plan.PlanDate, trip.TripDate)
	assert.Equal(t, PlanDispatched, fx.plan.Status)
	assert.Equal(t, 1, fx.dispatches.calls)

	require.Len(t, fx.audit.events, 1)
	assert.Equal(t, "plan.driver.assigned", fx.audit.events[0].EventType)
}

func TestAssignDriverReusesExistingTrip(t *testing.T) {
	fx := newServiceFixture(t)
	existing := &Trip{ID: types.NewID(), OwnerUserID: fx.owner, RoutePlanID: &fx.plan.ID, Status: TripPlanned}
	fx.store.trips[existing.ID] = existing

	driverID := types.NewID()
	trip, err := fx.svc.AssignDriver(context.Background(), AssignDriverCommand{
		OwnerUserID: fx.owner,
		RoutePlanID: fx.plan.ID,
		DriverID:    driverID,
	})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, trip.ID)
	require.NotNil(t, trip.DriverID)
	assert.Equal(t, driverID, *trip.DriverID)
	assert.Len(t, fx.store.trips, 1)
}

func TestAssignDriverUnknownPlan(t *testing.T) {
	fx := newServiceFixture(t)
	_, err := fx.svc.AssignDriver(context.Background(), AssignDriverCommand{
		OwnerUserID: fx.owner,
		RoutePlanID: types.NewID(),
		DriverID:    types.NewID(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, fx.dispatches.calls)
}

// Plans are visible to the whole organization, not only the submitter.
func TestPlanReadsAreOrganizationScoped(t *testing.T) {
	fx := newServiceFixture(t)
	org := types.NewID()
	fx.plan.OrganizationID = &org

	teammate := PlanScope{OwnerUserID: types.NewID(), OrganizationID: &org}
	got, err := fx.svc.GetPlan(context.Background(), teammate, fx.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, fx.plan.ID, got.ID)

	outsider := PlanScope{OwnerUserID: types.NewID()}
	_, err = fx.svc.GetPlan(context.Background(), outsider, fx.plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPlansAppliesFilters(t *testing.T) {
	fx := newServiceFixture(t)
	other := &RoutePlan{ID: types.NewID(), OwnerUserID: fx.owner, Status: PlanFailed, PlanDate: "2026-09-02"}
	fx.store.plans[other.ID] = other

	plans, err := fx.svc.ListPlans(context.Background(), fx.scope(), PlanFilter{PlanDate: "2026-09-01"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, fx.plan.ID, plans[0].ID)

	plans, err = fx.svc.ListPlans(context.Background(), fx.scope(), PlanFilter{Status: PlanFailed})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, other.ID, plans[0].ID)

	plans, err = fx.svc.ListPlans(context.Background(), fx.scope(), PlanFilter{})
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestReorderStopsRenumbersAndSpacesETAs(t *testing.T) {
	fx := newServiceFixture(t)
	stops := fx.seedRouteStops(3)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return base }

	reordered, err := fx.svc.ReorderStops(context.Background(), fx.scope(), fx.plan.ID,
		[]types.ID{stops[2].ID, stops[0].ID, stops[1].ID})
	require.NoError(t, err)

	require.Len(t, reordered, 3)
	assert.Equal(t, stops[2].ID, reordered[0].ID)
	// First stop is due immediately, the rest at 5-minute intervals.
	for i, rs := range reordered {
		assert.Equal(t, i+1, rs.StopOrder)
		require.NotNil(t, rs.EtaAt)
		want := base.Add(time.Duration(i) * 5 * time.Minute)
		assert.True(t, rs.EtaAt.Equal(want))
	}
	assert.True(t, reordered[0].EtaAt.Equal(base))

	require.Len(t, fx.audit.events, 1)
	assert.Equal(t, "plan.stops.reordered", fx.audit.events[0].EventType)
}

func TestReorderStopsRejectsBadSets(t *testing.T) {
	fx := newServiceFixture(t)
	stops := fx.seedRouteStops(2)

	_, err := fx.svc.ReorderStops(context.Background(), fx.scope(), fx.plan.ID, []types.ID{stops[0].ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = fx.svc.ReorderStops(context.Background(), fx.scope(), fx.plan.ID,
		[]types.ID{stops[0].ID, types.NewID()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = fx.svc.ReorderStops(context.Background(), fx.scope(), fx.plan.ID,
		[]types.ID{stops[0].ID, stops[0].ID})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTripStopStatusFlow(t *testing.T) {
	fx := newServiceFixture(t)
	ts := &TripStop{ID: types.NewID(), TripID: types.NewID(), Status: TripStopPending}
	fx.store.tripStops[ts.ID] = ts

	got, err := fx.svc.UpdateTripStopStatus(context.Background(), TripStopUpdateCommand{
		TripStopID: ts.ID,
		To:         TripStopEnroute,
	})
	require.NoError(t, err)
	assert.Equal(t, TripStopEnroute, got.Status)

	got, err = fx.svc.UpdateTripStopStatus(context.Background(), TripStopUpdateCommand{
		TripStopID: ts.ID,
		To:         TripStopArrived,
	})
	require.NoError(t, err)
	assert.NotNil(t, got.ArrivedAt)

	got, err = fx.svc.UpdateTripStopStatus(context.Background(), TripStopUpdateCommand{
		TripStopID: ts.ID,
		To:         TripStopCompleted,
	})
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)

	assert.Len(t, fx.audit.events, 3)
}

func TestUpdateTripStopStatusRejectsIllegalTransition(t *testing.T) {
	fx := newServiceFixture(t)
	ts := &TripStop{ID: types.NewID(), TripID: types.NewID(), Status: TripStopPending}
	fx.store.tripStops[ts.ID] = ts

	_, err := fx.svc.UpdateTripStopStatus(context.Background(), TripStopUpdateCommand{
		TripStopID: ts.ID,
		To:         TripStopCompleted,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, fx.audit.events)
}

func TestUpdateTripStopStatusRecordsFailureReason(t *testing.T) {
	fx := newServiceFixture(t)
	ts := &TripStop{ID: types.NewID(), TripID: types.NewID(), Status: TripStopEnroute}
	fx.store.tripStops[ts.ID] = ts

	reason := "recipient unavailable"
	got, err := fx.svc.UpdateTripStopStatus(context.Background(), TripStopUpdateCommand{
		TripStopID:    ts.ID,
		To:            TripStopFailed,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, reason, *got.FailureReason)
}
