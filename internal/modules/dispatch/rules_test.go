package dispatch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/geo"
	"lastmile/internal/modules/fleet"
	"lastmile/internal/types"
)

func testDriver() *fleet.Driver {
	start, end := 28800, 61200
	loc := geo.Location{121.0, 14.0}
	return &fleet.Driver{
		ID:                types.NewID(),
		Name:              "Ana",
		State:             fleet.DriverIdle,
		ShiftStartSeconds: &start,
		ShiftEndSeconds:   &end,
		StartLocation:     &loc,
	}
}

func testVehicle(capacity, skills string) *fleet.Vehicle {
	v := &fleet.Vehicle{ID: types.NewID(), Name: "Van"}
	if capacity != "" {
		v.Capacity = json.RawMessage(capacity)
	}
	if skills != "" {
		v.Skills = json.RawMessage(skills)
	}
	return v
}

func noonUTC() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func passingRouteContext() RuleContext {
	return RuleContext{
		Type:           TypeRoute,
		Now:            noonUTC(),
		Driver:         testDriver(),
		Vehicle:        testVehicle(`{"maxStops":10}`, `["cold"]`),
		RouteStopCount: 3,
		RequiredSkills: []string{"cold"},
	}
}

func TestEvaluateAllRulesPass(t *testing.T) {
	engine := NewEngine(100)
	decision := engine.Evaluate(passingRouteContext())
	assert.True(t, decision.Accepted)
	assert.Empty(t, decision.Reasons)
}

// Flipping any single rule yields exactly that rule's reason.
func TestEvaluateMonotonicity(t *testing.T) {
	engine := NewEngine(100)
	cases := []struct {
		name   string
		mutate func(*RuleContext)
		reason string
	}{
		{
			"outside shift window",
			func(rc *RuleContext) { rc.Now = time.Date(2026, 8, 31, 5, 0, 0, 0, time.UTC) },
			"driver is outside shift window",
		},
		{
			"driver failed",
			func(rc *RuleContext) { rc.Driver.State = fleet.DriverFailed },
			"driver state is failed",
		},
		{
			"over max stops",
			func(rc *RuleContext) { rc.RouteStopCount = 11 },
			"vehicle maxStops 10 is lower than route stops 11",
		},
		{
			"missing skill",
			func(rc *RuleContext) { rc.RequiredSkills = []string{"cold", "fragile"} },
			"vehicle missing required skills: fragile",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := passingRouteContext()
			tc.mutate(&rc)
			decision := engine.Evaluate(rc)
			assert.False(t, decision.Accepted)
			require.Len(t, decision.Reasons, 1)
			assert.Equal(t, tc.reason, decision.Reasons[0])
		})
	}
}

// Required skills reject even when no vehicle is supplied; a missing
// vehicle covers nothing.
func TestSkillsRejectWithoutVehicle(t *testing.T) {
	engine := NewEngine(100)
	near := geo.Location{121.05, 14.05}
	cases := []struct {
		name string
		rc   RuleContext
	}{
		{"stop dispatch", RuleContext{
			Type:           TypeStop,
			Now:            noonUTC(),
			Driver:         testDriver(),
			RequiredSkills: []string{"cold"},
			StopLocation:   &near,
		}},
		{"route dispatch", RuleContext{
			Type:           TypeRoute,
			Now:            noonUTC(),
			Driver:         testDriver(),
			RouteStopCount: 2,
			RequiredSkills: []string{"cold"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := engine.Evaluate(tc.rc)
			assert.False(t, decision.Accepted)
			require.Len(t, decision.Reasons, 1)
			assert.Equal(t, "vehicle missing required skills: cold", decision.Reasons[0])
		})
	}
}

func TestEvaluateReportsAllViolations(t *testing.T) {
	engine := NewEngine(100)
	rc := passingRouteContext()
	rc.Driver.State = fleet.DriverFailed
	rc.RouteStopCount = 11
	decision := engine.Evaluate(rc)
	assert.False(t, decision.Accepted)
	assert.Len(t, decision.Reasons, 2)
}

// Shift bounds are inclusive at both ends.
func TestShiftWindowBoundaries(t *testing.T) {
	engine := NewEngine(100)
	cases := []struct {
		name     string
		now      time.Time
		accepted bool
	}{
		{"at shift start", time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC), true},
		{"at shift end", time.Date(2026, 8, 31, 17, 0, 0, 0, time.UTC), true},
		{"second before start", time.Date(2026, 8, 31, 7, 59, 59, 0, time.UTC), false},
		{"second after end", time.Date(2026, 8, 31, 17, 0, 1, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := passingRouteContext()
			rc.Now = tc.now
			assert.Equal(t, tc.accepted, engine.Evaluate(rc).Accepted)
		})
	}
}

func TestShiftWindowSkippedWhenUnset(t *testing.T) {
	engine := NewEngine(100)
	rc := passingRouteContext()
	rc.Driver.ShiftStartSeconds = nil
	rc.Now = time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	assert.True(t, engine.Evaluate(rc).Accepted)
}

func TestGeographicRejectionUsesDefaultLimit(t *testing.T) {
	engine := NewEngine(100)
	stop := geo.Location{125.0, 18.0}
	rc := RuleContext{
		Type:         TypeStop,
		Now:          noonUTC(),
		Driver:       testDriver(),
		StopLocation: &stop,
	}
	decision := engine.Evaluate(rc)
	assert.False(t, decision.Accepted)
	require.Len(t, decision.Reasons, 1)
	assert.Contains(t, decision.Reasons[0], "exceeds maxDistanceKm 100")
}

func TestGeographicLimitVehicleOverride(t *testing.T) {
	engine := NewEngine(100)
	stop := geo.Location{125.0, 18.0}
	rc := RuleContext{
		Type:         TypeStop,
		Now:          noonUTC(),
		Driver:       testDriver(),
		Vehicle:      testVehicle(`{"maxDistanceKm":1000}`, ""),
		StopLocation: &stop,
	}
	assert.True(t, engine.Evaluate(rc).Accepted)
}

func TestDistanceRuleOnlyAppliesToStopDispatch(t *testing.T) {
	engine := NewEngine(100)
	stop := geo.Location{125.0, 18.0}
	rc := passingRouteContext()
	rc.StopLocation = &stop
	assert.True(t, engine.Evaluate(rc).Accepted)
}

func TestDriverFailedOnlyRejectsRouteDispatch(t *testing.T) {
	engine := NewEngine(100)
	near := geo.Location{121.05, 14.05}
	rc := RuleContext{
		Type:         TypeStop,
		Now:          noonUTC(),
		Driver:       testDriver(),
		StopLocation: &near,
	}
	rc.Driver.State = fleet.DriverFailed
	assert.True(t, engine.Evaluate(rc).Accepted)
}
