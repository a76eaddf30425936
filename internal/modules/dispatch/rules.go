// README: Pure admission rules over a loaded dispatch context.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"lastmile/internal/geo"
	"lastmile/internal/modules/fleet"
)

// RuleContext is everything the engine needs, loaded up front. The
// engine itself never touches storage.
type RuleContext struct {
	Type           Type
	Now            time.Time
	Driver         *fleet.Driver
	Vehicle        *fleet.Vehicle
	RouteStopCount int
	RequiredSkills []string
	StopLocation   *geo.Location
}

type Engine struct {
	defaultMaxDistanceKm float64
}

func NewEngine(defaultMaxDistanceKm float64) *Engine {
	return &Engine{defaultMaxDistanceKm: defaultMaxDistanceKm}
}

// Evaluate checks every rule and reports all violations. Acceptance
// requires zero violated rules.
func (e *Engine) Evaluate(rc RuleContext) Decision {
	var reasons []string

	if r := checkShiftWindow(rc); r != "" {
		reasons = append(reasons, r)
	}
	if rc.Type == TypeRoute && rc.Driver != nil && rc.Driver.State == fleet.DriverFailed {
		reasons = append(reasons, "driver state is failed")
	}
	if r := checkMaxStops(rc); r != "" {
		reasons = append(reasons, r)
	}
	if r := checkSkills(rc); r != "" {
		reasons = append(reasons, r)
	}
	if r := e.checkDistance(rc); r != "" {
		reasons = append(reasons, r)
	}

	return Decision{Accepted: len(reasons) == 0, Reasons: reasons}
}

// Shift bounds are inclusive, seconds of day in UTC.
func checkShiftWindow(rc RuleContext) string {
	if rc.Driver == nil {
		return ""
	}
	start, end, ok := rc.Driver.ShiftWindow()
	if !ok {
		return ""
	}
	now := rc.Now.UTC()
	sod := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if sod < start || sod > end {
		return "driver is outside shift window"
	}
	return ""
}

func checkMaxStops(rc RuleContext) string {
	if rc.Type != TypeRoute || rc.Vehicle == nil {
		return ""
	}
	maxStops, ok := rc.Vehicle.CapacityNumber("maxStops")
	if !ok {
		return ""
	}
	if float64(rc.RouteStopCount) > maxStops {
		return fmt.Sprintf("vehicle maxStops %d is lower than route stops %d", int(maxStops), rc.RouteStopCount)
	}
	return ""
}

// A missing vehicle declares no skills, so any required skill rejects.
func checkSkills(rc RuleContext) string {
	if len(rc.RequiredSkills) == 0 {
		return ""
	}
	have := make(map[string]bool)
	for _, s := range rc.Vehicle.SkillSet() {
		have[s] = true
	}
	var missing []string
	for _, s := range rc.RequiredSkills {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("vehicle missing required skills: %s", strings.Join(missing, ", "))
	}
	return ""
}

func (e *Engine) checkDistance(rc RuleContext) string {
	if rc.Type != TypeStop || rc.Driver == nil || rc.Driver.StartLocation == nil || rc.StopLocation == nil {
		return ""
	}
	limit := e.defaultMaxDistanceKm
	if v, ok := rc.Vehicle.CapacityNumber("maxDistanceKm"); ok {
		limit = v
	}
	dist := geo.HaversineKm(*rc.Driver.StartLocation, *rc.StopLocation)
	if dist > limit {
		return fmt.Sprintf("driver distance %.1fkm exceeds maxDistanceKm %v", dist, limit)
	}
	return ""
}
