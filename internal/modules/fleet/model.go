// README: Fleet aggregates: drivers, vehicles, and stops read as dispatch context.
package fleet

import (
	"encoding/json"
	"strings"
	"time"

	"lastmile/internal/geo"
	"lastmile/internal/types"
)

type DriverState string

const (
	DriverIdle      DriverState = "idle"
	DriverEnroute   DriverState = "enroute"
	DriverArrived   DriverState = "arrived"
	DriverCompleted DriverState = "completed"
	DriverFailed    DriverState = "failed"
)

type Driver struct {
	ID                types.ID
	OrganizationID    types.ID
	UserID            *types.ID
	Name              string
	Phone             *string
	State             DriverState
	ShiftStartSeconds *int
	ShiftEndSeconds   *int
	StartLocation     *geo.Location
	EndLocation       *geo.Location
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// ShiftWindow returns the persisted shift window when both ends are set.
func (d *Driver) ShiftWindow() (start, end int, ok bool) {
	if d.ShiftStartSeconds == nil || d.ShiftEndSeconds == nil {
		return 0, 0, false
	}
	return *d.ShiftStartSeconds, *d.ShiftEndSeconds, true
}

type Vehicle struct {
	ID             types.ID
	OrganizationID types.ID
	Name           string
	Capacity       json.RawMessage
	Skills         json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CapacityNumber reads a numeric capacity attribute such as maxStops or
// maxDistanceKm. Missing or non-numeric values report ok=false.
func (v *Vehicle) CapacityNumber(key string) (float64, bool) {
	if v == nil || len(v.Capacity) == 0 {
		return 0, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v.Capacity, &m); err != nil {
		return 0, false
	}
	raw, ok := m[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// SkillSet returns the vehicle's declared skills as trimmed strings.
func (v *Vehicle) SkillSet() []string {
	if v == nil {
		return nil
	}
	return stringList(v.Skills)
}

type Stop struct {
	ID             types.ID
	OrganizationID types.ID
	ExternalRef    *string
	Location       geo.Location
	ServiceSeconds *int
	TimeWindow     json.RawMessage
	Priority       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RequiredSkills extracts the requiredSkills list from the stop's
// timeWindow metadata blob.
func (s *Stop) RequiredSkills() []string {
	if s == nil || len(s.TimeWindow) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(s.TimeWindow, &m); err != nil {
		return nil
	}
	raw, ok := m["requiredSkills"]
	if !ok {
		return nil
	}
	return stringList(raw)
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var entries []any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		s, ok := e.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
