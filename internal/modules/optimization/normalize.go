// README: Payload normalization; converts the three inbound request shapes into the canonical payload.
package optimization

import (
	"context"
	"errors"
	"fmt"

	"lastmile/internal/geo"
	"lastmile/internal/modules/fleet"
	"lastmile/internal/types"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("optimization job not found")
	ErrConflict   = errors.New("solution is not yet available")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const (
	defaultWindowStart   = 8 * 3600  // 08:00
	defaultWindowEnd     = 17 * 3600 // 17:00
	defaultMaxTasks      = 4
	defaultServiceSecond = 300
)

var defaultWindow = TimeWindow{defaultWindowStart, defaultWindowEnd}

// LegacyRequest is the v1 shape: explicit driver and stop lists.
type LegacyRequest struct {
	Drivers  []LegacyDriver `json:"drivers"`
	Stops    []LegacyStop   `json:"stops"`
	PlanDate string         `json:"planDate,omitempty"`
}

type LegacyDriver struct {
	ID                 FlexID       `json:"id"`
	Name               string       `json:"name"`
	StartLocation      geo.Location `json:"startLocation"`
	EndLocation        geo.Location `json:"endLocation"`
	AvailabilityWindow *TimeWindow  `json:"availabilityWindow,omitempty"`
	MaxTasks           *int         `json:"maxTasks,omitempty"`
	Breaks             []Break      `json:"breaks,omitempty"`
}

type LegacyStop struct {
	ID             FlexID       `json:"id"`
	StopID         string       `json:"stopId,omitempty"`
	Location       geo.Location `json:"location"`
	ServiceSeconds *int         `json:"serviceSeconds,omitempty"`
	Priority       *int         `json:"priority,omitempty"`
	Skills         []int        `json:"skills,omitempty"`
}

// SolverNativeRequest is the v2 shape: either explicit vehicles+jobs in
// the solver's own vocabulary, or selectedDriverIds to resolve from
// storage plus jobs. Which variant applies is decided by Variant().
type SolverNativeRequest struct {
	Vehicles          []SolverVehicle  `json:"vehicles,omitempty"`
	Jobs              []SolverJob      `json:"jobs"`
	Shipments         []SolverShipment `json:"shipments,omitempty"`
	SelectedDriverIDs []string         `json:"selectedDriverIds,omitempty"`
	PlanDate          string           `json:"planDate,omitempty"`
}

type SolverVehicle struct {
	ID         int64         `json:"id"`
	Start      geo.Location  `json:"start"`
	End        *geo.Location `json:"end,omitempty"`
	TimeWindow *TimeWindow   `json:"time_window,omitempty"`
	MaxTasks   *int          `json:"max_tasks,omitempty"`
	Breaks     []Break       `json:"breaks,omitempty"`
}

type SolverJob struct {
	ID       int64        `json:"id"`
	StopID   string       `json:"stopId,omitempty"`
	Location geo.Location `json:"location"`
	Service  *int         `json:"service,omitempty"`
	Priority *int         `json:"priority,omitempty"`
	Skills   []int        `json:"skills,omitempty"`
}

type SolverShipment struct {
	Pickup   SolverShipmentLeg `json:"pickup"`
	Delivery SolverShipmentLeg `json:"delivery"`
	Amount   []int             `json:"amount,omitempty"`
}

type SolverShipmentLeg struct {
	ID       int64        `json:"id"`
	Location geo.Location `json:"location"`
	Service  *int         `json:"service,omitempty"`
}

type RequestVariant string

const (
	VariantVehicles        RequestVariant = "vehicles"
	VariantSelectedDrivers RequestVariant = "selectedDrivers"
)

func (r SolverNativeRequest) Variant() RequestVariant {
	if len(r.SelectedDriverIDs) > 0 {
		return VariantSelectedDrivers
	}
	return VariantVehicles
}

// DriverDirectory resolves selected driver ids for the driver-reference
// variant. It is the normalizer's only storage dependency.
type DriverDirectory interface {
	ListActiveDriversByIDs(ctx context.Context, orgID types.ID, ids []types.ID) ([]*fleet.Driver, error)
}

type Normalizer struct {
	drivers DriverDirectory
}

func NewNormalizer(drivers DriverDirectory) *Normalizer {
	return &Normalizer{drivers: drivers}
}

// NormalizeLegacy validates a v1 request and assigns synthetic solver ids
// 1..N to drivers and stops, recording the submitted ids in the
// correlation maps.
func (n *Normalizer) NormalizeLegacy(req LegacyRequest) (Payload, error) {
	if len(req.Drivers) == 0 {
		return Payload{}, validationf("drivers must be a non-empty array")
	}
	if len(req.Stops) == 0 {
		return Payload{}, validationf("stops must be a non-empty array")
	}

	p := Payload{
		PlanDate: req.PlanDate,
		Metadata: Metadata{
			DriverSource:       "drivers",
			VehicleToDriverMap: make(map[string]string, len(req.Drivers)),
			JobToStopMap:       make(map[string]string, len(req.Stops)),
		},
	}

	seenDrivers := make(map[string]struct{}, len(req.Drivers))
	for i, d := range req.Drivers {
		if d.ID == "" || d.Name == "" {
			return Payload{}, validationf("driver.id and driver.name are required")
		}
		if _, dup := seenDrivers[d.ID.String()]; dup {
			return Payload{}, validationf("driver ids must be unique")
		}
		seenDrivers[d.ID.String()] = struct{}{}
		if err := assertLocation(d.StartLocation, "driver.startLocation"); err != nil {
			return Payload{}, err
		}
		if err := assertLocation(d.EndLocation, "driver.endLocation"); err != nil {
			return Payload{}, err
		}
		if err := assertBreaks(d.Breaks); err != nil {
			return Payload{}, err
		}

		solverID := int64(i + 1)
		p.Drivers = append(p.Drivers, DriverInput{
			ID:                 solverID,
			Name:               d.Name,
			StartLocation:      d.StartLocation,
			EndLocation:        d.EndLocation,
			AvailabilityWindow: windowOrDefault(d.AvailabilityWindow),
			MaxTasks:           intOrDefault(d.MaxTasks, defaultMaxTasks),
			Breaks:             d.Breaks,
		})
		p.Metadata.VehicleToDriverMap[solverIDKey(solverID)] = d.ID.String()
	}

	seenStops := make(map[string]struct{}, len(req.Stops))
	for i, st := range req.Stops {
		if st.ID == "" {
			return Payload{}, validationf("stop.id is required")
		}
		if _, dup := seenStops[st.ID.String()]; dup {
			return Payload{}, validationf("stop ids must be unique")
		}
		seenStops[st.ID.String()] = struct{}{}
		if err := assertLocation(st.Location, "stop.location"); err != nil {
			return Payload{}, err
		}
		if err := assertSkills(st.Skills); err != nil {
			return Payload{}, err
		}

		solverID := int64(i + 1)
		p.Stops = append(p.Stops, StopInput{
			ID:             solverID,
			Location:       st.Location,
			ServiceSeconds: intOrDefault(st.ServiceSeconds, defaultServiceSecond),
			Priority:       intOrDefault(st.Priority, 0),
			Skills:         st.Skills,
		})
		ref := st.ID.String()
		if st.StopID != "" {
			ref = st.StopID
		}
		p.Metadata.JobToStopMap[solverIDKey(solverID)] = ref
	}

	return p, nil
}

// NormalizeSolverNative validates a v2 request. The explicit-vehicles
// variant keeps the solver ids the caller chose; the selected-drivers
// variant resolves driver records and assigns synthetic ids 1..N.
func (n *Normalizer) NormalizeSolverNative(ctx context.Context, orgID types.ID, req SolverNativeRequest) (Payload, error) {
	switch req.Variant() {
	case VariantSelectedDrivers:
		return n.normalizeSelectedDrivers(ctx, orgID, req)
	default:
		return n.normalizeVehicles(req)
	}
}

func (n *Normalizer) normalizeVehicles(req SolverNativeRequest) (Payload, error) {
	if len(req.Vehicles) == 0 {
		return Payload{}, validationf("vehicles must be a non-empty array")
	}
	if len(req.Jobs) == 0 {
		return Payload{}, validationf("jobs must be a non-empty array")
	}

	p := Payload{
		PlanDate: req.PlanDate,
		Metadata: Metadata{
			DriverSource:       string(VariantVehicles),
			VehicleToDriverMap: make(map[string]string, len(req.Vehicles)),
			JobToStopMap:       make(map[string]string, len(req.Jobs)),
		},
	}

	seenVehicles := make(map[int64]struct{}, len(req.Vehicles))
	for _, v := range req.Vehicles {
		if v.ID == 0 {
			return Payload{}, validationf("vehicle.id is required")
		}
		if _, dup := seenVehicles[v.ID]; dup {
			return Payload{}, validationf("vehicle ids must be unique")
		}
		seenVehicles[v.ID] = struct{}{}
		if err := assertLocation(v.Start, "vehicle.start"); err != nil {
			return Payload{}, err
		}
		end := v.Start
		if v.End != nil {
			if err := assertLocation(*v.End, "vehicle.end"); err != nil {
				return Payload{}, err
			}
			end = *v.End
		}
		if err := assertBreaks(v.Breaks); err != nil {
			return Payload{}, err
		}

		p.Drivers = append(p.Drivers, DriverInput{
			ID:                 v.ID,
			Name:               fmt.Sprintf("Driver %d", v.ID),
			StartLocation:      v.Start,
			EndLocation:        end,
			AvailabilityWindow: windowOrDefault(v.TimeWindow),
			MaxTasks:           intOrDefault(v.MaxTasks, defaultMaxTasks),
			Breaks:             v.Breaks,
		})
		p.Metadata.VehicleToDriverMap[solverIDKey(v.ID)] = solverIDKey(v.ID)
	}

	stops, jobMap, err := normalizeJobs(req.Jobs)
	if err != nil {
		return Payload{}, err
	}
	p.Stops = stops
	p.Metadata.JobToStopMap = jobMap

	shipments, err := normalizeShipments(req.Shipments)
	if err != nil {
		return Payload{}, err
	}
	p.Shipments = shipments

	return p, nil
}

func (n *Normalizer) normalizeSelectedDrivers(ctx context.Context, orgID types.ID, req SolverNativeRequest) (Payload, error) {
	if len(req.Jobs) == 0 {
		return Payload{}, validationf("jobs must be a non-empty array")
	}

	ids := make([]types.ID, 0, len(req.SelectedDriverIDs))
	seen := make(map[string]struct{}, len(req.SelectedDriverIDs))
	for _, raw := range req.SelectedDriverIDs {
		id := types.ID(raw)
		if !id.Valid() {
			return Payload{}, validationf("selectedDriverIds must be valid UUIDs")
		}
		if _, dup := seen[raw]; dup {
			return Payload{}, validationf("selectedDriverIds must be unique")
		}
		seen[raw] = struct{}{}
		ids = append(ids, id)
	}

	drivers, err := n.drivers.ListActiveDriversByIDs(ctx, orgID, ids)
	if err != nil {
		return Payload{}, err
	}
	byID := make(map[types.ID]*fleet.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID] = d
	}

	p := Payload{
		PlanDate: req.PlanDate,
		Metadata: Metadata{
			DriverSource:       string(VariantSelectedDrivers),
			VehicleToDriverMap: make(map[string]string, len(ids)),
		},
	}

	for i, id := range ids {
		d, ok := byID[id]
		if !ok {
			return Payload{}, validationf("driver %s is not available in the active organization", id)
		}
		if d.StartLocation == nil {
			return Payload{}, validationf("driver %s has no start location", id)
		}
		end := d.StartLocation
		if d.EndLocation != nil {
			end = d.EndLocation
		}
		window := defaultWindow
		if start, stop, ok := d.ShiftWindow(); ok {
			window = TimeWindow{start, stop}
		}

		solverID := int64(i + 1)
		p.Drivers = append(p.Drivers, DriverInput{
			ID:                 solverID,
			Name:               d.Name,
			StartLocation:      *d.StartLocation,
			EndLocation:        *end,
			AvailabilityWindow: window,
			MaxTasks:           defaultMaxTasks,
		})
		p.Metadata.VehicleToDriverMap[solverIDKey(solverID)] = string(id)
	}

	stops, jobMap, err := normalizeJobs(req.Jobs)
	if err != nil {
		return Payload{}, err
	}
	p.Stops = stops
	p.Metadata.JobToStopMap = jobMap

	shipments, err := normalizeShipments(req.Shipments)
	if err != nil {
		return Payload{}, err
	}
	p.Shipments = shipments

	return p, nil
}

func normalizeJobs(jobs []SolverJob) ([]StopInput, map[string]string, error) {
	out := make([]StopInput, 0, len(jobs))
	jobMap := make(map[string]string, len(jobs))
	seen := make(map[int64]struct{}, len(jobs))
	for _, j := range jobs {
		if j.ID == 0 {
			return nil, nil, validationf("job.id is required")
		}
		if _, dup := seen[j.ID]; dup {
			return nil, nil, validationf("job ids must be unique")
		}
		seen[j.ID] = struct{}{}
		if err := assertLocation(j.Location, "job.location"); err != nil {
			return nil, nil, err
		}
		if err := assertSkills(j.Skills); err != nil {
			return nil, nil, err
		}
		out = append(out, StopInput{
			ID:             j.ID,
			Location:       j.Location,
			ServiceSeconds: intOrDefault(j.Service, defaultServiceSecond),
			Priority:       intOrDefault(j.Priority, 0),
			Skills:         j.Skills,
		})
		ref := solverIDKey(j.ID)
		if j.StopID != "" {
			ref = j.StopID
		}
		jobMap[solverIDKey(j.ID)] = ref
	}
	return out, jobMap, nil
}

func normalizeShipments(shipments []SolverShipment) ([]ShipmentInput, error) {
	if len(shipments) == 0 {
		return nil, nil
	}
	out := make([]ShipmentInput, 0, len(shipments))
	for _, sh := range shipments {
		if err := assertLocation(sh.Pickup.Location, "shipment.pickup.location"); err != nil {
			return nil, err
		}
		if err := assertLocation(sh.Delivery.Location, "shipment.delivery.location"); err != nil {
			return nil, err
		}
		out = append(out, ShipmentInput{
			Pickup: ShipmentLeg{
				ID:             sh.Pickup.ID,
				Location:       sh.Pickup.Location,
				ServiceSeconds: intOrDefault(sh.Pickup.Service, defaultServiceSecond),
			},
			Delivery: ShipmentLeg{
				ID:             sh.Delivery.ID,
				Location:       sh.Delivery.Location,
				ServiceSeconds: intOrDefault(sh.Delivery.Service, defaultServiceSecond),
			},
			Amount: sh.Amount,
		})
	}
	return out, nil
}

func assertLocation(loc geo.Location, label string) error {
	if err := loc.Validate(); err != nil {
		return validationf("%s: %v", label, err)
	}
	return nil
}

func assertSkills(skills []int) error {
	for _, s := range skills {
		if s < 0 {
			return validationf("skills must be non-negative integers")
		}
	}
	return nil
}

func assertBreaks(breaks []Break) error {
	for _, b := range breaks {
		if b.TimeWindow[0] > b.TimeWindow[1] {
			return validationf("break time window is inverted")
		}
	}
	return nil
}

func windowOrDefault(w *TimeWindow) TimeWindow {
	if w == nil {
		return defaultWindow
	}
	return *w
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
