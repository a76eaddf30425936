// README: Route plan aggregates materialized from solver solutions.
package planner

import (
	"encoding/json"
	"time"

	"lastmile/internal/types"
)

type PlanStatus string

const (
	PlanOptimized  PlanStatus = "optimized"
	PlanDispatched PlanStatus = "dispatched"
	PlanFailed     PlanStatus = "failed"
)

type RoutePlan struct {
	ID             types.ID
	OwnerUserID    types.ID
	OrganizationID *types.ID
	Status         PlanStatus
	PlanDate       string // YYYY-MM-DD
	InputPayload   json.RawMessage
	SummaryMetrics json.RawMessage
	Geometry       json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TripStatus string

const (
	TripPlanned   TripStatus = "planned"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
)

type Trip struct {
	ID             types.ID
	OwnerUserID    types.ID
	OrganizationID *types.ID
	RoutePlanID    *types.ID
	DriverID       *types.ID
	VehicleID      *types.ID
	Status         TripStatus
	TripDate       string
	StartAt        *time.Time
	EndAt          *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type RouteStop struct {
	ID              types.ID
	RoutePlanID     types.ID
	StopID          *types.ID
	StopOrder       int // contiguous, 1-based, global across the plan
	EtaAt           *time.Time
	DistanceMeters  *float64
	DurationSeconds *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TripStopStatus string

const (
	TripStopPending   TripStopStatus = "pending"
	TripStopEnroute   TripStopStatus = "enroute"
	TripStopArrived   TripStopStatus = "arrived"
	TripStopCompleted TripStopStatus = "completed"
	TripStopFailed    TripStopStatus = "failed"
)

type TripStop struct {
	ID            types.ID
	TripID        types.ID
	StopID        *types.ID
	StopOrder     int // contiguous, 1-based, restarts per trip
	Status        TripStopStatus
	EtaAt         *time.Time
	ArrivedAt     *time.Time
	CompletedAt   *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// allowedTripStopTransitions is the driver-facing execution flow.
var allowedTripStopTransitions = map[TripStopStatus][]TripStopStatus{
	TripStopPending: {TripStopEnroute, TripStopArrived, TripStopFailed},
	TripStopEnroute: {TripStopArrived, TripStopFailed},
	TripStopArrived: {TripStopCompleted, TripStopFailed},
}

func CanTransitionTripStop(from, to TripStopStatus) bool {
	next, ok := allowedTripStopTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// ArtifactBundle is everything one completed solver solution materializes
// into. It is persisted atomically: either all rows land or none do.
type ArtifactBundle struct {
	Plan       RoutePlan
	Trips      []Trip
	RouteStops []RouteStop
	TripStops  []TripStop
}
