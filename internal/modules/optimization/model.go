// README: Optimization job aggregate, canonical payload, and correlation metadata.
package optimization

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"lastmile/internal/geo"
	"lastmile/internal/types"
)

type JobStatus string

const (
	JobEnqueued   JobStatus = "enqueued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the persisted optimization request. Terminal states are final:
// a failed job is resubmitted by the caller, never re-queued here.
type Job struct {
	ID             types.ID
	OwnerUserID    types.ID
	OrganizationID *types.ID
	Version        string // "v1" legacy, "v2" solver-native
	Status         JobStatus
	Payload        Payload
	Result         json.RawMessage
	ResultVersion  *string
	ErrorMessage   *string
	LastErrorAt    *time.Time
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type LogType string

const (
	LogInfo  LogType = "info"
	LogError LogType = "error"
)

// JobLog entries are append-only; processing never mutates or deletes them.
type JobLog struct {
	ID        int64
	JobID     types.ID
	Type      LogType
	Message   string
	Data      json.RawMessage
	CreatedAt time.Time
}

// Payload is the canonical optimization request every inbound shape
// normalizes into. Driver and stop ids are synthetic solver ids; the
// metadata maps carry the correlation back to domain records and travel
// with the job so reprocessing stays deterministic.
type Payload struct {
	Drivers   []DriverInput   `json:"drivers"`
	Stops     []StopInput     `json:"stops"`
	Shipments []ShipmentInput `json:"shipments,omitempty"`
	PlanDate  string          `json:"planDate,omitempty"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	DriverSource string `json:"driverSource"`
	// VehicleToDriverMap keys are solver vehicle ids (as decimal strings),
	// values are the submitted driver references. Only UUID-shaped values
	// resolve back to Trip.driverId during artifact construction.
	VehicleToDriverMap map[string]string `json:"vehicleToDriverMap,omitempty"`
	// JobToStopMap keys are solver job ids, values are stop references.
	JobToStopMap map[string]string `json:"jobToStopMap,omitempty"`
}

// TimeWindow is [start, end] in seconds of day.
type TimeWindow [2]int

type Break struct {
	ID         int        `json:"id,omitempty"`
	TimeWindow TimeWindow `json:"timeWindow"`
}

type DriverInput struct {
	ID                 int64        `json:"id"`
	Name               string       `json:"name"`
	StartLocation      geo.Location `json:"startLocation"`
	EndLocation        geo.Location `json:"endLocation"`
	AvailabilityWindow TimeWindow   `json:"availabilityWindow"`
	MaxTasks           int          `json:"maxTasks"`
	Breaks             []Break      `json:"breaks,omitempty"`
}

type StopInput struct {
	ID             int64        `json:"id"`
	Location       geo.Location `json:"location"`
	ServiceSeconds int          `json:"serviceSeconds"`
	Priority       int          `json:"priority,omitempty"`
	Skills         []int        `json:"skills,omitempty"`
}

type ShipmentLeg struct {
	ID             int64        `json:"id"`
	Location       geo.Location `json:"location"`
	ServiceSeconds int          `json:"serviceSeconds"`
}

type ShipmentInput struct {
	Pickup   ShipmentLeg `json:"pickup"`
	Delivery ShipmentLeg `json:"delivery"`
	Amount   []int       `json:"amount,omitempty"`
}

// FlexID accepts a JSON string or number, preserving the raw text.
// Legacy payloads mix both for driver and stop ids.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty id")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

func solverIDKey(id int64) string { return strconv.FormatInt(id, 10) }
