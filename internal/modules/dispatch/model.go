// README: Dispatch records and rule decisions.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"lastmile/internal/types"
)

type Type string

const (
	TypeRoute Type = "route"
	TypeStop  Type = "stop"
)

// Dispatch is created only on rule-engine acceptance; rejections leave
// an audit event and nothing else.
type Dispatch struct {
	ID             types.ID
	OwnerUserID    types.ID
	OrganizationID types.ID
	Type           Type
	RoutePlanID    *types.ID
	StopID         *types.ID
	DriverID       types.ID
	VehicleID      *types.ID
	CreatedAt      time.Time
}

type Decision struct {
	Accepted bool     `json:"accepted"`
	Reasons  []string `json:"reasons"`
}

// RejectedError carries every violated rule, not just the first.
type RejectedError struct {
	Reasons []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("dispatch rejected: %s", strings.Join(e.Reasons, "; "))
}
