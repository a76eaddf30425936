// README: HTTP client for the external vehicle-routing solver.
package optimization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lastmile/internal/config"
	"lastmile/internal/geo"
	"lastmile/internal/retry"
)

// Solution is the solver's response. Summary is kept opaque; only routes
// and steps are interpreted during artifact construction.
type Solution struct {
	Summary    json.RawMessage   `json:"summary"`
	Unassigned []json.RawMessage `json:"unassigned"`
	Routes     []SolutionRoute   `json:"routes"`
}

type SolutionRoute struct {
	Vehicle  int64          `json:"vehicle"`
	Cost     float64        `json:"cost"`
	Steps    []SolutionStep `json:"steps"`
	Geometry string         `json:"geometry,omitempty"`
}

type SolutionStep struct {
	Type     string       `json:"type"`
	Job      int64        `json:"job,omitempty"`
	Arrival  *float64     `json:"arrival,omitempty"`
	Duration float64      `json:"duration"`
	Distance float64      `json:"distance"`
	Location geo.Location `json:"location"`
}

type solveVehicle struct {
	ID         int64        `json:"id"`
	Start      geo.Location `json:"start"`
	End        geo.Location `json:"end"`
	TimeWindow TimeWindow   `json:"time_window"`
	MaxTasks   int          `json:"max_tasks"`
	Breaks     []solveBreak `json:"breaks,omitempty"`
}

type solveBreak struct {
	ID          int          `json:"id"`
	TimeWindows []TimeWindow `json:"time_windows"`
}

type solveJob struct {
	ID       int64        `json:"id"`
	Location geo.Location `json:"location"`
	Service  int          `json:"service"`
	Priority int          `json:"priority,omitempty"`
	Skills   []int        `json:"skills,omitempty"`
}

type solveShipmentLeg struct {
	ID       int64        `json:"id"`
	Location geo.Location `json:"location"`
	Service  int          `json:"service"`
}

type solveShipment struct {
	Pickup   solveShipmentLeg `json:"pickup"`
	Delivery solveShipmentLeg `json:"delivery"`
	Amount   []int            `json:"amount,omitempty"`
}

type solveRequest struct {
	Vehicles  []solveVehicle  `json:"vehicles"`
	Jobs      []solveJob      `json:"jobs"`
	Shipments []solveShipment `json:"shipments,omitempty"`
	Options   solveOptions    `json:"options"`
}

type solveOptions struct {
	Geometry bool `json:"g"`
}

// SolverClient calls the routing solver over HTTP with a bounded
// per-attempt timeout and the shared retry policy.
type SolverClient struct {
	url    string
	client *http.Client
	policy retry.Policy
}

func NewSolverClient(cfg config.SolverConfig, policy retry.Policy) *SolverClient {
	return &SolverClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.CallTimeout},
		policy: policy,
	}
}

// Solve translates the canonical payload into the solver's wire request
// and returns the parsed solution, retrying transient failures. The last
// error after exhausting attempts is surfaced as-is.
func (c *SolverClient) Solve(ctx context.Context, payload Payload) (*Solution, error) {
	body, err := json.Marshal(buildSolveRequest(payload))
	if err != nil {
		return nil, err
	}

	var solution *Solution
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		s, callErr := c.call(ctx, body)
		if callErr != nil {
			return callErr
		}
		solution = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return solution, nil
}

func (c *SolverClient) call(ctx context.Context, body []byte) (*Solution, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("solver error: %d %s", res.StatusCode, string(text))
	}

	var solution Solution
	if err := json.NewDecoder(res.Body).Decode(&solution); err != nil {
		return nil, fmt.Errorf("solver response decode: %w", err)
	}
	return &solution, nil
}

func buildSolveRequest(p Payload) solveRequest {
	req := solveRequest{Options: solveOptions{Geometry: true}}

	for _, d := range p.Drivers {
		v := solveVehicle{
			ID:         d.ID,
			Start:      d.StartLocation,
			End:        d.EndLocation,
			TimeWindow: d.AvailabilityWindow,
			MaxTasks:   d.MaxTasks,
		}
		for _, b := range d.Breaks {
			v.Breaks = append(v.Breaks, solveBreak{ID: b.ID, TimeWindows: []TimeWindow{b.TimeWindow}})
		}
		req.Vehicles = append(req.Vehicles, v)
	}

	for _, st := range p.Stops {
		req.Jobs = append(req.Jobs, solveJob{
			ID:       st.ID,
			Location: st.Location,
			Service:  st.ServiceSeconds,
			Priority: st.Priority,
			Skills:   st.Skills,
		})
	}

	for _, sh := range p.Shipments {
		req.Shipments = append(req.Shipments, solveShipment{
			Pickup: solveShipmentLeg{
				ID:       sh.Pickup.ID,
				Location: sh.Pickup.Location,
				Service:  sh.Pickup.ServiceSeconds,
			},
			Delivery: solveShipmentLeg{
				ID:       sh.Delivery.ID,
				Location: sh.Delivery.Location,
				Service:  sh.Delivery.ServiceSeconds,
			},
			Amount: sh.Amount,
		})
	}

	return req
}
