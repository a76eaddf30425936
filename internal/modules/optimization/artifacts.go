// README: Artifact construction; maps a solver solution back onto persisted route plans.
package optimization

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"time"

	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

var planDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// PlanWriter persists a full artifact bundle atomically.
type PlanWriter interface {
	CreateArtifacts(ctx context.Context, bundle *planner.ArtifactBundle) error
}

type ArtifactBuilder struct {
	plans PlanWriter
}

func NewArtifactBuilder(plans PlanWriter) *ArtifactBuilder {
	return &ArtifactBuilder{plans: plans}
}

// Materialize builds and persists the artifacts for a completed solution.
// Any persistence failure aborts the whole bundle.
func (b *ArtifactBuilder) Materialize(ctx context.Context, job *Job, sol *Solution) (*planner.ArtifactBundle, error) {
	bundle := BuildArtifacts(job, sol, time.Now().UTC())
	if err := b.plans.CreateArtifacts(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// BuildArtifacts constructs one RoutePlan, one Trip per solution route,
// and a RouteStop+TripStop pair per job step, in solver order. RouteStop
// ordering is global across routes; TripStop ordering restarts per trip.
func BuildArtifacts(job *Job, sol *Solution, now time.Time) *planner.ArtifactBundle {
	planDate := resolvePlanDate(job.Payload.PlanDate, now)
	midnight := planMidnight(planDate, now)

	status := planner.PlanFailed
	if len(sol.Routes) > 0 {
		status = planner.PlanOptimized
	}

	inputSnapshot, _ := json.Marshal(job.Payload)

	bundle := &planner.ArtifactBundle{
		Plan: planner.RoutePlan{
			ID:             types.NewID(),
			OwnerUserID:    job.OwnerUserID,
			OrganizationID: job.OrganizationID,
			Status:         status,
			PlanDate:       planDate,
			InputPayload:   inputSnapshot,
			SummaryMetrics: sol.Summary,
			Geometry:       routeGeometry(sol.Routes),
		},
	}

	routeStopOrder := 0
	for _, route := range sol.Routes {
		trip := planner.Trip{
			ID:             types.NewID(),
			OwnerUserID:    job.OwnerUserID,
			OrganizationID: job.OrganizationID,
			RoutePlanID:    &bundle.Plan.ID,
			DriverID:       resolveDriverID(job.Payload.Metadata, route.Vehicle),
			Status:         planner.TripPlanned,
			TripDate:       planDate,
		}
		bundle.Trips = append(bundle.Trips, trip)

		tripStopOrder := 0
		for _, step := range route.Steps {
			if step.Type != "job" {
				continue
			}
			routeStopOrder++
			tripStopOrder++

			stopID := resolveStopID(job.Payload.Metadata, step.Job)
			eta := stepETA(midnight, step.Arrival)
			distance := step.Distance
			duration := step.Duration

			bundle.RouteStops = append(bundle.RouteStops, planner.RouteStop{
				ID:              types.NewID(),
				RoutePlanID:     bundle.Plan.ID,
				StopID:          stopID,
				StopOrder:       routeStopOrder,
				EtaAt:           eta,
				DistanceMeters:  &distance,
				DurationSeconds: &duration,
			})
			bundle.TripStops = append(bundle.TripStops, planner.TripStop{
				ID:        types.NewID(),
				TripID:    trip.ID,
				StopID:    stopID,
				StopOrder: tripStopOrder,
				Status:    planner.TripStopPending,
				EtaAt:     eta,
			})
		}
	}

	return bundle
}

func resolvePlanDate(declared string, now time.Time) string {
	if planDatePattern.MatchString(declared) {
		if _, err := time.Parse("2006-01-02", declared); err == nil {
			return declared
		}
	}
	return now.UTC().Format("2006-01-02")
}

func planMidnight(planDate string, now time.Time) time.Time {
	t, err := time.Parse("2006-01-02", planDate)
	if err != nil {
		t = now.UTC().Truncate(24 * time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func stepETA(midnight time.Time, arrival *float64) *time.Time {
	if arrival == nil || math.IsNaN(*arrival) || math.IsInf(*arrival, 0) {
		return nil
	}
	eta := midnight.Add(time.Duration(*arrival * float64(time.Second)))
	return &eta
}

func resolveDriverID(meta Metadata, vehicle int64) *types.ID {
	ref, ok := meta.VehicleToDriverMap[solverIDKey(vehicle)]
	if !ok {
		return nil
	}
	id := types.ID(ref)
	if !id.Valid() {
		return nil
	}
	return &id
}

func resolveStopID(meta Metadata, jobID int64) *types.ID {
	ref, ok := meta.JobToStopMap[solverIDKey(jobID)]
	if !ok {
		return nil
	}
	id := types.ID(ref)
	if !id.Valid() {
		return nil
	}
	return &id
}

func routeGeometry(routes []SolutionRoute) json.RawMessage {
	geometries := make([]string, 0, len(routes))
	for _, r := range routes {
		if r.Geometry != "" {
			geometries = append(geometries, r.Geometry)
		}
	}
	if len(geometries) == 0 {
		return nil
	}
	raw, _ := json.Marshal(geometries)
	return raw
}
