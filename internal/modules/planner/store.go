// README: Plan artifact persistence; bundle writes run in one transaction.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lastmile/internal/types"
)

var (
	ErrNotFound   = errors.New("plan record not found")
	ErrConflict   = errors.New("plan state conflict")
	ErrValidation = errors.New("invalid plan request")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateArtifacts persists a whole bundle atomically. A failure on any
// row rolls back everything, leaving the job free to fail cleanly.
func (s *Store) CreateArtifacts(ctx context.Context, bundle *ArtifactBundle) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	p := &bundle.Plan
	if _, err := tx.Exec(ctx, `
		INSERT INTO route_plans (
			id, owner_user_id, organization_id, status, plan_date,
			input_payload, summary_metrics, geometry, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		string(p.ID), string(p.OwnerUserID), idPtr(p.OrganizationID), string(p.Status),
		p.PlanDate, p.InputPayload, p.SummaryMetrics, p.Geometry, now,
	); err != nil {
		return err
	}

	for i := range bundle.Trips {
		t := &bundle.Trips[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO trips (
				id, owner_user_id, organization_id, route_plan_id, driver_id,
				vehicle_id, status, trip_date, start_at, end_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
			string(t.ID), string(t.OwnerUserID), idPtr(t.OrganizationID),
			idPtr(t.RoutePlanID), idPtr(t.DriverID), idPtr(t.VehicleID),
			string(t.Status), t.TripDate, t.StartAt, t.EndAt, now,
		); err != nil {
			return err
		}
	}

	for i := range bundle.RouteStops {
		rs := &bundle.RouteStops[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO route_stops (
				id, route_plan_id, stop_id, stop_order, eta_at,
				distance_meters, duration_seconds, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
			string(rs.ID), string(rs.RoutePlanID), idPtr(rs.StopID), rs.StopOrder,
			rs.EtaAt, rs.DistanceMeters, rs.DurationSeconds, now,
		); err != nil {
			return err
		}
	}

	for i := range bundle.TripStops {
		ts := &bundle.TripStops[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO trip_stops (
				id, trip_id, stop_id, stop_order, status, eta_at,
				arrived_at, completed_at, failure_reason, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
			string(ts.ID), string(ts.TripID), idPtr(ts.StopID), ts.StopOrder,
			string(ts.Status), ts.EtaAt, ts.ArrivedAt, ts.CompletedAt, ts.FailureReason, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetPlan reads a plan visible to the scope: any plan in the caller's
// organization, or the caller's own plans when no organization is set.
func (s *Store) GetPlan(ctx context.Context, scope PlanScope, planID types.ID) (*RoutePlan, error) {
	query := `
		SELECT id, owner_user_id, organization_id, status, plan_date,
		       input_payload, summary_metrics, geometry, created_at, updated_at
		FROM route_plans
		WHERE id = $1 AND `
	args := []any{string(planID)}
	if scope.OrganizationID != nil {
		query += `organization_id = $2`
		args = append(args, string(*scope.OrganizationID))
	} else {
		query += `owner_user_id = $2`
		args = append(args, string(scope.OwnerUserID))
	}
	return scanPlan(s.db.QueryRow(ctx, query, args...))
}

func (s *Store) ListPlans(ctx context.Context, scope PlanScope, f PlanFilter) ([]*RoutePlan, error) {
	query := `
		SELECT id, owner_user_id, organization_id, status, plan_date,
		       input_payload, summary_metrics, geometry, created_at, updated_at
		FROM route_plans
		WHERE `
	var args []any
	if scope.OrganizationID != nil {
		args = append(args, string(*scope.OrganizationID))
		query += fmt.Sprintf("organization_id = $%d", len(args))
	} else {
		args = append(args, string(scope.OwnerUserID))
		query += fmt.Sprintf("owner_user_id = $%d", len(args))
	}
	if f.PlanDate != "" {
		args = append(args, f.PlanDate)
		query += fmt.Sprintf(" AND plan_date = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RoutePlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MarkPlanDispatched(ctx context.Context, planID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE route_plans SET status = $2, updated_at = $3 WHERE id = $1`,
		string(planID), string(PlanDispatched), time.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListRouteStops(ctx context.Context, planID types.ID) ([]*RouteStop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, route_plan_id, stop_id, stop_order, eta_at,
		       distance_meters, duration_seconds, created_at, updated_at
		FROM route_stops
		WHERE route_plan_id = $1
		ORDER BY stop_order`,
		string(planID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RouteStop
	for rows.Next() {
		var rs RouteStop
		if err := rows.Scan(
			&rs.ID, &rs.RoutePlanID, &rs.StopID, &rs.StopOrder, &rs.EtaAt,
			&rs.DistanceMeters, &rs.DurationSeconds, &rs.CreatedAt, &rs.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &rs)
	}
	return out, rows.Err()
}

// UpdateRouteStopOrders rewrites stop_order and eta_at for a plan's stops
// in one transaction.
func (s *Store) UpdateRouteStopOrders(ctx context.Context, planID types.ID, stops []*RouteStop) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	for _, rs := range stops {
		tag, err := tx.Exec(ctx, `
			UPDATE route_stops SET stop_order = $3, eta_at = $4, updated_at = $5
			WHERE id = $1 AND route_plan_id = $2`,
			string(rs.ID), string(planID), rs.StopOrder, rs.EtaAt, now,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) FindTripByPlan(ctx context.Context, planID types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_user_id, organization_id, route_plan_id, driver_id,
		       vehicle_id, status, trip_date, start_at, end_at, created_at, updated_at
		FROM trips
		WHERE route_plan_id = $1
		ORDER BY created_at
		LIMIT 1`,
		string(planID),
	)
	return scanTrip(row)
}

func (s *Store) CreateTrip(ctx context.Context, t *Trip) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, owner_user_id, organization_id, route_plan_id, driver_id,
			vehicle_id, status, trip_date, start_at, end_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		string(t.ID), string(t.OwnerUserID), idPtr(t.OrganizationID),
		idPtr(t.RoutePlanID), idPtr(t.DriverID), idPtr(t.VehicleID),
		string(t.Status), t.TripDate, t.StartAt, t.EndAt, now,
	)
	return err
}

func (s *Store) UpdateTripAssignment(ctx context.Context, tripID types.ID, driverID types.ID, vehicleID *types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips SET driver_id = $2, vehicle_id = $3, updated_at = $4
		WHERE id = $1`,
		string(tripID), string(driverID), idPtr(vehicleID), time.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListTripStops(ctx context.Context, tripID types.ID) ([]*TripStop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, stop_id, stop_order, status, eta_at,
		       arrived_at, completed_at, failure_reason, created_at, updated_at
		FROM trip_stops
		WHERE trip_id = $1
		ORDER BY stop_order`,
		string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TripStop
	for rows.Next() {
		ts, err := scanTripStop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) GetTripStop(ctx context.Context, tripStopID types.ID) (*TripStop, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, trip_id, stop_id, stop_order, status, eta_at,
		       arrived_at, completed_at, failure_reason, created_at, updated_at
		FROM trip_stops
		WHERE id = $1`,
		string(tripStopID),
	)
	return scanTripStop(row)
}

// UpdateTripStopStatus applies the transition only when the row is still
// in the expected state, so concurrent driver updates cannot skip steps.
func (s *Store) UpdateTripStopStatus(ctx context.Context, tripStopID types.ID, from, to TripStopStatus, ts *TripStop) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trip_stops
		SET status = $3, arrived_at = $4, completed_at = $5, failure_reason = $6, updated_at = $7
		WHERE id = $1 AND status = $2`,
		string(tripStopID), string(from), string(to),
		ts.ArrivedAt, ts.CompletedAt, ts.FailureReason, time.Now(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPlan(row pgx.Row) (*RoutePlan, error) {
	var p RoutePlan
	err := row.Scan(
		&p.ID, &p.OwnerUserID, &p.OrganizationID, &p.Status, &p.PlanDate,
		&p.InputPayload, &p.SummaryMetrics, &p.Geometry, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	err := row.Scan(
		&t.ID, &t.OwnerUserID, &t.OrganizationID, &t.RoutePlanID, &t.DriverID,
		&t.VehicleID, &t.Status, &t.TripDate, &t.StartAt, &t.EndAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTripStop(row pgx.Row) (*TripStop, error) {
	var ts TripStop
	err := row.Scan(
		&ts.ID, &ts.TripID, &ts.StopID, &ts.StopOrder, &ts.Status, &ts.EtaAt,
		&ts.ArrivedAt, &ts.CompletedAt, &ts.FailureReason, &ts.CreatedAt, &ts.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
