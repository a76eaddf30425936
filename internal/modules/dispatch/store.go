// README: Dispatch persistence; one row per accepted assignment.
package dispatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lastmile/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Dispatch) error {
	d.CreatedAt = time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO dispatches (
			id, owner_user_id, organization_id, dispatch_type,
			route_plan_id, stop_id, driver_id, vehicle_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(d.ID), string(d.OwnerUserID), string(d.OrganizationID), string(d.Type),
		idPtr(d.RoutePlanID), idPtr(d.StopID), string(d.DriverID), idPtr(d.VehicleID),
		d.CreatedAt,
	)
	return err
}

// RecordRouteAssignment writes the dispatch row for a plan-level driver
// assignment. It backs the planner's DispatchWriter dependency.
func (s *Store) RecordRouteAssignment(ctx context.Context, ownerID types.ID, orgID *types.ID, planID, driverID types.ID, vehicleID *types.ID) (types.ID, error) {
	org := types.ID("")
	if orgID != nil {
		org = *orgID
	}
	d := &Dispatch{
		ID:             types.NewID(),
		OwnerUserID:    ownerID,
		OrganizationID: org,
		Type:           TypeRoute,
		RoutePlanID:    &planID,
		DriverID:       driverID,
		VehicleID:      vehicleID,
	}
	if err := s.Create(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

func (s *Store) ListByDriver(ctx context.Context, orgID, driverID types.ID) ([]*Dispatch, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_user_id, organization_id, dispatch_type,
		       route_plan_id, stop_id, driver_id, vehicle_id, created_at
		FROM dispatches
		WHERE organization_id = $1 AND driver_id = $2
		ORDER BY created_at DESC`,
		string(orgID), string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Dispatch
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(
			&d.ID, &d.OwnerUserID, &d.OrganizationID, &d.Type,
			&d.RoutePlanID, &d.StopID, &d.DriverID, &d.VehicleID, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
