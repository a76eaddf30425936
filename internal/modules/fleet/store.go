// README: Fleet store backed by PostgreSQL; org-scoped point lookups.
package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lastmile/internal/geo"
	"lastmile/internal/types"
)

var ErrNotFound = errors.New("fleet record not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetDriver(ctx context.Context, orgID, driverID types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, user_id, name, phone, state,
		       shift_start_seconds, shift_end_seconds,
		       start_lon, start_lat, end_lon, end_lat,
		       created_at, updated_at, deleted_at
		FROM drivers
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`,
		string(driverID), string(orgID),
	)
	return scanDriver(row)
}

// ListActiveDriversByIDs resolves selected driver ids for payload
// normalization. Results come back in no particular order; callers match
// by id.
func (s *Store) ListActiveDriversByIDs(ctx context.Context, orgID types.ID, ids []types.ID) ([]*Driver, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, organization_id, user_id, name, phone, state,
		       shift_start_seconds, shift_end_seconds,
		       start_lon, start_lat, end_lon, end_lat,
		       created_at, updated_at, deleted_at
		FROM drivers
		WHERE id = ANY($1) AND organization_id = $2 AND deleted_at IS NULL`,
		raw, string(orgID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetVehicle(ctx context.Context, orgID, vehicleID types.ID) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, name, capacity, skills, created_at, updated_at
		FROM vehicles
		WHERE id = $1 AND organization_id = $2`,
		string(vehicleID), string(orgID),
	)
	var v Vehicle
	err := row.Scan(&v.ID, &v.OrganizationID, &v.Name, &v.Capacity, &v.Skills, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) GetStop(ctx context.Context, orgID, stopID types.ID) (*Stop, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, organization_id, external_ref, lon, lat, service_seconds,
		       time_window, priority, created_at, updated_at
		FROM stops
		WHERE id = $1 AND organization_id = $2`,
		string(stopID), string(orgID),
	)
	var st Stop
	err := row.Scan(
		&st.ID, &st.OrganizationID, &st.ExternalRef,
		&st.Location[0], &st.Location[1], &st.ServiceSeconds,
		&st.TimeWindow, &st.Priority, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) CreateDriver(ctx context.Context, d *Driver) error {
	now := time.Now()
	var startLon, startLat, endLon, endLat *float64
	if d.StartLocation != nil {
		startLon, startLat = &d.StartLocation[0], &d.StartLocation[1]
	}
	if d.EndLocation != nil {
		endLon, endLat = &d.EndLocation[0], &d.EndLocation[1]
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (
			id, organization_id, user_id, name, phone, state,
			shift_start_seconds, shift_end_seconds,
			start_lon, start_lat, end_lon, end_lat,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		string(d.ID), string(d.OrganizationID), idPtr(d.UserID), d.Name, d.Phone, string(d.State),
		d.ShiftStartSeconds, d.ShiftEndSeconds,
		startLon, startLat, endLon, endLat,
		now,
	)
	return err
}

func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	now := time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (id, organization_id, name, capacity, skills, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		string(v.ID), string(v.OrganizationID), v.Name, v.Capacity, v.Skills, now,
	)
	return err
}

func (s *Store) CreateStop(ctx context.Context, st *Stop) error {
	now := time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO stops (
			id, organization_id, external_ref, lon, lat,
			service_seconds, time_window, priority, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		string(st.ID), string(st.OrganizationID), st.ExternalRef,
		st.Location[0], st.Location[1],
		st.ServiceSeconds, st.TimeWindow, st.Priority, now,
	)
	return err
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var startLon, startLat, endLon, endLat *float64
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.UserID, &d.Name, &d.Phone, &d.State,
		&d.ShiftStartSeconds, &d.ShiftEndSeconds,
		&startLon, &startLat, &endLon, &endLat,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if startLon != nil && startLat != nil {
		loc := geo.Location{*startLon, *startLat}
		d.StartLocation = &loc
	}
	if endLon != nil && endLat != nil {
		loc := geo.Location{*endLon, *endLat}
		d.EndLocation = &loc
	}
	return &d, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
