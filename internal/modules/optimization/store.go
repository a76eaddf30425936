// README: Optimization job store backed by PostgreSQL; claim is a conditional update.
package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lastmile/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err = s.db.Exec(ctx, `
		INSERT INTO optimization_jobs (
			id, owner_user_id, organization_id, version, status,
			payload, result, result_version, error_message, last_error_at,
			attempts, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		string(job.ID), string(job.OwnerUserID), idPtr(job.OrganizationID),
		job.Version, string(job.Status),
		payload, job.Result, job.ResultVersion, job.ErrorMessage, job.LastErrorAt,
		job.Attempts, now,
	)
	return err
}

func (s *Store) Get(ctx context.Context, jobID types.ID) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_user_id, organization_id, version, status,
		       payload, result, result_version, error_message, last_error_at,
		       attempts, created_at, updated_at
		FROM optimization_jobs
		WHERE id = $1`,
		string(jobID),
	)
	return scanJob(row)
}

// GetForOwner scopes reads to the submitting user so status and solution
// endpoints never leak another tenant's job.
func (s *Store) GetForOwner(ctx context.Context, ownerID, jobID types.ID) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_user_id, organization_id, version, status,
		       payload, result, result_version, error_message, last_error_at,
		       attempts, created_at, updated_at
		FROM optimization_jobs
		WHERE id = $1 AND owner_user_id = $2`,
		string(jobID), string(ownerID),
	)
	return scanJob(row)
}

// ClaimProcessing moves an enqueued job to processing and bumps the
// attempt counter. It reports false when the job is not claimable, which
// is how duplicate queue deliveries and terminal states are absorbed.
func (s *Store) ClaimProcessing(ctx context.Context, jobID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE optimization_jobs
		SET status = $2, attempts = attempts + 1, updated_at = $3
		WHERE id = $1 AND status = $4`,
		string(jobID), string(JobProcessing), time.Now(), string(JobEnqueued),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted stores the result and clears any error from earlier
// attempts of the same run.
func (s *Store) MarkCompleted(ctx context.Context, jobID types.ID, result json.RawMessage, resultVersion string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE optimization_jobs
		SET status = $2, result = $3, result_version = $4,
		    error_message = NULL, last_error_at = NULL, updated_at = $5
		WHERE id = $1`,
		string(jobID), string(JobCompleted), result, resultVersion, time.Now(),
	)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, jobID types.ID, message string) error {
	now := time.Now()
	_, err := s.db.Exec(ctx, `
		UPDATE optimization_jobs
		SET status = $2, error_message = $3, last_error_at = $4, updated_at = $4
		WHERE id = $1`,
		string(jobID), string(JobFailed), message, now,
	)
	return err
}

func (s *Store) AppendLog(ctx context.Context, jobID types.ID, typ LogType, message string, data json.RawMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO optimization_job_logs (job_id, type, message, data, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		string(jobID), string(typ), message, data, time.Now(),
	)
	return err
}

func (s *Store) ListLogs(ctx context.Context, jobID types.ID) ([]*JobLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, job_id, type, message, data, created_at
		FROM optimization_job_logs
		WHERE job_id = $1
		ORDER BY id`,
		string(jobID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*JobLog
	for rows.Next() {
		var l JobLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.Type, &l.Message, &l.Data, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var payload []byte
	err := row.Scan(
		&j.ID, &j.OwnerUserID, &j.OrganizationID, &j.Version, &j.Status,
		&payload, &j.Result, &j.ResultVersion, &j.ErrorMessage, &j.LastErrorAt,
		&j.Attempts, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, err
	}
	return &j, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
