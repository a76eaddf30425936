// README: Optimization submission service; normalizes, persists, enqueues.
package optimization

import (
	"context"
	"encoding/json"
	"log/slog"

	"lastmile/internal/types"
)

// JobStore is the persistence surface the service and processor share.
// *Store satisfies it; tests substitute in-memory fakes.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID types.ID) (*Job, error)
	GetForOwner(ctx context.Context, ownerID, jobID types.ID) (*Job, error)
	ClaimProcessing(ctx context.Context, jobID types.ID) (bool, error)
	MarkCompleted(ctx context.Context, jobID types.ID, result json.RawMessage, resultVersion string) error
	MarkFailed(ctx context.Context, jobID types.ID, message string) error
	AppendLog(ctx context.Context, jobID types.ID, typ LogType, message string, data json.RawMessage) error
	ListLogs(ctx context.Context, jobID types.ID) ([]*JobLog, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobID types.ID) error
}

type Service struct {
	store      JobStore
	queue      Enqueuer
	normalizer *Normalizer
	log        *slog.Logger
}

func NewService(store JobStore, queue Enqueuer, normalizer *Normalizer, log *slog.Logger) *Service {
	return &Service{store: store, queue: queue, normalizer: normalizer, log: log}
}

type SubmitContext struct {
	OwnerUserID    types.ID
	OrganizationID *types.ID
}

func (sub SubmitContext) orgID() types.ID {
	if sub.OrganizationID == nil {
		return ""
	}
	return *sub.OrganizationID
}

// SubmitLegacy accepts the original drivers+stops request shape.
func (s *Service) SubmitLegacy(ctx context.Context, sub SubmitContext, req LegacyRequest) (*Job, error) {
	payload, err := s.normalizer.NormalizeLegacy(req)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, sub, "v1", payload, "Job enqueued")
}

// SubmitSolverNative accepts the solver-native vehicles+jobs shape and
// the selectedDriverIds+jobs shape.
func (s *Service) SubmitSolverNative(ctx context.Context, sub SubmitContext, req SolverNativeRequest) (*Job, error) {
	payload, err := s.normalizer.NormalizeSolverNative(ctx, sub.orgID(), req)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, sub, "v2", payload, "V2 job enqueued")
}

func (s *Service) submit(ctx context.Context, sub SubmitContext, version string, payload Payload, enqueuedMsg string) (*Job, error) {
	job := &Job{
		ID:             types.NewID(),
		OwnerUserID:    sub.OwnerUserID,
		OrganizationID: sub.OrganizationID,
		Version:        version,
		Status:         JobEnqueued,
		Payload:        payload,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	_ = s.store.AppendLog(ctx, job.ID, LogInfo, enqueuedMsg, nil)

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// The row stays enqueued; a requeue sweep or resubmission picks it
		// up. Surfacing the error here would orphan the persisted job.
		s.log.Error("enqueue failed", "jobId", job.ID, "error", err)
		_ = s.store.AppendLog(ctx, job.ID, LogError, "Failed to enqueue job", nil)
	}

	return job, nil
}

type StatusView struct {
	JobID    types.ID  `json:"jobId"`
	Status   JobStatus `json:"status"`
	Attempts int       `json:"attempts"`
	Error    *string   `json:"error,omitempty"`
}

func (s *Service) Status(ctx context.Context, ownerID, jobID types.ID) (*StatusView, error) {
	job, err := s.store.GetForOwner(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		JobID:    job.ID,
		Status:   job.Status,
		Attempts: job.Attempts,
		Error:    job.ErrorMessage,
	}, nil
}

// Solution returns the stored result. A job without one yet reports
// ErrConflict so callers can distinguish "keep polling" from "gone".
func (s *Service) Solution(ctx context.Context, ownerID, jobID types.ID) (json.RawMessage, error) {
	job, err := s.store.GetForOwner(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if len(job.Result) == 0 {
		return nil, ErrConflict
	}
	return job.Result, nil
}

func (s *Service) Logs(ctx context.Context, ownerID, jobID types.ID) ([]*JobLog, error) {
	if _, err := s.store.GetForOwner(ctx, ownerID, jobID); err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, jobID)
}
