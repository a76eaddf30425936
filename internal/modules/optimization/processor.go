// README: Async job processor; claims enqueued jobs, solves, materializes artifacts.
package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

// Solver is the routing backend. *SolverClient satisfies it.
type Solver interface {
	Solve(ctx context.Context, payload Payload) (*Solution, error)
}

// Materializer turns a completed solution into persisted plan artifacts.
type Materializer interface {
	Materialize(ctx context.Context, job *Job, sol *Solution) (*planner.ArtifactBundle, error)
}

type Processor struct {
	store     JobStore
	solver    Solver
	artifacts Materializer
	log       *slog.Logger
}

func NewProcessor(store JobStore, solver Solver, artifacts Materializer, log *slog.Logger) *Processor {
	return &Processor{store: store, solver: solver, artifacts: artifacts, log: log}
}

// Process handles one queue delivery. Unknown jobs and jobs no longer in
// the enqueued state are absorbed silently so at-least-once delivery and
// duplicate messages stay harmless. Solve and persistence failures land
// in the job record; the error return is reserved for infrastructure
// faults where retrying the delivery makes sense.
func (p *Processor) Process(ctx context.Context, jobID types.ID) error {
	job, err := p.store.Get(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		p.log.Warn("dropping delivery for unknown job", "jobId", jobID)
		return nil
	}
	if err != nil {
		return err
	}

	claimed, err := p.store.ClaimProcessing(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		p.log.Info("job not claimable, skipping", "jobId", jobID, "status", job.Status)
		return nil
	}

	_ = p.store.AppendLog(ctx, jobID, LogInfo, "Processing started", nil)
	p.log.Info("processing optimization job", "jobId", jobID, "version", job.Version)

	sol, err := p.solver.Solve(ctx, job.Payload)
	if err != nil {
		return p.fail(ctx, jobID, "Solver call failed", err)
	}

	if _, err := p.artifacts.Materialize(ctx, job, sol); err != nil {
		return p.fail(ctx, jobID, "Failed to persist route artifacts", err)
	}

	result, err := json.Marshal(sol)
	if err != nil {
		return p.fail(ctx, jobID, "Failed to encode solution", err)
	}
	if err := p.store.MarkCompleted(ctx, jobID, result, job.Version); err != nil {
		return err
	}
	_ = p.store.AppendLog(ctx, jobID, LogInfo, "Processing completed",
		mustJSON(map[string]int{"routes": len(sol.Routes), "unassigned": len(sol.Unassigned)}))
	p.log.Info("optimization job completed", "jobId", jobID, "routes", len(sol.Routes))
	return nil
}

func (p *Processor) fail(ctx context.Context, jobID types.ID, message string, cause error) error {
	full := fmt.Sprintf("%s: %v", message, cause)
	if err := p.store.MarkFailed(ctx, jobID, full); err != nil {
		return err
	}
	_ = p.store.AppendLog(ctx, jobID, LogError, message, mustJSON(map[string]string{"error": cause.Error()}))
	p.log.Error("optimization job failed", "jobId", jobID, "error", cause)
	return nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
