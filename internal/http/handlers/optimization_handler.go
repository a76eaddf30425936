// README: Optimization submission and polling handlers.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"lastmile/internal/modules/optimization"
	"lastmile/internal/types"
)

type OptimizationHandler struct {
	optimization *optimization.Service
}

func NewOptimizationHandler(svc *optimization.Service) *OptimizationHandler {
	return &OptimizationHandler{optimization: svc}
}

type jobAcceptedResponse struct {
	JobID  types.ID               `json:"jobId"`
	Status optimization.JobStatus `json:"status"`
}

func (h *OptimizationHandler) CreateLegacy(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req optimization.LegacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	job, err := h.optimization.SubmitLegacy(r.Context(), optimization.SubmitContext{
		OwnerUserID:    user,
		OrganizationID: org,
	}, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: job.ID, Status: job.Status})
}

func (h *OptimizationHandler) CreateV2(w http.ResponseWriter, r *http.Request) {
	user, org, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req optimization.SolverNativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	job, err := h.optimization.SubmitSolverNative(r.Context(), optimization.SubmitContext{
		OwnerUserID:    user,
		OrganizationID: org,
	}, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{JobID: job.ID, Status: job.Status})
}

func (h *OptimizationHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	view, err := h.optimization.Status(r.Context(), user, types.ID(r.PathValue("jobId")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OptimizationHandler) Solution(w http.ResponseWriter, r *http.Request) {
	user, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	result, err := h.optimization.Solution(r.Context(), user, types.ID(r.PathValue("jobId")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

type jobLogView struct {
	Type      optimization.LogType `json:"type"`
	Message   string               `json:"message"`
	Data      json.RawMessage      `json:"data,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

func (h *OptimizationHandler) Logs(w http.ResponseWriter, r *http.Request) {
	user, _, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	logs, err := h.optimization.Logs(r.Context(), user, types.ID(r.PathValue("jobId")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]jobLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, jobLogView{Type: l.Type, Message: l.Message, Data: l.Data, CreatedAt: l.CreatedAt})
	}
	writeJSON(w, http.StatusOK, views)
}
