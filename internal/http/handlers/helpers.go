// README: HTTP helper utilities for JSON, identity, and error mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lastmile/internal/modules/dispatch"
	"lastmile/internal/modules/fleet"
	"lastmile/internal/modules/optimization"
	"lastmile/internal/modules/planner"
	"lastmile/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinels onto HTTP statuses. Rule
// rejections carry their joined reasons so the caller sees every
// violated rule at once.
func writeServiceError(w http.ResponseWriter, err error) {
	var rejected *dispatch.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeError(w, http.StatusUnprocessableEntity, strings.Join(rejected.Reasons, "; "))
	case errors.Is(err, optimization.ErrValidation), errors.Is(err, planner.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, optimization.ErrNotFound),
		errors.Is(err, planner.ErrNotFound),
		errors.Is(err, fleet.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, optimization.ErrConflict), errors.Is(err, planner.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// identity reads the caller from headers; authentication itself lives in
// front of this service.
func identity(r *http.Request) (types.ID, *types.ID, bool) {
	user := types.ID(r.Header.Get("X-User-ID"))
	if user == "" {
		return "", nil, false
	}
	var org *types.ID
	if v := r.Header.Get("X-Organization-ID"); v != "" {
		id := types.ID(v)
		org = &id
	}
	return user, org, true
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (types.ID, *types.ID, bool) {
	user, org, ok := identity(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing X-User-ID header")
	}
	return user, org, ok
}

func orgOrEmpty(org *types.ID) types.ID {
	if org == nil {
		return ""
	}
	return *org
}
