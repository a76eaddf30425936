package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lastmile/internal/modules/dispatch"
	"lastmile/internal/modules/optimization"
	"lastmile/internal/modules/planner"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: drivers must be a non-empty array", optimization.ErrValidation), http.StatusBadRequest},
		{"plan validation", fmt.Errorf("%w: bad stop ids", planner.ErrValidation), http.StatusBadRequest},
		{"not found", optimization.ErrNotFound, http.StatusNotFound},
		{"plan not found", planner.ErrNotFound, http.StatusNotFound},
		{"conflict", optimization.ErrConflict, http.StatusConflict},
		{"plan conflict", fmt.Errorf("%w: cannot move trip stop", planner.ErrConflict), http.StatusConflict},
		{"rejection", &dispatch.RejectedError{Reasons: []string{"driver is outside shift window"}}, http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestRejectedErrorJoinsReasons(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, &dispatch.RejectedError{
		Reasons: []string{"driver state is failed", "vehicle missing required skills: cold"},
	})
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := "driver state is failed; vehicle missing required skills: cold"
	if body.Error != want {
		t.Fatalf("error = %q, want %q", body.Error, want)
	}
}

func TestIdentityHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/route-plans", nil)
	if _, _, ok := identity(r); ok {
		t.Fatal("missing X-User-ID should not produce an identity")
	}

	r.Header.Set("X-User-ID", "u1")
	user, org, ok := identity(r)
	if !ok || string(user) != "u1" || org != nil {
		t.Fatalf("identity = %v, %v, %v", user, org, ok)
	}

	r.Header.Set("X-Organization-ID", "o1")
	_, org, _ = identity(r)
	if org == nil || string(*org) != "o1" {
		t.Fatalf("org = %v", org)
	}
}
