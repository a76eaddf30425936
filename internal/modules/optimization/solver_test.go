package optimization

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/config"
	"lastmile/internal/geo"
	"lastmile/internal/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, Backoff: []time.Duration{time.Millisecond}}
}

func testPayload() Payload {
	return Payload{
		Drivers: []DriverInput{{
			ID:                 1,
			Name:               "Ana",
			StartLocation:      geo.Location{121.0, 14.5},
			EndLocation:        geo.Location{121.0, 14.5},
			AvailabilityWindow: TimeWindow{28800, 61200},
			MaxTasks:           4,
		}},
		Stops: []StopInput{{ID: 10, Location: geo.Location{121.05, 14.55}, ServiceSeconds: 300}},
	}
}

func TestSolveSendsWireRequest(t *testing.T) {
	var got solveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Solution{Routes: []SolutionRoute{{Vehicle: 1}}})
	}))
	defer srv.Close()

	client := NewSolverClient(config.SolverConfig{URL: srv.URL, CallTimeout: 5 * time.Second}, fastPolicy(1))
	sol, err := client.Solve(context.Background(), testPayload())
	require.NoError(t, err)

	require.Len(t, got.Vehicles, 1)
	assert.Equal(t, int64(1), got.Vehicles[0].ID)
	assert.Equal(t, TimeWindow{28800, 61200}, got.Vehicles[0].TimeWindow)
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, 300, got.Jobs[0].Service)
	assert.True(t, got.Options.Geometry)

	require.Len(t, sol.Routes, 1)
}

func TestSolveRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "solver busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Solution{Routes: []SolutionRoute{{Vehicle: 1}}})
	}))
	defer srv.Close()

	client := NewSolverClient(config.SolverConfig{URL: srv.URL, CallTimeout: 5 * time.Second}, fastPolicy(3))
	sol, err := client.Solve(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Len(t, sol.Routes, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSolveExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSolverClient(config.SolverConfig{URL: srv.URL, CallTimeout: 5 * time.Second}, fastPolicy(3))
	_, err := client.Solve(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solver error: 500")
	assert.Equal(t, int32(3), calls.Load())
}
