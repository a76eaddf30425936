// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"lastmile/internal/http/handlers"
	"lastmile/internal/http/middleware"
	"lastmile/internal/modules/dispatch"
	"lastmile/internal/modules/optimization"
	"lastmile/internal/modules/planner"
)

func NewRouter(
	optimizationService *optimization.Service,
	dispatchCoordinator *dispatch.Coordinator,
	plannerService *planner.Service,
	log *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	optimizationHandler := handlers.NewOptimizationHandler(optimizationService)
	mux.HandleFunc("POST /api/optimizations", optimizationHandler.CreateLegacy)
	mux.HandleFunc("POST /api/v2/optimizations", optimizationHandler.CreateV2)
	mux.HandleFunc("GET /api/optimizations/{jobId}", optimizationHandler.Status)
	mux.HandleFunc("GET /api/optimizations/{jobId}/solution", optimizationHandler.Solution)
	mux.HandleFunc("GET /api/optimizations/{jobId}/logs", optimizationHandler.Logs)

	dispatchHandler := handlers.NewDispatchHandler(dispatchCoordinator)
	mux.HandleFunc("POST /api/dispatches/route", dispatchHandler.Route)
	mux.HandleFunc("POST /api/dispatches/stop", dispatchHandler.Stop)

	planHandler := handlers.NewPlanHandler(plannerService)
	mux.HandleFunc("GET /api/route-plans", planHandler.List)
	mux.HandleFunc("GET /api/route-plans/{id}", planHandler.Get)
	mux.HandleFunc("GET /api/route-plans/{id}/stops", planHandler.Stops)
	mux.HandleFunc("POST /api/route-plans/{id}/assign-driver", planHandler.AssignDriver)
	mux.HandleFunc("POST /api/route-plans/{id}/reorder", planHandler.Reorder)

	tripHandler := handlers.NewTripHandler(plannerService)
	mux.HandleFunc("GET /api/driver/trips/{id}/stops", tripHandler.Stops)
	mux.HandleFunc("POST /api/driver/trip-stops/{id}/status", tripHandler.UpdateStopStatus)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	handler = middleware.Logging(log)(handler)
	handler = middleware.Recovery(log)(handler)
	return handler
}
