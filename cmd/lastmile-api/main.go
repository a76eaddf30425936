// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lastmile/internal/config"
	httptransport "lastmile/internal/http"
	"lastmile/internal/infra"
	"lastmile/internal/modules/audit"
	"lastmile/internal/modules/dispatch"
	"lastmile/internal/modules/fleet"
	"lastmile/internal/modules/optimization"
	"lastmile/internal/modules/planner"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	fleetStore := fleet.NewStore(dbPool)
	auditStore := audit.NewStore(dbPool)
	planStore := planner.NewStore(dbPool)
	dispatchStore := dispatch.NewStore(dbPool)
	jobStore := optimization.NewStore(dbPool)

	queue := optimization.NewQueue(redisClient, cfg.Redis.QueueKey)
	normalizer := optimization.NewNormalizer(fleetStore)
	optimizationSvc := optimization.NewService(jobStore, queue, normalizer, logger)

	engine := dispatch.NewEngine(cfg.Dispatch.MaxDistanceKm)
	coordinator := dispatch.NewCoordinator(engine, fleetStore, planStore, dispatchStore, auditStore, logger)

	plannerSvc := planner.NewService(planStore, dispatchStore, auditStore, logger)

	handler := httptransport.NewRouter(optimizationSvc, coordinator, plannerSvc, logger)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
