// README: Entry point for the optimization worker pool.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"lastmile/internal/config"
	"lastmile/internal/infra"
	"lastmile/internal/modules/optimization"
	"lastmile/internal/modules/planner"
	"lastmile/internal/retry"
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

	jobStore := optimization.NewStore(dbPool)
	planStore := planner.NewStore(dbPool)
	queue := optimization.NewQueue(redisClient, cfg.Redis.QueueKey)

	solver := optimization.NewSolverClient(cfg.Solver, retry.DefaultPolicy())
	artifacts := optimization.NewArtifactBuilder(planStore)
	processor := optimization.NewProcessor(jobStore, solver, artifacts, logger)

	pool := optimization.NewWorkerPool(queue, processor, cfg.Worker.Count, cfg.Worker.PollTimeout, logger)

	logger.Info("worker pool starting", "workers", cfg.Worker.Count)
	if err := pool.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
