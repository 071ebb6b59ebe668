package main

import (
	"context"
	"os/signal"
	"syscall"

	"algojudge/internal/config"
	"algojudge/internal/db"
	"algojudge/internal/executor"
	"algojudge/internal/harness"
	"algojudge/internal/logging"
	"algojudge/internal/push"
	"algojudge/internal/queue"
	"algojudge/internal/sandbox"
	"algojudge/internal/submissions"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	log := logging.L()
	defer logging.Sync()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	redisClient, err := db.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	runner, err := sandbox.NewDockerRunner(cfg)
	if err != nil {
		log.Fatal("docker client init failed", zap.Error(err))
	}
	defer runner.Close()

	jobQueue := queue.New(redisClient, cfg.QueueName)
	exec := executor.New(runner, harness.NewBuilder(cfg.TestCaseTimeout, cfg.CompileRunTimeout))
	notifier := push.NewNotifier(cfg.PushEndpoints)
	worker := submissions.NewWorker(store, jobQueue, exec, notifier, cfg.WorkerConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("worker starting",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", cfg.QueueName),
		zap.Strings("push_endpoints", cfg.PushEndpoints))

	if err := worker.Run(ctx); err != nil {
		log.Fatal("worker stopped", zap.Error(err))
	}
	log.Info("worker shut down")
}
