package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"algojudge/internal/auth"
	"algojudge/internal/config"
	"algojudge/internal/db"
	"algojudge/internal/executor"
	"algojudge/internal/harness"
	"algojudge/internal/logging"
	"algojudge/internal/metrics"
	"algojudge/internal/middleware"
	"algojudge/internal/problems"
	"algojudge/internal/push"
	"algojudge/internal/queue"
	"algojudge/internal/sandbox"
	"algojudge/internal/submissions"
	"algojudge/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	log := logging.L()
	defer logging.Sync()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
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

	jobQueue := queue.New(redisClient, cfg.QueueName)
	problemClient := problems.NewClient(cfg.ProblemServiceURL)
	authService := auth.NewService(cfg.JWTSecret)
	hub := ws.NewHub()
	service := submissions.NewService(store, problemClient, jobQueue)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.NewIPRateLimiter(20, 40).Middleware())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())
	router.GET("/ws", hub.Handle)

	submissions.NewHandlers(service, hub).Register(router, middleware.RequireAuth(authService))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Single-process deployments grade in the same binary and skip the
	// HTTP push hop entirely.
	if cfg.EmbedWorker {
		runner, err := sandbox.NewDockerRunner(cfg)
		if err != nil {
			log.Fatal("docker client init failed", zap.Error(err))
		}
		defer runner.Close()

		exec := executor.New(runner, harness.NewBuilder(cfg.TestCaseTimeout, cfg.CompileRunTimeout))
		worker := submissions.NewWorker(store, jobQueue, exec, &push.LocalPublisher{Hub: hub}, cfg.WorkerConcurrency)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error("embedded worker stopped", zap.Error(err))
			}
		}()
		log.Info("embedded worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}
