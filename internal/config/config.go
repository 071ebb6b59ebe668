// Package config reads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every knob the server and worker processes read.
type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	ProblemServiceURL string
	JWTSecret         string

	DockerHost string

	QueueName         string
	WorkerConcurrency int
	EmbedWorker       bool

	// Push bridge endpoints the worker broadcasts progress to.
	PushEndpoints []string

	TestCaseTimeout   time.Duration
	CompileRunTimeout time.Duration
	SandboxMemoryMB   int64
	SandboxCPUQuota   int64
	SandboxCPUPeriod  int64
}

// Load builds a Config from environment variables with defaults suitable
// for local development.
func Load() *Config {
	cfg := &Config{
		Port:              envOr("PORT", "5001"),
		Environment:       envOr("ENVIRONMENT", "development"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisHost:         envOr("REDIS_HOST", "localhost"),
		RedisPort:         envInt("REDIS_PORT", 6379),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envInt("REDIS_DB", 0),
		ProblemServiceURL: envOr("PROBLEM_SERVICE_URL", "http://localhost:4000/api/problems"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DockerHost:        envOr("DOCKER_HOST", "unix:///var/run/docker.sock"),
		QueueName:         envOr("QUEUE_NAME", "submission-queue"),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 1),
		EmbedWorker:       envBool("EMBED_WORKER", false),
		TestCaseTimeout:   time.Duration(envInt("TESTCASE_TIMEOUT_SECONDS", 4)) * time.Second,
		CompileRunTimeout: time.Duration(envInt("COMPILE_RUN_TIMEOUT_SECONDS", 10)) * time.Second,
		SandboxMemoryMB:   int64(envInt("SANDBOX_MEMORY_MB", 512)),
		SandboxCPUQuota:   int64(envInt("SANDBOX_CPU_QUOTA", 50000)),
		SandboxCPUPeriod:  int64(envInt("SANDBOX_CPU_PERIOD", 100000)),
	}

	if eps := os.Getenv("PUSH_ENDPOINTS"); eps != "" {
		for _, e := range strings.Split(eps, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.PushEndpoints = append(cfg.PushEndpoints, strings.TrimRight(e, "/"))
			}
		}
	} else {
		cfg.PushEndpoints = []string{"http://localhost:" + cfg.Port}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
