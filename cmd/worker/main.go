// Command worker runs the polling loop described in spec.md §4.G: it
// claims batches of queued executions, runs each one through
// internal/exec, and persists results and logs. It exposes Prometheus
// metrics on a small health endpoint, separate from the API gateway
// in cmd/api.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flowcraft/engine/internal/metrics"
	"github.com/flowcraft/engine/internal/nodes"
	"github.com/flowcraft/engine/internal/nodes/httpclient"
	"github.com/flowcraft/engine/internal/nodes/mailer"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/store"
	"github.com/flowcraft/engine/internal/telemetry"
	"github.com/flowcraft/engine/internal/worker"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	dbURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok {
		slog.Error("DATABASE_URL is not set")
		return
	}

	pool, err := store.Connect(ctx, store.DefaultPoolConfig(dbURL))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return
	}
	defer pool.Close()

	st, err := store.New(pool)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		return
	}

	reg := registry.New()
	deps := nodes.Deps{
		HTTP:  httpclient.New(nil),
		Email: mailer.New(),
	}
	nodes.RegisterBuiltins(reg, deps)

	tracerProvider := telemetry.NewProvider()
	defer tracerProvider.Shutdown(ctx)

	workerCfg := configFromEnv()
	wrk := worker.New(st, reg, workerCfg)
	wrk.Metrics = metrics.New(nil)
	wrk.Tracer = tracerProvider

	if redisAddr, ok := os.LookupEnv("REDIS_ADDR"); ok {
		maxPerCycle := int64(50)
		if v := os.Getenv("MAX_CLAIMS_PER_CYCLE"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				maxPerCycle = n
			}
		}
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		wrk.Limiter = worker.NewRedisLimiter(redisClient, "flowcraft:claim-budget", maxPerCycle, workerCfg.PollInterval)
	}

	healthSrv := &http.Server{Addr: ":8081", Handler: promhttp.Handler()}
	go func() {
		slog.Info("starting worker health endpoint", "addr", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health endpoint error", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	workerErrors := make(chan error, 1)
	go func() { workerErrors <- wrk.Run(runCtx) }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		if err != nil {
			slog.Error("worker error", "error", err)
		}
	case sig := <-shutdown:
		slog.Info("shutdown signal received, draining in-flight executions", "signal", sig)
		cancel()
		<-workerErrors
	}

	shutdownCtx, cancelHealth := context.WithTimeout(ctx, 5*time.Second)
	defer cancelHealth()
	healthSrv.Shutdown(shutdownCtx)
}

// configFromEnv reads POLL_INTERVAL (ms) and BATCH_SIZE from the
// environment, falling back to worker.DefaultConfig when unset or
// unparsable, matching spec.md §6's worker environment contract.
func configFromEnv() worker.Config {
	cfg := worker.DefaultConfig()
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	return cfg
}
