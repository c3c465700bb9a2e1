// Command api runs the HTTP gateway described as illustrative in
// spec.md §6: DSL validation, execution submission, catalog listing,
// and CRUD delegation to the store. It does not run the worker loop;
// see cmd/worker for that process.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowcraft/engine/internal/api"
	"github.com/flowcraft/engine/internal/nodes"
	"github.com/flowcraft/engine/internal/nodes/httpclient"
	"github.com/flowcraft/engine/internal/nodes/mailer"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/store"
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

	mainRouter := mux.NewRouter()
	mainRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	api.NewService(st, reg, deps).LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"http://localhost:3003"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{Addr: ":8080", Handler: corsHandler}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("could not stop server gracefully", "error", err)
		srv.Close()
	}
}
