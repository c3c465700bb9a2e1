// Package api exposes the HTTP surface described as illustrative in the
// execution-orchestrator contract: stateless DSL validation and
// execution, plus CRUD delegation to internal/store so a workflow can be
// created, published, and queued for a worker to pick up. The in-scope
// subsystem (dsl/registry/resolve/dag/exec/store/worker) is reachable
// end-to-end through this layer even though the gateway itself is a
// thin adapter, not the system being specified.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/flowcraft/engine/internal/nodes"
	"github.com/flowcraft/engine/internal/registry"
	"github.com/flowcraft/engine/internal/store"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// Service handles HTTP requests for workflow validation, execution, and
// CRUD delegation. It depends on store.Store and registry.Registry
// rather than concrete implementations, keeping the HTTP layer
// decoupled from persistence and from the built-in node set.
type Service struct {
	Store    store.Store
	Registry *registry.Registry
	Deps     nodes.Deps
}

// NewService creates a Service bound to a store and a populated node
// registry.
func NewService(st store.Store, reg *registry.Registry, deps nodes.Deps) *Service {
	return &Service{Store: st, Registry: reg, Deps: deps}
}

// requestIDMiddleware assigns a unique ID to each request for log
// correlation. If the client sends X-Request-ID, it's reused; otherwise
// a new UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes mounts this service's routes under parentRouter.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.Use(requestIDMiddleware)
	parentRouter.Use(jsonMiddleware)

	parentRouter.HandleFunc("/validate", s.HandleValidate).Methods("POST")
	parentRouter.HandleFunc("/execute", s.HandleExecute).Methods("POST")
	parentRouter.HandleFunc("/catalog", s.HandleCatalog).Methods("GET")

	wf := parentRouter.PathPrefix("/workflows").Subrouter()
	wf.HandleFunc("", s.HandleCreateWorkflow).Methods("POST")
	wf.HandleFunc("/{id}", s.HandleGetWorkflow).Methods("GET")
	wf.HandleFunc("/{id}", s.HandleDeleteWorkflow).Methods("DELETE")
	wf.HandleFunc("/{id}/versions", s.HandlePublishVersion).Methods("POST")
	wf.HandleFunc("/{id}/executions", s.HandleEnqueue).Methods("POST")
	wf.HandleFunc("/executions/{executionId}", s.HandleGetExecution).Methods("GET")
}

// reqID extracts the request ID from context (set by requestIDMiddleware).
func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
