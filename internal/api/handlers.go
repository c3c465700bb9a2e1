package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/flowcraft/engine/internal/apperr"
	"github.com/flowcraft/engine/internal/dag"
	"github.com/flowcraft/engine/internal/dsl"
	"github.com/flowcraft/engine/internal/exec"
)

// maxRequestBody limits the size of request bodies to prevent abuse.
const maxRequestBody = 1 << 20 // 1MB

// HandleValidate checks a DSL payload's structure, node-type
// registration, and acyclicity without persisting or running anything.
func (s *Service) HandleValidate(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body struct {
		Workflow dsl.WorkflowDSL `json:"workflow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("failed to decode validate request", "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	errs := dsl.Validate(body.Workflow)
	errs = append(errs, dag.Validate(body.Workflow.Nodes, body.Workflow.Edges, s.Registry)...)

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Error())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(errs) == 0,
		"errors": messages,
	})
}

// HandleExecute runs a DSL workflow inline against the supplied inputs
// and secrets and returns the outcome synchronously: 400 on validation
// failure, 500 on execution error, 200 on success, matching spec.md §6.
func (s *Service) HandleExecute(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body struct {
		Workflow dsl.WorkflowDSL `json:"workflow"`
		Inputs   map[string]any  `json:"inputs"`
		Secrets  map[string]any  `json:"secrets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("failed to decode execute request", "requestId", rid, "error", err)
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := dsl.Validate(body.Workflow); len(errs) > 0 {
		writeErrorJSON(w, "VALIDATION_ERROR", errs[0].Error(), http.StatusBadRequest)
		return
	}
	if errs := dag.Validate(body.Workflow.Nodes, body.Workflow.Edges, s.Registry); len(errs) > 0 {
		writeErrorJSON(w, "VALIDATION_ERROR", errs[0].Error(), http.StatusBadRequest)
		return
	}

	order, err := dag.BuildExecutionOrder(body.Workflow.Nodes, body.Workflow.Edges)
	if err != nil {
		writeErrorJSON(w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	executionID := uuid.New().String()
	state := exec.NewExecutionState(executionID, "", body.Inputs, body.Secrets)
	executor := exec.New(s.Registry)

	result, err := executor.Execute(r.Context(), body.Workflow, order, state)
	if err != nil {
		slog.Warn("workflow execution failed", "requestId", rid, "executionId", executionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"executionId": executionID,
			"status":      "error",
			"error":       apperr.Message(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executionId": executionID,
		"status":      "success",
		"outputs":     result.Outputs,
	})
}

// HandleCatalog returns every registered node definition projected for
// editor consumption.
func (s *Service) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Catalog())
}

// HandleCreateWorkflow creates an empty workflow shell that versions
// are later published against.
func (s *Service) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		writeErrorJSON(w, "VALIDATION_ERROR", "name must not be empty", http.StatusBadRequest)
		return
	}

	wf, err := s.Store.CreateWorkflow(r.Context(), body.Name)
	if err != nil {
		slog.Error("failed to create workflow", "requestId", rid, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

// HandleGetWorkflow loads a workflow's current metadata by id.
func (s *Service) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseUUID(w, r, rid, "id")
	if !ok {
		return
	}

	wf, err := s.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		handleStoreError(w, rid, "workflow", err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// HandleDeleteWorkflow soft-deletes a workflow. Its published versions
// are left in place.
func (s *Service) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseUUID(w, r, rid, "id")
	if !ok {
		return
	}

	if err := s.Store.DeleteWorkflow(r.Context(), id); err != nil {
		handleStoreError(w, rid, "workflow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePublishVersion freezes the posted DSL as the workflow's new
// current version.
func (s *Service) HandlePublishVersion(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseUUID(w, r, rid, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var dslBody dsl.WorkflowDSL
	if err := json.NewDecoder(r.Body).Decode(&dslBody); err != nil {
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}
	if errs := dsl.Validate(dslBody); len(errs) > 0 {
		writeErrorJSON(w, "VALIDATION_ERROR", errs[0].Error(), http.StatusBadRequest)
		return
	}

	version, err := s.Store.PublishVersion(r.Context(), id, dslBody)
	if err != nil {
		handleStoreError(w, rid, "workflow", err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// HandleEnqueue submits a new execution for a workflow's current
// published version, to be picked up by a worker polling the queue.
func (s *Service) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseUUID(w, r, rid, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body struct {
		Inputs map[string]any `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorJSON(w, "INVALID_BODY", "invalid request body", http.StatusBadRequest)
		return
	}

	version, err := s.Store.GetCurrentVersion(r.Context(), id)
	if err != nil {
		handleStoreError(w, rid, "workflow version", err)
		return
	}

	execution, err := s.Store.Enqueue(r.Context(), id, version.ID, body.Inputs)
	if err != nil {
		slog.Error("failed to enqueue execution", "requestId", rid, "workflowId", id, "error", err)
		writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, execution)
}

// HandleGetExecution reports an execution's current status and, once
// finished, its outputs or error.
func (s *Service) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	rid := reqID(r)
	id, ok := parseUUID(w, r, rid, "executionId")
	if !ok {
		return
	}

	execution, err := s.Store.GetExecution(r.Context(), id)
	if err != nil {
		handleStoreError(w, rid, "execution", err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func parseUUID(w http.ResponseWriter, r *http.Request, rid, param string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[param]
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Warn("invalid id", "param", param, "value", raw, "requestId", rid)
		writeErrorJSON(w, "INVALID_ID", "invalid "+param, http.StatusBadRequest)
		return uuid.UUID{}, false
	}
	return id, true
}

func handleStoreError(w http.ResponseWriter, rid, resource string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeErrorJSON(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
		return
	}
	slog.Error("store operation failed", "requestId", rid, "resource", resource, "error", err)
	writeErrorJSON(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}

// writeJSON writes v as a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeErrorJSON writes a structured JSON error response with a
// machine-readable code and a human-readable message.
func writeErrorJSON(w http.ResponseWriter, errCode, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": errCode, "message": message})
}
