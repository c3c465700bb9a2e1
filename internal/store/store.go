// Package store is the persistence layer: workflows, their immutable
// published versions, and the execution queue, backed by pgx/v5. Writes
// that touch more than one table wrap a transaction, and deletes are
// verified through RowsAffected rather than a prior existence check.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowcraft/engine/internal/dsl"
)

// DB abstracts the operations the store needs. Satisfied by
// *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Store is the persistence contract used by internal/api and
// internal/worker.
type Store interface {
	CreateWorkflow(ctx context.Context, name string) (*Workflow, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, id uuid.UUID) error

	PublishVersion(ctx context.Context, workflowID uuid.UUID, w dsl.WorkflowDSL) (*WorkflowVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*WorkflowVersion, error)
	GetCurrentVersion(ctx context.Context, workflowID uuid.UUID) (*WorkflowVersion, error)

	Enqueue(ctx context.Context, workflowID, versionID uuid.UUID, inputs map[string]any) (*Execution, error)
	GetExecution(ctx context.Context, id uuid.UUID) (*Execution, error)

	ClaimBatch(ctx context.Context, workerID string, batchSize int) ([]Execution, error)
	CompleteExecution(ctx context.Context, id uuid.UUID, outputs map[string]any) error
	FailExecution(ctx context.Context, id uuid.UUID, errMsg string) error

	AppendLog(ctx context.Context, workflowID, executionID uuid.UUID, nodeID string, data map[string]any) error
}

type pgStore struct {
	db DB
}

// New creates a PostgreSQL-backed Store.
func New(db *pgxpool.Pool) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db connection cannot be nil")
	}
	return &pgStore{db: db}, nil
}

// NewWithDB wires an already-constructed DB implementation (the
// pgxmock seam tests use).
func NewWithDB(db DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) CreateWorkflow(ctx context.Context, name string) (*Workflow, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	wf := &Workflow{ID: uuid.New(), Name: name, CreatedAt: time.Now(), ModifiedAt: time.Now()}
	_, err := s.db.Exec(timeoutCtx, `
		INSERT INTO workflows (id, name, created_at, modified_at)
		VALUES ($1, $2, $3, $4)`,
		wf.ID, wf.Name, wf.CreatedAt, wf.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("insert workflow: %w", err)
	}
	return wf, nil
}

func (s *pgStore) GetWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	wf := &Workflow{ID: id}
	err := s.db.QueryRow(timeoutCtx, `
		SELECT name, current_version_id, created_at, modified_at
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL`,
		id).Scan(&wf.Name, &wf.CurrentVersionID, &wf.CreatedAt, &wf.ModifiedAt)
	if err != nil {
		return nil, err // pgx.ErrNoRows if not found
	}
	return wf, nil
}

func (s *pgStore) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.db.Exec(timeoutCtx, `
		UPDATE workflows
		SET deleted_at = $1, modified_at = $1
		WHERE id = $2 AND deleted_at IS NULL`,
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("soft delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// PublishVersion freezes w as an immutable snapshot and repoints the
// workflow's current_version_id at it, inside a single transaction.
func (s *pgStore) PublishVersion(ctx context.Context, workflowID uuid.UUID, w dsl.WorkflowDSL) (*WorkflowVersion, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(timeoutCtx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin transaction for publish: %w", err)
	}
	defer tx.Rollback(timeoutCtx)

	var nextVersion int
	err = tx.QueryRow(timeoutCtx, `
		SELECT COALESCE(MAX(version_number), 0) + 1
		FROM workflow_versions
		WHERE workflow_id = $1`,
		workflowID).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("get next version number: %w", err)
	}

	dslJSON, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow dsl: %w", err)
	}

	version := &WorkflowVersion{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		VersionNumber: nextVersion,
		DSL:           w,
	}
	err = tx.QueryRow(timeoutCtx, `
		INSERT INTO workflow_versions (id, workflow_id, version_number, dsl)
		VALUES ($1, $2, $3, $4)
		RETURNING published_at`,
		version.ID, workflowID, nextVersion, dslJSON).Scan(&version.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("insert workflow version: %w", err)
	}

	_, err = tx.Exec(timeoutCtx, `
		UPDATE workflows SET current_version_id = $1, modified_at = $2 WHERE id = $3`,
		version.ID, version.PublishedAt, workflowID)
	if err != nil {
		return nil, fmt.Errorf("update workflow current version: %w", err)
	}

	if err := tx.Commit(timeoutCtx); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}
	return version, nil
}

func (s *pgStore) GetVersion(ctx context.Context, id uuid.UUID) (*WorkflowVersion, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.scanVersion(timeoutCtx, s.db.QueryRow(timeoutCtx, `
		SELECT id, workflow_id, version_number, dsl, published_at
		FROM workflow_versions WHERE id = $1`, id))
}

func (s *pgStore) GetCurrentVersion(ctx context.Context, workflowID uuid.UUID) (*WorkflowVersion, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.scanVersion(timeoutCtx, s.db.QueryRow(timeoutCtx, `
		SELECT v.id, v.workflow_id, v.version_number, v.dsl, v.published_at
		FROM workflow_versions v
		JOIN workflows w ON w.current_version_id = v.id
		WHERE w.id = $1 AND w.deleted_at IS NULL`, workflowID))
}

func (s *pgStore) scanVersion(ctx context.Context, row pgx.Row) (*WorkflowVersion, error) {
	v := &WorkflowVersion{}
	var dslJSON []byte
	if err := row.Scan(&v.ID, &v.WorkflowID, &v.VersionNumber, &dslJSON, &v.PublishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dslJSON, &v.DSL); err != nil {
		return nil, fmt.Errorf("unmarshal version dsl: %w", err)
	}
	return v, nil
}

func (s *pgStore) Enqueue(ctx context.Context, workflowID, versionID uuid.UUID, inputs map[string]any) (*Execution, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal execution inputs: %w", err)
	}

	exec := &Execution{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		VersionID:  versionID,
		Status:     ExecutionPending,
		Inputs:     inputs,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	_, err = s.db.Exec(timeoutCtx, `
		INSERT INTO executions (id, workflow_id, version_id, status, inputs, max_retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exec.ID, workflowID, versionID, exec.Status, inputsJSON, exec.MaxRetries, exec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert execution: %w", err)
	}
	return exec, nil
}

func (s *pgStore) GetExecution(ctx context.Context, id uuid.UUID) (*Execution, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	e := &Execution{ID: id}
	var inputsJSON, outputsJSON []byte
	err := s.db.QueryRow(timeoutCtx, `
		SELECT workflow_id, version_id, status, inputs, outputs, error,
		       retry_count, max_retries, claimed_by, claimed_at, created_at, completed_at
		FROM executions WHERE id = $1`,
		id).Scan(&e.WorkflowID, &e.VersionID, &e.Status, &inputsJSON, &outputsJSON, &e.Error,
		&e.RetryCount, &e.MaxRetries, &e.ClaimedBy, &e.ClaimedAt, &e.CreatedAt, &e.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(inputsJSON) > 0 {
		if err := json.Unmarshal(inputsJSON, &e.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal execution inputs: %w", err)
		}
	}
	if len(outputsJSON) > 0 {
		if err := json.Unmarshal(outputsJSON, &e.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal execution outputs: %w", err)
		}
	}
	return e, nil
}

func (s *pgStore) CompleteExecution(ctx context.Context, id uuid.UUID, outputs map[string]any) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal execution outputs: %w", err)
	}
	now := time.Now()
	_, err = s.db.Exec(timeoutCtx, `
		UPDATE executions
		SET status = $1, outputs = $2, completed_at = $3
		WHERE id = $4`,
		ExecutionSuccess, outputsJSON, now, id)
	if err != nil {
		return fmt.Errorf("mark execution succeeded: %w", err)
	}
	return nil
}

func (s *pgStore) FailExecution(ctx context.Context, id uuid.UUID, errMsg string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	_, err := s.db.Exec(timeoutCtx, `
		UPDATE executions
		SET status = $1, error = $2, completed_at = $3
		WHERE id = $4`,
		ExecutionError, errMsg, now, id)
	if err != nil {
		return fmt.Errorf("mark execution failed: %w", err)
	}
	return nil
}

func (s *pgStore) AppendLog(ctx context.Context, workflowID, executionID uuid.UUID, nodeID string, data map[string]any) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal execution log data: %w", err)
	}

	_, err = s.db.Exec(timeoutCtx, `
		INSERT INTO execution_logs (id, workflow_id, execution_id, node_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newLogID(), workflowID, executionID, nodeID, dataJSON, time.Now())
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}
