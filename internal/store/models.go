package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowcraft/engine/internal/dsl"
)

// Workflow is the mutable container: a name plus a pointer at whichever
// version is currently active. The DSL itself never lives here: it is
// frozen into an immutable WorkflowVersion once published.
type Workflow struct {
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	CurrentVersionID *uuid.UUID `db:"current_version_id"`
	CreatedAt        time.Time  `db:"created_at"`
	ModifiedAt       time.Time  `db:"modified_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

// WorkflowVersion is an immutable, published snapshot of a workflow's
// DAG. Once created it is never updated.
type WorkflowVersion struct {
	ID            uuid.UUID       `db:"id"`
	WorkflowID    uuid.UUID       `db:"workflow_id"`
	VersionNumber int             `db:"version_number"`
	DSL           dsl.WorkflowDSL `db:"dsl"`
	PublishedAt   time.Time       `db:"published_at"`
}

// ExecutionStatus is the lifecycle state of one Execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionError     ExecutionStatus = "error"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// DefaultMaxRetries is persisted on every Execution but never acted on
// by the scheduler or worker; it exists to round out the execution
// record for future retry-policy work.
const DefaultMaxRetries = 3

// Execution is one queued or completed run of a workflow version.
type Execution struct {
	ID          uuid.UUID       `db:"id"`
	WorkflowID  uuid.UUID       `db:"workflow_id"`
	VersionID   uuid.UUID       `db:"version_id"`
	Status      ExecutionStatus `db:"status"`
	Inputs      map[string]any  `db:"inputs"`
	Outputs     map[string]any  `db:"outputs"`
	Error       string          `db:"error"`
	RetryCount  int             `db:"retry_count"`
	MaxRetries  int             `db:"max_retries"`
	ClaimedBy   string          `db:"claimed_by"`
	ClaimedAt   *time.Time      `db:"claimed_at"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// ExecutionLog is one append-only record written against a node during
// a run. Data carries arbitrary JSON rather than a pre-formatted
// string, matching spec.md §3's {id, workflowId, executionId, nodeId,
// data, createdAt} shape. IDs are ULIDs so they are both unique and
// sortable by creation without a separate index.
type ExecutionLog struct {
	ID          string         `db:"id"`
	WorkflowID  uuid.UUID      `db:"workflow_id"`
	ExecutionID uuid.UUID      `db:"execution_id"`
	NodeID      string         `db:"node_id"`
	Data        map[string]any `db:"data"`
	CreatedAt   time.Time      `db:"created_at"`
}
