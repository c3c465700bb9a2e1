package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/flowcraft/engine/internal/apperr"
)

// ClaimBatch atomically claims up to batchSize queued executions for
// workerID. It selects candidates with FOR UPDATE SKIP LOCKED so
// concurrent workers never block on each other, then transitions each
// one with a conditional UPDATE guarded on status = 'pending'. A
// RowsAffected of zero on that UPDATE — which should not happen given
// the row lock, but is checked defensively since the claim is the
// one place a lost race would silently double-run a workflow — surfaces
// as apperr.ClaimLost.
func (s *pgStore) ClaimBatch(ctx context.Context, workerID string, batchSize int) ([]Execution, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(timeoutCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction for claim: %w", err)
	}
	defer tx.Rollback(timeoutCtx)

	rows, err := tx.Query(timeoutCtx, `
		SELECT id::text FROM executions
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		ExecutionPending, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select claimable executions: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan claimable execution id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse claimable execution id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimable executions: %w", err)
	}
	rows.Close()

	claimed := make([]Execution, 0, len(ids))
	now := time.Now()
	for _, id := range ids {
		tag, err := tx.Exec(timeoutCtx, `
			UPDATE executions
			SET status = $1, claimed_by = $2, claimed_at = $3
			WHERE id = $4 AND status = $5`,
			ExecutionRunning, workerID, now, id, ExecutionPending)
		if err != nil {
			return nil, fmt.Errorf("claim execution %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperr.ClaimLost(id.String())
		}
		claimed = append(claimed, Execution{ID: id, Status: ExecutionRunning, ClaimedBy: workerID, ClaimedAt: &now})
	}

	if err := tx.Commit(timeoutCtx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return claimed, nil
}

// newLogID generates a time-sortable execution log id. ULIDs keep the
// high-volume append-only execution_logs table insertable in creation
// order without a separate timestamp index.
func newLogID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
