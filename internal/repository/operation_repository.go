package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationRepository is the idempotency ledger for replayable mutations.
// Each operation is keyed by a semantic key (for example "finalize:<exam>")
// plus the caller-supplied request ID; replaying the same pair returns the
// stored outcome instead of re-running the mutation.
type OperationRepository struct {
	pool *pgxpool.Pool
}

// NewOperationRepository creates a new OperationRepository.
func NewOperationRepository(pool *pgxpool.Pool) *OperationRepository {
	return &OperationRepository{pool: pool}
}

// Operation is one ledger entry.
type Operation struct {
	OperationKey string
	RequestID    uuid.UUID
	Status       string
	Result       []byte
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

const (
	OperationInProgress = "IN_PROGRESS"
	OperationCompleted  = "COMPLETED"
)

// Begin claims the (key, requestID) pair. When the pair is new it inserts
// an IN_PROGRESS entry and returns (nil, true); when it already exists the
// stored entry is returned with false and the caller must not re-run.
func (r *OperationRepository) Begin(ctx context.Context, key string, requestID uuid.UUID) (*Operation, bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO operations (operation_key, request_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (operation_key, request_id) DO NOTHING`,
		key, requestID, OperationInProgress)
	if err != nil {
		return nil, false, fmt.Errorf("claim operation: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	op := &Operation{}
	err = r.pool.QueryRow(ctx,
		`SELECT operation_key, request_id, status, result, created_at, completed_at
		 FROM operations WHERE operation_key = $1 AND request_id = $2`,
		key, requestID,
	).Scan(&op.OperationKey, &op.RequestID, &op.Status, &op.Result, &op.CreatedAt, &op.CompletedAt)
	if err != nil {
		return nil, false, fmt.Errorf("load operation: %w", err)
	}
	return op, false, nil
}

// Complete stores the operation's result and marks it finished.
func (r *OperationRepository) Complete(ctx context.Context, key string, requestID uuid.UUID, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE operations SET status = $1, result = $2, completed_at = NOW()
		 WHERE operation_key = $3 AND request_id = $4`,
		OperationCompleted, payload, key, requestID)
	return err
}

// Abandon removes a claimed entry after the guarded mutation failed so a
// retry with the same request ID can run again.
func (r *OperationRepository) Abandon(ctx context.Context, key string, requestID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM operations
		 WHERE operation_key = $1 AND request_id = $2 AND status = $3`,
		key, requestID, OperationInProgress)
	return err
}
