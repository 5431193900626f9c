package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/pkg/tracing"
)

const lockColumns = `
	id, sender, recipient, amount, source_chain, destination_chain, status,
	idempotency_key, request_hash, locked_at, relay_deadline, mint_deadline,
	refunded_amount, revert_reason, completed_at, reverted_at, created_at,
	updated_at
`

// LockRepository handles lock persistence
type LockRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *sqlx.DB, logger *zap.Logger) *LockRepository {
	return &LockRepository{db: db, logger: logger}
}

// CreateTx inserts a new lock inside the given transaction. A unique
// violation on the idempotency key surfaces as ErrAlreadyExists so the
// caller can fall back to the stored row.
func (r *LockRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lock *entities.Lock) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "locks",
	})
	defer span.End()

	query := `
		INSERT INTO locks (
			id, sender, recipient, amount, source_chain, destination_chain,
			status, idempotency_key, request_hash, locked_at, relay_deadline,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := tx.QueryRowxContext(ctx, query,
		lock.ID,
		lock.Sender,
		lock.Recipient,
		lock.Amount,
		lock.SourceChain,
		lock.DestinationChain,
		lock.Status,
		lock.IdempotencyKey,
		lock.RequestHash,
		lock.LockedAt,
		lock.RelayDeadline,
		now,
	).Scan(&lock.CreatedAt, &lock.UpdatedAt)

	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return domainerrors.ErrAlreadyExists
		}
		r.logger.Error("Failed to create lock",
			zap.String("lock_id", lock.ID.String()),
			zap.Error(err))
		return fmt.Errorf("create lock: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return nil
}

// GetByID retrieves a lock by its id, returning ErrNotFound when no
// row exists.
func (r *LockRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Lock, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `SELECT ` + lockColumns + ` FROM locks WHERE id = $1`

	var lock entities.Lock
	err := r.db.GetContext(ctx, &lock, query, id)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, nil, 0)
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to get lock",
			zap.String("lock_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("get lock: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return &lock, nil
}

// GetByIDTx retrieves a lock inside a transaction with FOR UPDATE so
// the row stays stable for the rest of the transaction.
func (r *LockRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*entities.Lock, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `SELECT ` + lockColumns + ` FROM locks WHERE id = $1 FOR UPDATE`

	var lock entities.Lock
	err := tx.GetContext(ctx, &lock, query, id)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, nil, 0)
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return nil, fmt.Errorf("get lock for update: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return &lock, nil
}

// GetByIdempotencyKey retrieves the lock created under the given key,
// or nil when none exists.
func (r *LockRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entities.Lock, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `SELECT ` + lockColumns + ` FROM locks WHERE idempotency_key = $1`

	var lock entities.Lock
	err := r.db.GetContext(ctx, &lock, query, key)
	if err == sql.ErrNoRows {
		tracing.EndDBSpan(span, nil, 0)
		return nil, nil // Not found is not an error here
	}
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to get lock by idempotency key", zap.Error(err))
		return nil, fmt.Errorf("get lock by idempotency key: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return &lock, nil
}

// transitionTx performs a guarded status transition. The WHERE clause
// repeats the expected prior status, so a concurrent change makes the
// update affect zero rows instead of clobbering it.
func (r *LockRepository) transitionTx(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "UPDATE",
		Table:     "locks",
	})
	defer span.End()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("transition lock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("transition rows affected: %w", err)
	}

	tracing.EndDBSpan(span, nil, rows)
	return rows == 1, nil
}

// MarkRelayedTx moves a locked lock to relayed and stamps the mint
// deadline. Returns false when the lock was not in locked status.
func (r *LockRepository) MarkRelayedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, mintDeadline time.Time) (bool, error) {
	query := `
		UPDATE locks
		SET status = $1, mint_deadline = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	return r.transitionTx(ctx, tx, query,
		entities.LockStatusRelayed, mintDeadline, id, entities.LockStatusLocked)
}

// MarkMintedTx moves a relayed lock to minted.
func (r *LockRepository) MarkMintedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE locks
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	return r.transitionTx(ctx, tx, query,
		entities.LockStatusMinted, id, entities.LockStatusRelayed)
}

// MarkCompletedTx moves a minted lock to completed.
func (r *LockRepository) MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `
		UPDATE locks
		SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	return r.transitionTx(ctx, tx, query,
		entities.LockStatusCompleted, completedAt, id, entities.LockStatusMinted)
}

// MarkRevertedTx reverts a lock from the given prior status, recording
// the reason and the refunded amount.
func (r *LockRepository) MarkRevertedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from entities.LockStatus, reason string, refund int64) (bool, error) {
	query := `
		UPDATE locks
		SET status = $1, revert_reason = $2, refunded_amount = $3,
		    reverted_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	return r.transitionTx(ctx, tx, query,
		entities.LockStatusReverted, reason, refund, id, from)
}

// GetExpired returns locks whose deadline for the current status has
// passed: locked past the relay deadline and relayed past the mint
// deadline. Ordered oldest first, capped at limit.
func (r *LockRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*entities.Lock, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `
		SELECT ` + lockColumns + `
		FROM locks
		WHERE (status = $1 AND relay_deadline < $3)
		   OR (status = $2 AND mint_deadline IS NOT NULL AND mint_deadline < $3)
		ORDER BY created_at ASC
		LIMIT $4
	`

	var locks []*entities.Lock
	err := r.db.SelectContext(ctx, &locks, query,
		entities.LockStatusLocked, entities.LockStatusRelayed, now, limit)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to get expired locks", zap.Error(err))
		return nil, fmt.Errorf("get expired locks: %w", err)
	}

	tracing.EndDBSpan(span, nil, int64(len(locks)))
	return locks, nil
}

// CountImpossibleStatus counts rows whose status is outside the state
// machine. The schema constraint should make this zero; anything else
// is corruption for an operator, never repaired here.
func (r *LockRepository) CountImpossibleStatus(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `SELECT COUNT(*) FROM locks WHERE status NOT IN ($1, $2, $3, $4, $5)`

	var count int64
	err := r.db.GetContext(ctx, &count, query,
		entities.LockStatusLocked, entities.LockStatusRelayed, entities.LockStatusMinted,
		entities.LockStatusCompleted, entities.LockStatusReverted)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("count impossible statuses: %w", err)
	}

	tracing.EndDBSpan(span, nil, count)
	return count, nil
}

// CountCompletedWithoutProof counts completed locks with no consumed
// proof on record. Completion is only reachable through proof
// consumption, so any hit is corruption.
func (r *LockRepository) CountCompletedWithoutProof(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM locks l
		WHERE l.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM consumed_proofs p WHERE p.lock_id = l.id
		  )
	`

	var count int64
	err := r.db.GetContext(ctx, &count, query, entities.LockStatusCompleted)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("count completed without proof: %w", err)
	}

	tracing.EndDBSpan(span, nil, count)
	return count, nil
}

// CountByStatus returns lock counts grouped by status, used by the
// audit worker and the health surface.
func (r *LockRepository) CountByStatus(ctx context.Context) (map[entities.LockStatus]int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "locks",
	})
	defer span.End()

	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM locks GROUP BY status`)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return nil, fmt.Errorf("count locks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[entities.LockStatus]int64)
	for rows.Next() {
		var status entities.LockStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			tracing.EndDBSpan(span, err, -1)
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	tracing.EndDBSpan(span, nil, int64(len(counts)))
	return counts, nil
}
