package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/pkg/tracing"
)

// ConsumedProofRepository records spent unlock proofs
type ConsumedProofRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewConsumedProofRepository creates a new consumed proof repository
func NewConsumedProofRepository(db *sqlx.DB, logger *zap.Logger) *ConsumedProofRepository {
	return &ConsumedProofRepository{db: db, logger: logger}
}

// ConsumeTx records the proof digest for a lock inside the given
// transaction. consumed=false means the digest was already recorded:
// under two racing unlocks exactly one caller sees true, the other
// false, and the primary key makes that arbitration durable.
func (r *ConsumedProofRepository) ConsumeTx(ctx context.Context, tx *sqlx.Tx, lockID uuid.UUID, proofDigest string) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "consumed_proofs",
	})
	defer span.End()

	query := `
		INSERT INTO consumed_proofs (lock_id, proof_digest, consumed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (lock_id, proof_digest) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, query, lockID, proofDigest)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to consume proof",
			zap.String("lock_id", lockID.String()),
			zap.Error(err))
		return false, fmt.Errorf("consume proof: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("consume proof rows affected: %w", err)
	}

	tracing.EndDBSpan(span, nil, rows)
	return rows == 1, nil
}

// IsConsumedTx reports whether the digest was already spent for the
// lock, read inside the caller's transaction.
func (r *ConsumedProofRepository) IsConsumedTx(ctx context.Context, tx *sqlx.Tx, lockID uuid.UUID, proofDigest string) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "consumed_proofs",
	})
	defer span.End()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM consumed_proofs
			WHERE lock_id = $1 AND proof_digest = $2
		)
	`

	var consumed bool
	if err := tx.GetContext(ctx, &consumed, query, lockID, proofDigest); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("check proof consumption: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return consumed, nil
}

// HasAnyForLock reports whether any proof was consumed for the lock,
// used by the audit worker to cross-check completed locks.
func (r *ConsumedProofRepository) HasAnyForLock(ctx context.Context, lockID uuid.UUID) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "consumed_proofs",
	})
	defer span.End()

	query := `SELECT EXISTS (SELECT 1 FROM consumed_proofs WHERE lock_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, lockID); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("check proofs for lock: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return exists, nil
}
