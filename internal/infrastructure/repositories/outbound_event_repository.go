package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	"github.com/causeway-service/causeway_service/pkg/tracing"
)

// OutboundEventRepository handles the outbox table
type OutboundEventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewOutboundEventRepository creates a new outbound event repository
func NewOutboundEventRepository(db *sqlx.DB, logger *zap.Logger) *OutboundEventRepository {
	return &OutboundEventRepository{db: db, logger: logger}
}

// InsertTx writes an outbox row inside the transaction that made the
// change it announces, so the event exists exactly when the change
// committed.
func (r *OutboundEventRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, lockID uuid.UUID, kind string, payload interface{}) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "outbound_events",
	})
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return fmt.Errorf("marshal outbound payload: %w", err)
	}

	query := `
		INSERT INTO outbound_events (id, lock_id, kind, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := tx.ExecContext(ctx, query,
		uuid.New(), lockID, kind, body, entities.OutboundEventPending); err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to insert outbound event",
			zap.String("lock_id", lockID.String()),
			zap.String("kind", kind),
			zap.Error(err))
		return fmt.Errorf("insert outbound event: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return nil
}

// GetPending returns undispatched events oldest first, capped at limit.
func (r *OutboundEventRepository) GetPending(ctx context.Context, limit int) ([]*entities.OutboundEvent, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "outbound_events",
	})
	defer span.End()

	query := `
		SELECT id, lock_id, kind, payload, status, attempt_count, last_error,
		       created_at, dispatched_at
		FROM outbound_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var events []*entities.OutboundEvent
	if err := r.db.SelectContext(ctx, &events, query, entities.OutboundEventPending, limit); err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to get pending outbound events", zap.Error(err))
		return nil, fmt.Errorf("get pending outbound events: %w", err)
	}

	tracing.EndDBSpan(span, nil, int64(len(events)))
	return events, nil
}

// MarkDispatched records a successful dispatch.
func (r *OutboundEventRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "UPDATE",
		Table:     "outbound_events",
	})
	defer span.End()

	query := `
		UPDATE outbound_events
		SET status = $1, attempt_count = attempt_count + 1, dispatched_at = NOW()
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, entities.OutboundEventDispatched, id); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return fmt.Errorf("mark outbound event dispatched: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return nil
}

// MarkAttemptFailed increments the attempt counter and stores the
// failure. Events past maxAttempts move to failed and stop being
// retried.
func (r *OutboundEventRepository) MarkAttemptFailed(ctx context.Context, id uuid.UUID, attemptErr error, maxAttempts int) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "UPDATE",
		Table:     "outbound_events",
	})
	defer span.End()

	query := `
		UPDATE outbound_events
		SET attempt_count = attempt_count + 1,
		    last_error = $1,
		    status = CASE WHEN attempt_count + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4
	`

	if _, err := r.db.ExecContext(ctx, query, attemptErr.Error(), maxAttempts, entities.OutboundEventFailed, id); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return fmt.Errorf("mark outbound event attempt failed: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return nil
}

// CountPending returns the number of undispatched events.
func (r *OutboundEventRepository) CountPending(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "outbound_events",
	})
	defer span.End()

	var count int64
	query := `SELECT COUNT(*) FROM outbound_events WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, entities.OutboundEventPending); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("count pending outbound events: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return count, nil
}

// DeleteDispatchedBefore removes dispatched events older than the
// cutoff and returns how many rows were deleted.
func (r *OutboundEventRepository) DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "DELETE",
		Table:     "outbound_events",
	})
	defer span.End()

	query := `
		DELETE FROM outbound_events
		WHERE status = $1 AND dispatched_at < $2
	`

	res, err := r.db.ExecContext(ctx, query, entities.OutboundEventDispatched, cutoff)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("delete dispatched outbound events: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("delete dispatched rows affected: %w", err)
	}

	tracing.EndDBSpan(span, nil, rows)
	return rows, nil
}
