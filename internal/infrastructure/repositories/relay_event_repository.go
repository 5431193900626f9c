package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	"github.com/causeway-service/causeway_service/pkg/tracing"
)

// RelayEventRepository handles the append-only relay event log
type RelayEventRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRelayEventRepository creates a new relay event repository
func NewRelayEventRepository(db *sqlx.DB, logger *zap.Logger) *RelayEventRepository {
	return &RelayEventRepository{db: db, logger: logger}
}

// InsertTx appends a relay event inside the given transaction. The
// (lock_id, sequence_number) primary key deduplicates replays: the
// insert reports inserted=false for a duplicate instead of failing, so
// replayed deliveries stay no-ops.
func (r *RelayEventRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, event *entities.RelayEvent) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "relay_events",
	})
	defer span.End()

	query := `
		INSERT INTO relay_events (lock_id, sequence_number, kind, payload, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lock_id, sequence_number) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, query,
		event.LockID,
		event.SequenceNumber,
		event.Kind,
		event.Payload,
		event.ObservedAt,
	)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to insert relay event",
			zap.String("lock_id", event.LockID.String()),
			zap.Int64("sequence_number", event.SequenceNumber),
			zap.Error(err))
		return false, fmt.Errorf("insert relay event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("relay event rows affected: %w", err)
	}

	tracing.EndDBSpan(span, nil, rows)
	return rows == 1, nil
}

// ListByLock returns the recorded events for a lock in sequence order.
func (r *RelayEventRepository) ListByLock(ctx context.Context, lockID uuid.UUID) ([]*entities.RelayEvent, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "relay_events",
	})
	defer span.End()

	query := `
		SELECT lock_id, sequence_number, kind, payload, observed_at
		FROM relay_events
		WHERE lock_id = $1
		ORDER BY sequence_number ASC
	`

	var events []*entities.RelayEvent
	if err := r.db.SelectContext(ctx, &events, query, lockID); err != nil {
		tracing.EndDBSpan(span, err, -1)
		r.logger.Error("Failed to list relay events",
			zap.String("lock_id", lockID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("list relay events: %w", err)
	}

	tracing.EndDBSpan(span, nil, int64(len(events)))
	return events, nil
}

// CountOrphaned counts relay events whose lock row is missing. Always
// zero under the foreign key; a nonzero count means the schema guard
// was bypassed and the audit worker should alarm.
func (r *RelayEventRepository) CountOrphaned(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "relay_events",
	})
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM relay_events re
		LEFT JOIN locks l ON l.id = re.lock_id
		WHERE l.id IS NULL
	`

	var count int64
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return 0, fmt.Errorf("count orphaned relay events: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return count, nil
}
