package consistency_audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// LockAuditor exposes the structural checks over persisted locks
type LockAuditor interface {
	CountImpossibleStatus(ctx context.Context) (int64, error)
	CountCompletedWithoutProof(ctx context.Context) (int64, error)
}

// EventAuditor exposes the structural checks over the relay event log
type EventAuditor interface {
	CountOrphaned(ctx context.Context) (int64, error)
}

// Worker periodically cross-checks persisted bridge state for
// structural corruption. Violations are surfaced through metrics and
// error logs for an operator; nothing is ever repaired automatically.
type Worker struct {
	locks    LockAuditor
	events   EventAuditor
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewWorker(locks LockAuditor, events EventAuditor, schedule string, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = "0 * * * *"
	}
	return &Worker{
		locks:    locks,
		events:   events,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		w.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Consistency audit worker started", zap.String("schedule", w.schedule))
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Consistency audit worker stopped")
}

// RunOnce executes all structural checks once and returns the number
// of violations found.
func (w *Worker) RunOnce(ctx context.Context) int64 {
	var violations int64

	if count, err := w.locks.CountImpossibleStatus(ctx); err != nil {
		w.logger.Error("Audit query failed: impossible statuses", zap.Error(err))
	} else if count > 0 {
		violations += count
		metrics.ConsistencyViolations.WithLabelValues("impossible_status").Add(float64(count))
		w.logger.Error("Locks with impossible status detected",
			zap.Int64("count", count))
	}

	if count, err := w.locks.CountCompletedWithoutProof(ctx); err != nil {
		w.logger.Error("Audit query failed: completed without proof", zap.Error(err))
	} else if count > 0 {
		violations += count
		metrics.ConsistencyViolations.WithLabelValues("completed_without_proof").Add(float64(count))
		w.logger.Error("Completed locks without a consumed proof detected",
			zap.Int64("count", count))
	}

	if count, err := w.events.CountOrphaned(ctx); err != nil {
		w.logger.Error("Audit query failed: orphaned relay events", zap.Error(err))
	} else if count > 0 {
		violations += count
		metrics.ConsistencyViolations.WithLabelValues("orphaned_relay_event").Add(float64(count))
		w.logger.Error("Relay events without a lock detected",
			zap.Int64("count", count))
	}

	if violations == 0 {
		w.logger.Info("Consistency audit passed")
	}
	return violations
}
