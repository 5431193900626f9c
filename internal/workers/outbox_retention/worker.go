package outbox_retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OutboxPruner deletes dispatched outbox rows older than a cutoff
type OutboxPruner interface {
	DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Worker prunes dispatched outbox rows past the retention window.
// Pending and failed rows are kept regardless of age so nothing
// undelivered is ever dropped.
type Worker struct {
	outbox        OutboxPruner
	retentionDays int
	schedule      string
	cron          *cron.Cron
	logger        *zap.Logger
}

func NewWorker(outbox OutboxPruner, retentionDays int, schedule string, logger *zap.Logger) *Worker {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &Worker{
		outbox:        outbox,
		retentionDays: retentionDays,
		schedule:      schedule,
		cron:          cron.New(),
		logger:        logger,
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
	w.logger.Info("Outbox retention worker started",
		zap.String("schedule", w.schedule),
		zap.Int("retention_days", w.retentionDays))
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Outbox retention worker stopped")
}

// RunOnce prunes once and returns the number of rows deleted.
func (w *Worker) RunOnce(ctx context.Context) int64 {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	deleted, err := w.outbox.DeleteDispatchedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error("Failed to prune outbox", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		w.logger.Info("Outbox pruned",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted
}
