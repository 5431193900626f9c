package event_dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
	"github.com/causeway-service/causeway_service/pkg/queue"
)

// OutboxSource reads and updates outbound event rows
type OutboxSource interface {
	GetPending(ctx context.Context, limit int) ([]*entities.OutboundEvent, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	MarkAttemptFailed(ctx context.Context, id uuid.UUID, attemptErr error, maxAttempts int) error
	CountPending(ctx context.Context) (int64, error)
}

// Worker drains the outbox to the relay stream. Rows are written in
// the same transaction as the lock change they announce, so the relay
// sees every transition at least once; consumers deduplicate on event
// id.
type Worker struct {
	outbox       OutboxSource
	publisher    queue.Publisher
	stream       string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	logger       *logger.Logger
	stopCh       chan struct{}
}

// Config holds worker configuration
type Config struct {
	Stream       string
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() *Config {
	return &Config{
		Stream:       "causeway:outbound",
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		MaxAttempts:  10,
	}
}

// NewWorker creates a new event dispatcher worker
func NewWorker(outbox OutboxSource, publisher queue.Publisher, config *Config, logger *logger.Logger) *Worker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Worker{
		outbox:       outbox,
		publisher:    publisher,
		stream:       config.Stream,
		pollInterval: config.PollInterval,
		batchSize:    config.BatchSize,
		maxAttempts:  config.MaxAttempts,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the dispatch loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting event dispatcher worker",
		"stream", w.stream,
		"poll_interval", w.pollInterval.String(),
		"batch_size", w.batchSize)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Event dispatcher worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Event dispatcher worker stopped")
			return
		case <-ticker.C:
			w.dispatch(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// dispatch publishes one batch of pending events
func (w *Worker) dispatch(ctx context.Context) {
	events, err := w.outbox.GetPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to get pending outbound events", "error", err)
		return
	}

	for _, event := range events {
		if err := w.publisher.Publish(ctx, w.stream, event); err != nil {
			metrics.OutboxDispatches.WithLabelValues("failure").Inc()
			w.logger.Error("Failed to publish outbound event",
				"event_id", event.ID,
				"lock_id", event.LockID,
				"kind", event.Kind,
				"error", err)
			if markErr := w.outbox.MarkAttemptFailed(ctx, event.ID, err, w.maxAttempts); markErr != nil {
				w.logger.Error("Failed to record dispatch failure",
					"event_id", event.ID,
					"error", markErr)
			}
			continue
		}

		if err := w.outbox.MarkDispatched(ctx, event.ID); err != nil {
			// The publish went out; the row stays pending and will be
			// re-published. At-least-once, consumers dedupe on id.
			w.logger.Error("Failed to mark event dispatched",
				"event_id", event.ID,
				"error", err)
			continue
		}
		metrics.OutboxDispatches.WithLabelValues("success").Inc()
		w.logger.Debug("Outbound event dispatched",
			"event_id", event.ID,
			"lock_id", event.LockID,
			"kind", event.Kind)
	}

	if pending, err := w.outbox.CountPending(ctx); err == nil {
		metrics.OutboxPending.Set(float64(pending))
	}
}

// RunOnce runs one dispatch cycle (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.dispatch(ctx)
}
