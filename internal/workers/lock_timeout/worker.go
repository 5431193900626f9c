package lock_timeout

import (
	"context"
	"time"

	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// LockReverter reverts locks whose deadline has passed
type LockReverter interface {
	RevertExpired(ctx context.Context, batchSize int) (int, error)
}

// Worker sweeps locks past their relay or mint deadline into the
// terminal reverted state. It is the only writer of reverted; there is
// no external cancel path.
type Worker struct {
	bridge        LockReverter
	checkInterval time.Duration
	batchSize     int
	logger        *logger.Logger
	stopCh        chan struct{}
}

// Config holds worker configuration
type Config struct {
	CheckInterval time.Duration
	BatchSize     int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() *Config {
	return &Config{
		CheckInterval: 1 * time.Minute,
		BatchSize:     100,
	}
}

// NewWorker creates a new lock timeout worker
func NewWorker(bridge LockReverter, config *Config, logger *logger.Logger) *Worker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Worker{
		bridge:        bridge,
		checkInterval: config.CheckInterval,
		batchSize:     config.BatchSize,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting lock timeout worker",
		"check_interval", w.checkInterval.String(),
		"batch_size", w.batchSize)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Lock timeout worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Lock timeout worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sweep reverts one batch of expired locks
func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()

	reverted, err := w.bridge.RevertExpired(ctx, w.batchSize)
	metrics.LockSweepDuration.WithLabelValues("lock_timeout").Observe(time.Since(start).Seconds())
	if err != nil {
		w.logger.Error("Lock timeout sweep failed", "error", err)
		return
	}

	if reverted == 0 {
		w.logger.Debug("No expired locks found")
		return
	}

	w.logger.Info("Lock timeout sweep completed",
		"reverted", reverted,
		"duration", time.Since(start).String())
}

// RunOnce runs one sweep (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}
