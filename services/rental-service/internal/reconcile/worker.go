// Package reconcile periodically recomputes every billboard's occupied-today
// flag so it follows the calendar day rolling over.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/billboardrent/services/rental-service/internal/storage"
)

// Transactor is satisfied by *rentals.Engine.
type Transactor interface {
	Transact(ctx context.Context, op string, fn func(ctx context.Context, tx storage.Tx) error) error
	Now() time.Time
}

type Worker struct {
	tx       Transactor
	logger   *slog.Logger
	interval time.Duration
}

type WorkerConfig struct {
	Interval time.Duration
}

func NewWorker(tx Transactor, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Worker{
		tx:       tx,
		logger:   logger.With("component", "reconcile"),
		interval: cfg.Interval,
	}
}

// Run reconciles once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("occupancy reconcile failed", "err", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("occupancy reconcile failed", "err", err)
			}
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	at := w.tx.Now()
	var changed int64
	err := w.tx.Transact(ctx, "reconcile_occupancy", func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.ReconcileOccupancy(ctx, at)
		changed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		w.logger.Info("occupancy reconciled", "changed", changed, "at", at)
	}
	return changed, nil
}
