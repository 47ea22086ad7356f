package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/apparel_tracker/internal/metrics"
)

// LowStockReconciler recomputes stored low-stock flags that disagree with
// quantity and reorder point. *repository.ProductRepository satisfies it.
type LowStockReconciler interface {
	ReconcileLowStock(ctx context.Context) (int64, error)
}

// LowStockWorker periodically repairs lowStockAlert flags left stale by
// writes that bypassed the update pipelines (imports, manual edits).
type LowStockWorker struct {
	products LowStockReconciler
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewLowStockWorker constructs a LowStockWorker. m may be nil.
func NewLowStockWorker(products LowStockReconciler, m *metrics.Metrics, interval time.Duration) *LowStockWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &LowStockWorker{
		products: products,
		metrics:  m,
		interval: interval,
	}
}

// Start runs one pass immediately, then one per interval until ctx is canceled.
func (w *LowStockWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting low stock worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.run(ctx)
	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Low stock worker stopped")
			return
		}
	}
}

func (w *LowStockWorker) run(ctx context.Context) {
	n, err := w.products.ReconcileLowStock(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to reconcile low stock flags")
		}
		return
	}
	w.metrics.Reconciled(n)
	if n > 0 {
		log.Info().Int64("products", n).Msg("Reconciled low stock flags")
	}
}
