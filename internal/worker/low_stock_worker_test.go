package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/apparel_tracker/internal/metrics"
)

type countingReconciler struct {
	calls atomic.Int64
	fixed int64
	err   error
}

func (r *countingReconciler) ReconcileLowStock(context.Context) (int64, error) {
	r.calls.Add(1)
	return r.fixed, r.err
}

func TestLowStockWorkerRunsUntilCanceled(t *testing.T) {
	rec := &countingReconciler{fixed: 2}
	w := NewLowStockWorker(rec, metrics.New(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestLowStockWorkerSurvivesErrors(t *testing.T) {
	rec := &countingReconciler{err: errors.New("boom")}
	w := NewLowStockWorker(rec, nil, time.Hour)

	w.run(context.Background())
	w.run(context.Background())
	assert.Equal(t, int64(2), rec.calls.Load())
}

func TestNewLowStockWorkerDefaultsInterval(t *testing.T) {
	w := NewLowStockWorker(&countingReconciler{}, nil, 0)
	assert.Equal(t, 10*time.Minute, w.interval)
}
