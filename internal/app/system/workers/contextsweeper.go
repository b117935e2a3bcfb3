// internal/app/system/workers/contextsweeper.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweepable drops per-client state that has been idle for too long.
type Sweepable interface {
	Sweep(idle time.Duration) int
	Len() int
}

// ContextSweeper is a background worker that evicts idle per-client context
// stores. Evicted clients reopen from durable storage on their next request.
type ContextSweeper struct {
	target   Sweepable
	log      *zap.Logger
	interval time.Duration
	idle     time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewContextSweeper creates a sweeper that runs every interval and evicts
// stores unused for longer than idle.
func NewContextSweeper(target Sweepable, logger *zap.Logger, interval, idle time.Duration) *ContextSweeper {
	return &ContextSweeper{
		target:   target,
		log:      logger,
		interval: interval,
		idle:     idle,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *ContextSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("context sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle", w.idle))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *ContextSweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("context sweeper stopped")
}

func (w *ContextSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ContextSweeper) sweep() {
	if n := w.target.Sweep(w.idle); n > 0 {
		w.log.Debug("evicted idle context stores",
			zap.Int("count", n),
			zap.Int("remaining", w.target.Len()))
	}
}
