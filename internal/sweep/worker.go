package sweep

import (
	"context"
	"time"
)

// Worker runs the sweep on an in-process ticker.
type Worker struct {
	sweeper  *Sweeper
	interval time.Duration
	now      func() time.Time
}

// NewWorker creates a Worker. Intervals under one second default to one minute.
func NewWorker(sweeper *Sweeper, interval time.Duration) *Worker {
	if interval < time.Second {
		interval = time.Minute
	}
	return &Worker{sweeper: sweeper, interval: interval, now: time.Now}
}

// Start blocks, sweeping every interval until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log := w.sweeper.log

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithField("interval", w.interval.String()).Info("sweep worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("sweep worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.sweeper.log.WithField("panic", r).Error("sweep panicked, will retry next tick")
		}
	}()

	if _, err := w.sweeper.Run(ctx, w.now()); err != nil {
		w.sweeper.log.WithError(err).Error("sweep failed")
	}
}
