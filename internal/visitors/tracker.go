package visitors

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recorder is the part of Counter the Tracker needs.
type Recorder interface {
	Record(ctx context.Context, visitorID string) error
}

// Tracker runs Record in the background so page loads never wait on the
// ledger. Every failure is logged and dropped.
type Tracker struct {
	rec        Recorder
	logger     *zap.Logger
	timeout    time.Duration
	onRecorded func()
	wg         sync.WaitGroup
}

type TrackerOption func(*Tracker)

// WithTimeout bounds each background Record call.
func WithTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.timeout = d }
}

// OnRecorded registers a callback run after each successful Record.
func OnRecorded(fn func()) TrackerOption {
	return func(t *Tracker) { t.onRecorded = fn }
}

func NewTracker(rec Recorder, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{rec: rec, logger: logger, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records a visit for visitorID without blocking the caller.
func (t *Tracker) Track(visitorID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("visitor tracking panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.rec.Record(ctx, visitorID); err != nil {
			t.logger.Warn("visitor tracking failed", zap.Error(err))
			return
		}
		if t.onRecorded != nil {
			t.onRecorded()
		}
	}()
}

// Wait blocks until all dispatched Track calls have finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
