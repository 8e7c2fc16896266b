package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SyncWorker schedules delivery passes. Three triggers feed it: a new
// enqueue while online (Kick), an offline→online transition (debounced so
// flapping connectivity doesn't cause a thundering herd), and a periodic
// tick while online with a non-empty queue. The worker is the only caller
// of RunPass, so passes never overlap.
type SyncWorker struct {
	syncer   *Syncer
	log      *logrus.Logger
	interval time.Duration
	debounce time.Duration

	kick     chan struct{}
	onlineCh chan bool
}

// NewSyncWorker creates a SyncWorker.
func NewSyncWorker(syncer *Syncer, interval, debounce time.Duration, log *logrus.Logger) *SyncWorker {
	return &SyncWorker{
		syncer:   syncer,
		log:      log,
		interval: interval,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		onlineCh: make(chan bool, 4),
	}
}

// Kick requests a delivery pass. Non-blocking; a pending kick coalesces
// with earlier ones.
func (w *SyncWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// SetOnline reports a connectivity change from the surrounding application.
// Transitions are consumed in order by Run; the buffer absorbs brief
// flapping without blocking the caller.
func (w *SyncWorker) SetOnline(online bool) {
	w.onlineCh <- online
}

// Run processes triggers until the context is cancelled. Call in a
// goroutine.
func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		debounceTimer *time.Timer
		debounceC     <-chan time.Time
	)

	stopDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
			debounceTimer = nil
			debounceC = nil
		}
	}
	defer stopDebounce()

	w.log.WithField("interval", w.interval).Info("sync worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sync worker stopped")

			return

		case online := <-w.onlineCh:
			wasOnline := w.syncer.Online()
			w.syncer.SetOnline(online)

			switch {
			case online && !wasOnline:
				stopDebounce()
				debounceTimer = time.NewTimer(w.debounce)
				debounceC = debounceTimer.C
				w.log.WithField("debounce", w.debounce).Info("back online, delivery pass scheduled")
			case !online:
				stopDebounce()
				w.log.Info("offline, delivery paused")
			}

		case <-debounceC:
			stopDebounce()
			w.pass(ctx)

		case <-w.kick:
			if w.syncer.Online() {
				w.pass(ctx)
			}

		case <-ticker.C:
			if w.syncer.Online() {
				w.periodicPass(ctx)
			}
		}
	}
}

// periodicPass skips the scheduled pass when nothing is queued, so an idle
// node does not keep refreshing its sync state and last-sync timestamp.
func (w *SyncWorker) periodicPass(ctx context.Context) {
	pending, err := w.syncer.HasPending(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Warn("checking queue before scheduled pass")
		}

		return
	}
	if pending {
		w.pass(ctx)
	}
}

func (w *SyncWorker) pass(ctx context.Context) {
	if err := w.syncer.RunPass(ctx); err != nil && ctx.Err() == nil {
		w.log.WithError(err).Warn("delivery pass failed")
	}
}
