package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultFlushInterval is how often the flusher checks the outbox for
	// due acknowledgements.
	DefaultFlushInterval = 15 * time.Second

	// DefaultFlushBatch caps how many acknowledgements a single flush
	// pass sends.
	DefaultFlushBatch = 16

	// DefaultRetryBackoff is how long a failed acknowledgement waits
	// before it becomes due again.
	DefaultRetryBackoff = 30 * time.Second

	// DefaultDeliveryRetention is how long journaled notification tags
	// are kept before the flusher prunes them.
	DefaultDeliveryRetention = 7 * 24 * time.Hour

	// flushPassTimeout bounds a single flush pass.
	flushPassTimeout = 30 * time.Second
)

// SendAckFunc delivers a single queued acknowledgement to the backend.
type SendAckFunc func(ctx context.Context, ack PendingAck) error

// FlusherConfig bundles the dependencies of a Flusher.
type FlusherConfig struct {
	// Store is the database holding the ack outbox.
	Store *Store

	// Send delivers one acknowledgement to the backend.
	Send SendAckFunc

	// Interval overrides DefaultFlushInterval when non-zero.
	Interval time.Duration

	// BatchSize overrides DefaultFlushBatch when non-zero.
	BatchSize int

	// Backoff overrides DefaultRetryBackoff when non-zero.
	Backoff time.Duration

	// Retention overrides DefaultDeliveryRetention when non-zero.
	Retention time.Duration
}

// Flusher periodically drains due acknowledgements from the outbox. Entries
// that fail to send are rescheduled with a backoff, and dropped once they
// exceed the attempt bound.
type Flusher struct {
	cfg FlusherConfig

	kick chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	quit      chan struct{}
	done      chan struct{}
}

// NewFlusher creates a new outbox flusher.
func NewFlusher(cfg FlusherConfig) *Flusher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultFlushBatch
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRetryBackoff
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultDeliveryRetention
	}

	return &Flusher{
		cfg:  cfg,
		kick: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the background flush loop. It is safe to call more than
// once.
func (f *Flusher) Start() {
	f.startOnce.Do(func() {
		f.started.Store(true)
		go f.loop()
	})
}

// Stop halts the flush loop and waits for it to exit.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() {
		close(f.quit)
		if f.started.Load() {
			<-f.done
		}
	})
}

// Kick requests an immediate flush pass. It never blocks; if a pass is
// already pending the request is coalesced.
func (f *Flusher) Kick() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (f *Flusher) loop() {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flushOnce()
			f.pruneOnce()

		case <-f.kick:
			f.flushOnce()

		case <-f.quit:
			return
		}
	}
}

// flushOnce sends every due acknowledgement in one batch. Failures are
// rescheduled rather than halting the pass, so one bad entry cannot starve
// the rest of the batch.
func (f *Flusher) flushOnce() {
	ctx, cancel := context.WithTimeout(
		context.Background(), flushPassTimeout,
	)
	defer cancel()

	acks, err := f.cfg.Store.DueAcks(ctx, time.Now(), f.cfg.BatchSize)
	if err != nil {
		log.Errorf("Unable to load due acks: %v", err)
		return
	}

	for _, ack := range acks {
		if err := f.cfg.Send(ctx, ack); err != nil {
			log.Debugf("Ack %d for reminder %d failed "+
				"(attempt %d): %v", ack.ID, ack.ReminderID,
				ack.Attempts+1, err)

			err := f.cfg.Store.AckFailed(
				ctx, ack.ID, time.Now(), f.cfg.Backoff,
			)
			if err != nil {
				log.Errorf("Unable to reschedule ack %d: %v",
					ack.ID, err)
			}

			continue
		}

		if err := f.cfg.Store.AckDone(ctx, ack.ID); err != nil {
			log.Errorf("Unable to clear flushed ack %d: %v",
				ack.ID, err)
		}
	}
}

// pruneOnce drops notification journal entries past the retention window.
// The journal only needs to cover tags a desktop could still be showing.
func (f *Flusher) pruneOnce() {
	ctx, cancel := context.WithTimeout(
		context.Background(), flushPassTimeout,
	)
	defer cancel()

	cutoff := time.Now().Add(-f.cfg.Retention)
	pruned, err := f.cfg.Store.PruneDeliveries(ctx, cutoff)
	if err != nil {
		log.Errorf("Unable to prune delivery journal: %v", err)
		return
	}
	if pruned > 0 {
		log.Debugf("Pruned %d journaled deliveries", pruned)
	}
}
