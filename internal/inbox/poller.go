package inbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
)

// DefaultPollInterval is how often the inbox re-fetches authoritative
// state when no push arrives first.
const DefaultPollInterval = 60 * time.Second

// Poller drives the inbox's periodic refresh from outside the actor: one
// immediate refresh on start, then a fixed-interval tick. Push-triggered
// refreshes bypass it entirely by sending PushReceivedMsg to the actor.
type Poller struct {
	ref      actor.ActorRef[InboxRequest, InboxResponse]
	interval time.Duration

	onRefresh func(SnapshotResponse)

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	quit      chan struct{}
	done      chan struct{}
}

// NewPoller creates a poller for the given inbox ref. A non-positive
// interval falls back to DefaultPollInterval.
func NewPoller(ref actor.ActorRef[InboxRequest, InboxResponse],
	interval time.Duration) *Poller {

	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		ref:      ref,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnRefresh registers fn to receive the local snapshot after every
// poll-driven refresh. Consumers use it to backfill reminders the poll
// found but no push delivered. Must be set before Start.
func (p *Poller) OnRefresh(fn func(SnapshotResponse)) {
	p.onRefresh = fn
}

// Start launches the poll loop. Subsequent calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.loop(ctx)
	})
}

// Stop terminates the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	if p.started.Load() {
		<-p.done
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refresh(ctx)

		case <-p.quit:
			return

		case <-ctx.Done():
			return
		}
	}
}

// refresh drives one poll tick. Without a snapshot consumer a plain Tell
// suffices; with one, the refresh is awaited so the snapshot that follows
// reflects it.
func (p *Poller) refresh(ctx context.Context) {
	if p.onRefresh == nil {
		p.ref.Tell(ctx, RefreshMsg{})
		return
	}

	_, err := p.ref.Ask(ctx, RefreshMsg{}).Await(ctx).Unpack()
	if err != nil {
		return
	}

	resp, err := p.ref.Ask(ctx, SnapshotMsg{}).Await(ctx).Unpack()
	if err != nil {
		return
	}
	if snap, ok := resp.(SnapshotResponse); ok {
		p.onRefresh(snap)
	}
}
