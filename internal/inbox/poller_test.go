package inbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
)

// TestPollerDrivesRefreshes spins the inbox up as a real actor and checks
// the poller performs the immediate refresh plus interval ticks.
func TestPollerDrivesRefreshes(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{UnreadCount: 1},
	}
	service := NewService(Config{
		Backend: backend,
		Tokens:  &fakeTokens{token: "tok"},
	})

	system := actor.NewActorSystem()
	defer system.Shutdown(context.Background())

	ref := InboxKey.Spawn(system, "inbox-test", service)

	poller := NewPoller(ref, 20*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	require.Eventually(t, func() bool {
		resp, err := ref.Ask(
			context.Background(), SnapshotMsg{},
		).Await(context.Background()).Unpack()
		if err != nil {
			return false
		}

		return resp.(SnapshotResponse).UnreadCount == 1 &&
			backend.calls() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

// TestPollerStopHalts asserts no refreshes happen after Stop returns.
func TestPollerStopHalts(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	service := NewService(Config{
		Backend: backend,
		Tokens:  &fakeTokens{token: "tok"},
	})

	system := actor.NewActorSystem()
	defer system.Shutdown(context.Background())

	ref := InboxKey.Spawn(system, "inbox-stop-test", service)

	poller := NewPoller(ref, 10*time.Millisecond)
	poller.Start(context.Background())

	require.Eventually(t, func() bool {
		return backend.calls() >= 1
	}, time.Second, 5*time.Millisecond)

	poller.Stop()

	// Let any tick already in the mailbox drain before sampling.
	time.Sleep(30 * time.Millisecond)
	settled := backend.calls()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, backend.calls())
}

// TestPollerReportsSnapshots asserts a registered snapshot consumer sees
// the post-refresh state on every tick.
func TestPollerReportsSnapshots(t *testing.T) {
	t.Parallel()

	due := api.Reminder{ID: 7, Content: "Call the customer back"}
	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 1,
			Today:       []api.Reminder{due},
		},
	}
	service := NewService(Config{
		Backend: backend,
		Tokens:  &fakeTokens{token: "tok"},
	})

	system := actor.NewActorSystem()
	defer system.Shutdown(context.Background())

	ref := InboxKey.Spawn(system, "inbox-snap-test", service)

	var (
		mu    sync.Mutex
		snaps []SnapshotResponse
	)
	poller := NewPoller(ref, 20*time.Millisecond)
	poller.OnRefresh(func(snap SnapshotResponse) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, snap)
	})
	poller.Start(context.Background())
	defer poller.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, snaps[0].UnreadCount)
	require.Len(t, snaps[0].Today, 1)
	require.Equal(t, int64(7), snaps[0].Today[0].ID)
	require.False(t, snaps[0].LastRefresh.IsZero())
}
