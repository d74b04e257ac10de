package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

type fakeTokens struct {
	token   string
	expired bool
}

func (f *fakeTokens) Token() string { return f.token }
func (f *fakeTokens) Expired() bool { return f.expired }

type fakeBackend struct {
	mu         sync.Mutex
	snapshot   api.InboxSnapshot
	fetchErr   error
	fetchCalls int
	markedWith [][]int64
	markUnread int
	markErr    error
}

func (f *fakeBackend) FetchInbox(_ context.Context,
	_ int) (api.InboxSnapshot, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.fetchErr != nil {
		return api.InboxSnapshot{}, f.fetchErr
	}

	return f.snapshot, nil
}

func (f *fakeBackend) MarkRead(_ context.Context,
	ids []int64) (int, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.markedWith = append(f.markedWith, ids)
	if f.markErr != nil {
		return 0, f.markErr
	}

	return f.markUnread, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetchCalls
}

func (f *fakeBackend) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func reminders(ids ...int64) []api.Reminder {
	out := make([]api.Reminder, 0, len(ids))
	for _, id := range ids {
		out = append(out, api.Reminder{
			ID:      id,
			Content: "call customer",
			SentAt:  time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		})
	}

	return out
}

func authedService(backend *fakeBackend) *Service {
	return NewService(Config{
		Backend: backend,
		Tokens:  &fakeTokens{token: "tok"},
	})
}

func refresh(t *testing.T, s *Service) RefreshResponse {
	t.Helper()

	resp, err := s.Receive(context.Background(), RefreshMsg{}).Unpack()
	require.NoError(t, err)

	return resp.(RefreshResponse)
}

func snapshot(t *testing.T, s *Service) SnapshotResponse {
	t.Helper()

	resp, err := s.Receive(context.Background(), SnapshotMsg{}).Unpack()
	require.NoError(t, err)

	return resp.(SnapshotResponse)
}

// TestRefreshFullyReplaces asserts a refresh replaces the today list and
// unread count wholesale, discarding optimistic local edits.
func TestRefreshFullyReplaces(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 3,
			Today:       reminders(1, 2, 3),
		},
	}
	s := authedService(backend)

	resp := refresh(t, s)
	require.True(t, resp.Applied)
	require.Equal(t, 3, resp.UnreadCount)

	// Optimistically mark two items read locally.
	_, err := s.Receive(context.Background(), MarkReadMsg{
		IDs: []int64{1, 2},
	}).Unpack()
	require.NoError(t, err)

	// The next refresh returns three unread items again; the local list
	// must be the server's, with no merge artifacts.
	refresh(t, s)

	snap := snapshot(t, s)
	require.Equal(t, 3, snap.UnreadCount)
	require.Len(t, snap.Today, 3)
	for _, item := range snap.Today {
		require.Nil(t, item.ReadAt)
	}
}

// TestRefreshFailureKeepsState asserts a failed fetch leaves local state
// untouched and reports the error.
func TestRefreshFailureKeepsState(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 2,
			Today:       reminders(1, 2),
		},
	}
	s := authedService(backend)
	refresh(t, s)

	backend.setFetchErr(errors.New("backend down"))
	resp := refresh(t, s)
	require.False(t, resp.Applied)
	require.Error(t, resp.Err)

	snap := snapshot(t, s)
	require.Equal(t, 2, snap.UnreadCount)
	require.Len(t, snap.Today, 2)
}

// TestUnauthenticatedZeroState asserts that without a session the inbox
// forces zero state and never calls the backend.
func TestUnauthenticatedZeroState(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{UnreadCount: 5},
	}
	s := NewService(Config{
		Backend: backend,
		Tokens:  &fakeTokens{token: "tok", expired: true},
	})

	resp := refresh(t, s)
	require.True(t, resp.Applied)
	require.Zero(t, resp.UnreadCount)
	require.Zero(t, backend.calls())

	snap := snapshot(t, s)
	require.False(t, snap.Authenticated)
	require.Empty(t, snap.Today)
}

// TestMarkReadOptimisticStamp asserts readAt is stamped locally and the
// backend's authoritative count replaces the optimistic one.
func TestMarkReadOptimisticStamp(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 3,
			Today:       reminders(1, 2, 3),
		},
		markUnread: 1,
	}
	s := authedService(backend)
	refresh(t, s)

	resp, err := s.Receive(context.Background(), MarkReadMsg{
		IDs: []int64{1, 2},
	}).Unpack()
	require.NoError(t, err)

	marked := resp.(MarkReadResponse)
	require.True(t, marked.Persisted)
	require.Equal(t, 1, marked.UnreadCount)
	require.Equal(t, [][]int64{{1, 2}}, backend.markedWith)

	snap := snapshot(t, s)
	require.NotNil(t, snap.Today[0].ReadAt)
	require.NotNil(t, snap.Today[1].ReadAt)
	require.Nil(t, snap.Today[2].ReadAt)
}

// TestMarkReadAllIdempotent asserts marking all twice lands on the same
// final count as marking once.
func TestMarkReadAllIdempotent(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 2,
			Today:       reminders(1, 2),
		},
	}
	s := authedService(backend)
	refresh(t, s)

	for range 2 {
		resp, err := s.Receive(
			context.Background(), MarkReadMsg{},
		).Unpack()
		require.NoError(t, err)
		require.Zero(t, resp.(MarkReadResponse).UnreadCount)
	}

	require.Equal(t, [][]int64{nil, nil}, backend.markedWith)
	require.Zero(t, snapshot(t, s).UnreadCount)
}

// TestMarkReadFailureNoRollback asserts a failed persist keeps the
// optimistic local state.
func TestMarkReadFailureNoRollback(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{
			UnreadCount: 2,
			Today:       reminders(1, 2),
		},
		markErr: errors.New("persist failed"),
	}
	s := authedService(backend)
	refresh(t, s)

	resp, err := s.Receive(context.Background(), MarkReadMsg{
		IDs: []int64{1},
	}).Unpack()
	require.NoError(t, err)

	marked := resp.(MarkReadResponse)
	require.False(t, marked.Persisted)
	require.Equal(t, 1, marked.UnreadCount)

	snap := snapshot(t, s)
	require.NotNil(t, snap.Today[0].ReadAt)
	require.Nil(t, snap.Today[1].ReadAt)
}

// TestPushTriggersRefresh asserts a calendar reminder push refreshes
// out-of-band while other payloads do not.
func TestPushTriggersRefresh(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		snapshot: api.InboxSnapshot{UnreadCount: 1},
	}
	s := authedService(backend)

	resp, err := s.Receive(context.Background(), PushReceivedMsg{
		Payload: push.Payload{Data: map[string]string{
			"type":       "calendar_reminder",
			"reminderId": "9",
		}},
	}).Unpack()
	require.NoError(t, err)
	require.True(t, resp.(PushReceivedResponse).Refreshed)
	require.Equal(t, 1, backend.calls())
	require.Equal(t, 1, snapshot(t, s).UnreadCount)

	resp, err = s.Receive(context.Background(), PushReceivedMsg{
		Payload: push.Payload{Data: map[string]string{
			"type": "calendar_sync_failed",
		}},
	}).Unpack()
	require.NoError(t, err)
	require.False(t, resp.(PushReceivedResponse).Refreshed)
	require.Equal(t, 1, backend.calls())
}
