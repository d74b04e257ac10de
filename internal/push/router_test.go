package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
)

type deliveredPayload struct {
	payload Payload
	channel api.Channel
}

type fakeSurfaces struct {
	visible    int
	navigateOK bool

	delivered []deliveredPayload
	navigated []string
}

func (f *fakeSurfaces) VisibleCount(context.Context) int { return f.visible }

func (f *fakeSurfaces) DeliverToVisible(_ context.Context, p Payload,
	ch api.Channel) int {

	f.delivered = append(f.delivered, deliveredPayload{p, ch})
	return f.visible
}

func (f *fakeSurfaces) Navigate(_ context.Context, link string) bool {
	f.navigated = append(f.navigated, link)
	return f.navigateOK
}

type notifyCall struct {
	title, body, tag string
}

type fakeNotifier struct {
	failures int

	notified []notifyCall
	closed   []string
}

func (f *fakeNotifier) Notify(_ context.Context, title, body,
	tag string) error {

	if f.failures > 0 {
		f.failures--
		return errors.New("notify backend down")
	}
	f.notified = append(f.notified, notifyCall{title, body, tag})

	return nil
}

func (f *fakeNotifier) Close(_ context.Context, tag string) error {
	f.closed = append(f.closed, tag)
	return nil
}

type ackCall struct {
	id      int64
	channel api.Channel
}

type fakeAcker struct {
	mu   sync.Mutex
	acks []ackCall
}

func (f *fakeAcker) AckDelivery(_ context.Context, id int64,
	channel api.Channel) error {

	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, ackCall{id, channel})

	return nil
}

func (f *fakeAcker) calls() []ackCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ackCall(nil), f.acks...)
}

func reminderPayload(id string) Payload {
	return Payload{
		Data: map[string]string{
			"type":       "calendar_reminder",
			"reminderId": id,
		},
		Notification: &Notification{
			Title: "Reminder due",
			Body:  "Call the customer back",
		},
	}
}

func newTestRouter(surfaces *fakeSurfaces, notifier *fakeNotifier,
	acker *fakeAcker) *Router {

	return NewRouter(RouterConfig{
		Surfaces: surfaces,
		Notifier: notifier,
		Acker:    acker,
	})
}

func configure(t *testing.T, r *Router) {
	t.Helper()

	resp, err := r.Receive(context.Background(), ConfigureMsg{
		Config: ProviderConfig{ProjectID: "crm-test"},
	}).Unpack()
	require.NoError(t, err)
	require.False(t, resp.(ConfigureResponse).AlreadyInitialized)
}

// TestRouterDropsPreInit asserts payloads before the provider handshake are
// dropped and counted, never shown.
func TestRouterDropsPreInit(t *testing.T) {
	t.Parallel()

	surfaces := &fakeSurfaces{}
	notifier := &fakeNotifier{}
	r := newTestRouter(surfaces, notifier, &fakeAcker{})

	resp, err := r.Receive(
		context.Background(), DeliverMsg{Payload: reminderPayload("1")},
	).Unpack()
	require.NoError(t, err)
	require.True(t, resp.(DeliverResponse).Dropped)
	require.Empty(t, notifier.notified)
	require.Empty(t, surfaces.delivered)

	configure(t, r)

	status, err := r.Receive(context.Background(), StatusMsg{}).Unpack()
	require.NoError(t, err)
	require.Equal(t, uint64(1), status.(StatusResponse).DroppedPreInit)
}

// TestRouterConfigureIdempotent asserts the init transition is one-way and
// repeats are harmless.
func TestRouterConfigureIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeSurfaces{}, &fakeNotifier{}, &fakeAcker{})
	configure(t, r)

	resp, err := r.Receive(context.Background(), ConfigureMsg{
		Config: ProviderConfig{ProjectID: "other"},
	}).Unpack()
	require.NoError(t, err)
	require.True(t, resp.(ConfigureResponse).AlreadyInitialized)
}

// TestRouterVisiblePreemptsNotification asserts the core invariant: with a
// visible surface the payload goes in-app and no OS notification is raised.
func TestRouterVisiblePreemptsNotification(t *testing.T) {
	t.Parallel()

	surfaces := &fakeSurfaces{visible: 2}
	notifier := &fakeNotifier{}
	r := newTestRouter(surfaces, notifier, &fakeAcker{})
	configure(t, r)

	resp, err := r.Receive(
		context.Background(), DeliverMsg{Payload: reminderPayload("7")},
	).Unpack()
	require.NoError(t, err)

	deliver := resp.(DeliverResponse)
	require.Equal(t, api.ChannelInApp, deliver.Channel)
	require.Equal(t, 2, deliver.Surfaces)
	require.Empty(t, notifier.notified)
	require.Len(t, surfaces.delivered, 1)
	require.Equal(t, api.ChannelInApp, surfaces.delivered[0].channel)
}

// TestRouterNotifiesWhenHidden asserts that with no visible surface exactly
// one OS notification is raised, tagged by reminder id, and the system
// channel is acked best-effort. A second push for the same reminder reuses
// the tag so the OS replaces the notification.
func TestRouterNotifiesWhenHidden(t *testing.T) {
	t.Parallel()

	surfaces := &fakeSurfaces{visible: 0}
	notifier := &fakeNotifier{}
	acker := &fakeAcker{}
	r := newTestRouter(surfaces, notifier, acker)
	configure(t, r)

	resp, err := r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("42")},
	).Unpack()
	require.NoError(t, err)

	deliver := resp.(DeliverResponse)
	require.Equal(t, api.ChannelSystem, deliver.Channel)
	require.Equal(t, "calendar-reminder-42", deliver.Tag)
	require.Len(t, notifier.notified, 1)
	require.Equal(t, "Reminder due", notifier.notified[0].title)
	require.Empty(t, surfaces.delivered)

	// Same reminder again: same tag, so the OS replaces, not stacks.
	resp, err = r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("42")},
	).Unpack()
	require.NoError(t, err)
	require.Equal(t, "calendar-reminder-42",
		resp.(DeliverResponse).Tag)
	require.Len(t, notifier.notified, 2)
	require.Equal(t, notifier.notified[0].tag, notifier.notified[1].tag)

	// The advisory ack runs off the actor goroutine.
	require.Eventually(t, func() bool {
		return len(acker.calls()) == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int64(42), acker.calls()[0].id)
	require.Equal(t, api.ChannelSystem, acker.calls()[0].channel)
}

type journalCall struct {
	tag        string
	reminderID int64
	title      string
}

type fakeJournal struct {
	records []journalCall
}

func (f *fakeJournal) RecordDelivery(_ context.Context, tag string,
	reminderID int64, title string) error {

	f.records = append(f.records, journalCall{tag, reminderID, title})
	return nil
}

// TestRouterJournalsRaisedNotifications asserts each raised OS notification
// is recorded under its tag, while in-app deliveries never touch the
// journal.
func TestRouterJournalsRaisedNotifications(t *testing.T) {
	t.Parallel()

	surfaces := &fakeSurfaces{visible: 0}
	journal := &fakeJournal{}
	r := NewRouter(RouterConfig{
		Surfaces: surfaces,
		Notifier: &fakeNotifier{},
		Acker:    &fakeAcker{},
		Journal:  journal,
	})
	configure(t, r)

	_, err := r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("42")},
	).Unpack()
	require.NoError(t, err)

	require.Len(t, journal.records, 1)
	require.Equal(t, "calendar-reminder-42", journal.records[0].tag)
	require.Equal(t, int64(42), journal.records[0].reminderID)
	require.Equal(t, "Reminder due", journal.records[0].title)

	// A visible surface takes the payload directly; nothing is raised,
	// nothing is journaled.
	surfaces.visible = 1
	_, err = r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("43")},
	).Unpack()
	require.NoError(t, err)
	require.Len(t, journal.records, 1)
}

// TestRouterGenericFallbackOnNotifyFailure asserts a failing notifier
// degrades to a generic notification instead of surfacing an error.
func TestRouterGenericFallbackOnNotifyFailure(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{failures: 1}
	r := newTestRouter(&fakeSurfaces{}, notifier, &fakeAcker{})
	configure(t, r)

	result := r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("9")},
	)
	resp, err := result.Unpack()
	require.NoError(t, err)
	require.Equal(t, api.ChannelSystem, resp.(DeliverResponse).Channel)

	require.Len(t, notifier.notified, 1)
	require.Equal(t, "Notification", notifier.notified[0].title)
}

// TestRouterClickLifecycle asserts a click closes the notification,
// navigates an existing surface, re-forwards the original payload, and that
// clicking the same tag again is a no-op.
func TestRouterClickLifecycle(t *testing.T) {
	t.Parallel()

	surfaces := &fakeSurfaces{navigateOK: true}
	notifier := &fakeNotifier{}
	r := newTestRouter(surfaces, notifier, &fakeAcker{})
	configure(t, r)

	payload := reminderPayload("5")
	payload.FCMOptions = &FCMOptions{Link: "/calendar/reminders/5"}

	resp, err := r.Receive(
		context.Background(), DeliverMsg{Payload: payload},
	).Unpack()
	require.NoError(t, err)
	tag := resp.(DeliverResponse).Tag

	clicked, err := r.Receive(
		context.Background(), ClickedMsg{Tag: tag},
	).Unpack()
	require.NoError(t, err)

	click := clicked.(ClickedResponse)
	require.True(t, click.Known)
	require.True(t, click.Navigated)
	require.Equal(t, []string{tag}, notifier.closed)
	require.Equal(t, []string{"/calendar/reminders/5"},
		surfaces.navigated)
	require.Len(t, surfaces.delivered, 1)
	require.Equal(t, api.ChannelSystem, surfaces.delivered[0].channel)

	// Second click on the now-removed tag is a no-op.
	clicked, err = r.Receive(
		context.Background(), ClickedMsg{Tag: tag},
	).Unpack()
	require.NoError(t, err)
	require.False(t, clicked.(ClickedResponse).Known)
	require.Len(t, notifier.closed, 1)
}

// TestRouterDismiss asserts dismissal removes the live entry.
func TestRouterDismiss(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeSurfaces{}, &fakeNotifier{}, &fakeAcker{})
	configure(t, r)

	resp, err := r.Receive(
		context.Background(),
		DeliverMsg{Payload: reminderPayload("3")},
	).Unpack()
	require.NoError(t, err)
	tag := resp.(DeliverResponse).Tag

	dismissed, err := r.Receive(
		context.Background(), DismissedMsg{Tag: tag},
	).Unpack()
	require.NoError(t, err)
	require.True(t, dismissed.(DismissedResponse).Known)

	status, err := r.Receive(context.Background(), StatusMsg{}).Unpack()
	require.NoError(t, err)
	require.Zero(t, status.(StatusResponse).LiveTags)
}

// TestRouterLiveTagsBounded asserts unclicked notifications get pruned
// oldest-first once the table is full.
func TestRouterLiveTagsBounded(t *testing.T) {
	t.Parallel()

	r := NewRouter(RouterConfig{
		Surfaces:    &fakeSurfaces{},
		Notifier:    &fakeNotifier{},
		MaxLiveTags: 3,
	})
	configure(t, r)

	// Strictly increasing clock so the prune order is deterministic.
	var tick int64
	r.now = func() time.Time {
		tick++
		return time.Unix(0, tick)
	}

	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := r.Receive(
			context.Background(),
			DeliverMsg{Payload: reminderPayload(id)},
		).Unpack()
		require.NoError(t, err)
	}

	status, err := r.Receive(context.Background(), StatusMsg{}).Unpack()
	require.NoError(t, err)
	require.Equal(t, 3, status.(StatusResponse).LiveTags)

	// The oldest tag was pruned, so clicking it is a no-op.
	clicked, err := r.Receive(
		context.Background(),
		ClickedMsg{Tag: "calendar-reminder-1"},
	).Unpack()
	require.NoError(t, err)
	require.False(t, clicked.(ClickedResponse).Known)
}
