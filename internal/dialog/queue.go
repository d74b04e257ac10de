// Package dialog holds the foreground presentation queue: inbound reminder
// events become timed, dismissible dialog entries, deduplicated by reminder
// identifier. The queue renders nothing itself; it reports every change to
// a Sink.
package dialog

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

const (
	// DefaultAutoCloseDelay is how long a push-sourced dialog stays up
	// before closing on its own.
	DefaultAutoCloseDelay = 10 * time.Second

	// DefaultClosingDelay is the animation window between marking an
	// item closing and physically removing it.
	DefaultClosingDelay = 400 * time.Millisecond
)

// Item is one dialog entry.
type Item struct {
	// ID is the queue-local identifier used by Close.
	ID string

	Title string
	Body  string

	// ReminderID is the backend reminder this dialog shows, empty when
	// unknown. Non-empty IDs drive duplicate suppression.
	ReminderID string

	Timezone     string
	ScheduledFor string
	ReceivedAt   time.Time

	// Closing is set the moment dismissal is requested, so the UI can
	// animate the item out before it disappears.
	Closing bool

	// AutoClose is true for push-sourced items, which dismiss
	// themselves after DefaultAutoCloseDelay. Backfilled items stay
	// until dismissed.
	AutoClose bool
}

// Sink receives queue changes. Calls arrive from the enqueuing goroutine
// and from timer goroutines; implementations do their own locking.
type Sink interface {
	// ItemOpened reports a newly enqueued item.
	ItemOpened(item Item)

	// ItemClosing reports an item entering its closing animation.
	ItemClosing(item Item)

	// ItemRemoved reports an item leaving the queue.
	ItemRemoved(id string)
}

// Config parameterizes a Queue.
type Config struct {
	Sink Sink

	// AutoCloseDelay overrides DefaultAutoCloseDelay when positive.
	AutoCloseDelay time.Duration

	// ClosingDelay overrides DefaultClosingDelay when positive.
	ClosingDelay time.Duration
}

// entry pairs an item with its pending timer: the auto-close timer while
// the item is open, the removal timer once it is closing. At most one is
// live at a time, and it is always stopped before the item is removed.
type entry struct {
	item  Item
	timer *time.Timer
}

// Queue is the dialog queue. Items are kept newest-first. Safe for
// concurrent use; timer callbacks re-enter through the same lock.
type Queue struct {
	mu   sync.Mutex
	cfg  Config
	list []*entry

	shutdown bool

	now   func() time.Time
	newID func() string
}

// NewQueue creates an empty queue.
func NewQueue(cfg Config) *Queue {
	if cfg.AutoCloseDelay <= 0 {
		cfg.AutoCloseDelay = DefaultAutoCloseDelay
	}
	if cfg.ClosingDelay <= 0 {
		cfg.ClosingDelay = DefaultClosingDelay
	}

	return &Queue{
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// EnqueueFromPayload builds a dialog from a push payload. Push-sourced
// dialogs auto-close. It returns the enqueued item, or false when the
// payload was suppressed as a duplicate.
func (q *Queue) EnqueueFromPayload(p push.Payload) (Item, bool) {
	kind := push.Classify(p)

	item := Item{
		Title:     kind.Title(),
		Body:      kind.Body(),
		AutoClose: true,
	}
	if reminder, ok := kind.(push.CalendarReminder); ok {
		item.ReminderID = reminder.ReminderID
		item.Timezone = reminder.Timezone
		item.ScheduledFor = reminder.ScheduledFor
	}

	return q.enqueue(item)
}

// EnqueueFromReminder builds a dialog from a polled inbox reminder.
// Backfilled dialogs stay up until dismissed.
func (q *Queue) EnqueueFromReminder(rem api.Reminder) (Item, bool) {
	return q.enqueue(Item{
		Title:      "Reminder",
		Body:       rem.Content,
		ReminderID: strconv.FormatInt(rem.ID, 10),
		Timezone:   rem.Timezone,
	})
}

// enqueue applies duplicate suppression and prepends the item. The same
// reminder routinely arrives both via push and via poll backfill; the
// second enqueue for a reminder id with a live, non-closing dialog is
// silently dropped.
func (q *Queue) enqueue(item Item) (Item, bool) {
	q.mu.Lock()

	if q.shutdown {
		q.mu.Unlock()
		return Item{}, false
	}

	if item.ReminderID != "" {
		for _, e := range q.list {
			if e.item.ReminderID == item.ReminderID &&
				!e.item.Closing {

				q.mu.Unlock()
				return Item{}, false
			}
		}
	}

	item.ID = q.newID()
	item.ReceivedAt = q.now()

	e := &entry{item: item}
	if item.AutoClose {
		id := item.ID
		e.timer = time.AfterFunc(q.cfg.AutoCloseDelay, func() {
			q.Close(id)
		})
	}

	// Newest first.
	q.list = append([]*entry{e}, q.list...)

	sink := q.cfg.Sink
	q.mu.Unlock()

	if sink != nil {
		sink.ItemOpened(item)
	}

	return item, true
}

// Close marks the item closing and removes it after the closing delay.
// Closing an absent or already-closing id is a no-op, so the auto-close
// timer and a user dismissal can race harmlessly.
func (q *Queue) Close(id string) {
	q.mu.Lock()

	e := q.find(id)
	if e == nil || e.item.Closing {
		q.mu.Unlock()
		return
	}

	// The auto-close timer, if any, must be dead before the removal
	// timer takes over the entry.
	if e.timer != nil {
		e.timer.Stop()
	}

	e.item.Closing = true
	e.timer = time.AfterFunc(q.cfg.ClosingDelay, func() {
		q.remove(id)
	})

	item := e.item
	sink := q.cfg.Sink
	q.mu.Unlock()

	if sink != nil {
		sink.ItemClosing(item)
	}
}

// remove drops the item from the queue.
func (q *Queue) remove(id string) {
	q.mu.Lock()

	found := false
	for i, e := range q.list {
		if e.item.ID != id {
			continue
		}

		if e.timer != nil {
			e.timer.Stop()
		}
		q.list = append(q.list[:i], q.list[i+1:]...)
		found = true
		break
	}

	sink := q.cfg.Sink
	q.mu.Unlock()

	if found && sink != nil {
		sink.ItemRemoved(id)
	}
}

// Items returns a newest-first snapshot of the queue.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, len(q.list))
	for i, e := range q.list {
		out[i] = e.item
	}

	return out
}

// Shutdown stops every pending timer and empties the queue. The queue
// accepts nothing afterwards.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shutdown = true
	for _, e := range q.list {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	q.list = nil
}

// find returns the entry for id, or nil. Callers hold the lock.
func (q *Queue) find(id string) *entry {
	for _, e := range q.list {
		if e.item.ID == id {
			return e
		}
	}

	return nil
}
