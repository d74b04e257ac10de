// Package inbox maintains the reminder inbox: the unread count and the "due
// today" list, reconciled from periodic polls, push-triggered refreshes, and
// user read actions.
package inbox

import (
	"time"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// InboxRequest is the union type for all inbox requests.
type InboxRequest interface {
	actor.Message
	isInboxRequest()
}

// InboxResponse is the union type for all inbox responses.
type InboxResponse interface {
	isInboxResponse()
}

// Ensure all request types implement InboxRequest.
func (RefreshMsg) isInboxRequest()      {}
func (MarkReadMsg) isInboxRequest()     {}
func (PushReceivedMsg) isInboxRequest() {}
func (SnapshotMsg) isInboxRequest()     {}

// Ensure all response types implement InboxResponse.
func (RefreshResponse) isInboxResponse()      {}
func (MarkReadResponse) isInboxResponse()     {}
func (PushReceivedResponse) isInboxResponse() {}
func (SnapshotResponse) isInboxResponse()     {}

// RefreshMsg fetches the authoritative inbox state. The result fully
// replaces the local today list; there is no merging.
type RefreshMsg struct {
	actor.BaseMessage

	// ShowError raises the log severity of a failed fetch, for
	// refreshes the user asked for explicitly.
	ShowError bool
}

// MessageType implements actor.Message.
func (RefreshMsg) MessageType() string { return "RefreshMsg" }

// RefreshResponse is the response to RefreshMsg.
type RefreshResponse struct {
	// Applied is true when the fetch succeeded and local state was
	// replaced.
	Applied bool

	// UnreadCount is the count after the refresh.
	UnreadCount int

	// Err carries the fetch failure, if any. The failure leaves local
	// state untouched.
	Err error
}

// MarkReadMsg marks reminders as read. Empty IDs means all unread ones.
// Local state is stamped optimistically before the backend call; a failed
// call leaves the optimistic state in place.
type MarkReadMsg struct {
	actor.BaseMessage

	IDs []int64
}

// MessageType implements actor.Message.
func (MarkReadMsg) MessageType() string { return "MarkReadMsg" }

// MarkReadResponse is the response to MarkReadMsg.
type MarkReadResponse struct {
	// UnreadCount is the backend's authoritative count when the persist
	// succeeded, the optimistic local count otherwise.
	UnreadCount int

	// Persisted is false when the backend call failed or was skipped.
	Persisted bool
}

// PushReceivedMsg reports a foreground-delivered push payload. A calendar
// reminder payload triggers an out-of-band refresh rather than waiting for
// the next poll tick.
type PushReceivedMsg struct {
	actor.BaseMessage

	Payload push.Payload
}

// MessageType implements actor.Message.
func (PushReceivedMsg) MessageType() string { return "PushReceivedMsg" }

// PushReceivedResponse is the response to PushReceivedMsg.
type PushReceivedResponse struct {
	// Refreshed is true when the payload warranted a refresh.
	Refreshed bool
}

// SnapshotMsg asks for the current local state.
type SnapshotMsg struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (SnapshotMsg) MessageType() string { return "SnapshotMsg" }

// SnapshotResponse is the response to SnapshotMsg.
type SnapshotResponse struct {
	UnreadCount   int
	Today         []api.Reminder
	Authenticated bool
	LastRefresh   time.Time
}
