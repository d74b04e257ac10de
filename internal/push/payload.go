// Package push implements the delivery router for provider-pushed messages.
// The router runs as an actor inside the daemon, outliving any foreground
// surface, and decides for every payload whether it goes straight to a
// visible surface or becomes an OS level notification.
package push

import (
	"encoding/json"
)

// Payload is the provider wire format. Data carries string fields keyed by
// the producing backend; Data["type"] discriminates the payload kind.
type Payload struct {
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	FCMOptions   *FCMOptions       `json:"fcmOptions,omitempty"`
}

// Notification is the display content block of a payload.
type Notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// FCMOptions carries provider options, of which only the click-through link
// is consumed here.
type FCMOptions struct {
	Link string `json:"link,omitempty"`
}

// DecodePayload parses a raw JSON payload.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}

	return p, nil
}

// Kind is the sum type over known payload kinds. Classification happens
// once, in Classify; use sites switch on the concrete type instead of
// re-reading Data["type"].
type Kind interface {
	kindMarker()

	// Title returns the display title for the payload, already
	// resolved through the notification-block-then-data fallback chain.
	Title() string

	// Body returns the display body, same fallback chain.
	Body() string
}

// CalendarReminder is a push for a due calendar reminder.
type CalendarReminder struct {
	// ReminderID is the backend reminder identifier, as carried on the
	// wire. Empty when the backend omitted it.
	ReminderID string

	// Timezone and ScheduledFor mirror the reminder's schedule fields.
	Timezone     string
	ScheduledFor string

	// Link is the click-through target.
	Link string

	title string
	body  string
}

// CalendarSyncFailed is a push reporting a failed calendar synchronization.
type CalendarSyncFailed struct {
	Reason string

	title string
	body  string
}

// Generic is any payload with an unknown or absent type discriminator.
type Generic struct {
	Link string

	title string
	body  string
}

func (CalendarReminder) kindMarker()   {}
func (CalendarSyncFailed) kindMarker() {}
func (Generic) kindMarker()            {}

func (k CalendarReminder) Title() string   { return k.title }
func (k CalendarReminder) Body() string    { return k.body }
func (k CalendarSyncFailed) Title() string { return k.title }
func (k CalendarSyncFailed) Body() string  { return k.body }
func (k Generic) Title() string            { return k.title }
func (k Generic) Body() string             { return k.body }

// NotificationTag returns the OS notification tag for the reminder, so a
// second push for the same logical reminder replaces rather than stacks.
func (k CalendarReminder) NotificationTag() string {
	return "calendar-reminder-" + k.ReminderID
}

// Payload type discriminator values.
const (
	typeCalendarReminder   = "calendar_reminder"
	typeCalendarSyncFailed = "calendar_sync_failed"
)

// Classify builds the tagged representation of a payload. Display content
// prefers the notification block and falls back to data fields.
func Classify(p Payload) Kind {
	title := firstNonEmpty(
		notifTitle(p), p.Data["title"],
	)
	body := firstNonEmpty(
		notifBody(p), p.Data["body"], p.Data["content"],
	)

	var link string
	if p.FCMOptions != nil {
		link = p.FCMOptions.Link
	}

	switch p.Data["type"] {
	case typeCalendarReminder:
		return CalendarReminder{
			ReminderID:   p.Data["reminderId"],
			Timezone:     p.Data["timezone"],
			ScheduledFor: p.Data["scheduledFor"],
			Link:         link,
			title:        firstNonEmpty(title, "Reminder"),
			body:         body,
		}

	case typeCalendarSyncFailed:
		return CalendarSyncFailed{
			Reason: p.Data["reason"],
			title:  firstNonEmpty(title, "Calendar sync failed"),
			body:   firstNonEmpty(body, p.Data["reason"]),
		}

	default:
		return Generic{
			Link:  link,
			title: firstNonEmpty(title, "Notification"),
			body:  body,
		}
	}
}

func notifTitle(p Payload) string {
	if p.Notification == nil {
		return ""
	}
	return p.Notification.Title
}

func notifBody(p Payload) string {
	if p.Notification == nil {
		return ""
	}
	return p.Notification.Body
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
