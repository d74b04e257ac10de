// Package api is the authenticated HTTP client for the CRM backend. It
// covers the calendar-reminder inbox endpoints, the delivery acknowledgment
// endpoint, and the client log sink. Everything else the backend offers is
// out of scope for this module.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the path by which a notification reached the user.
type Channel string

const (
	// ChannelSystem marks delivery via an OS level notification.
	ChannelSystem Channel = "system"

	// ChannelInApp marks direct delivery to a visible foreground
	// surface.
	ChannelInApp Channel = "in_app"
)

// TokenProvider supplies the bearer token for backend requests. The same
// implementation also feeds the event stream client.
type TokenProvider interface {
	// Token returns the current bearer token, empty when anonymous.
	Token() string

	// Expired reports whether the session is already known expired.
	Expired() bool
}

// Reminder is one calendar reminder as the inbox endpoint returns it.
// ReadAt stays nil until the reminder has been acknowledged as read.
type Reminder struct {
	ID           int64      `json:"id"`
	Content      string     `json:"content"`
	ReminderDate string     `json:"reminderDate"`
	ReminderTime string     `json:"reminderTime"`
	Timezone     string     `json:"timezone"`
	SentAt       time.Time  `json:"sentAt"`
	ReadAt       *time.Time `json:"readAt"`
}

// InboxSnapshot is the authoritative unread state returned by the inbox
// endpoint.
type InboxSnapshot struct {
	UnreadCount int        `json:"unreadCount"`
	Today       []Reminder `json:"today"`
}

// LogEntry is one forwarded client log record.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Subsystem string    `json:"subsystem"`
	LoggedAt  time.Time `json:"loggedAt"`
}

// Config parameterizes a Client.
type Config struct {
	// BaseURL is the backend origin, without a trailing slash.
	BaseURL string

	// HTTPClient issues requests. A 30s-timeout client is used when
	// nil.
	HTTPClient *http.Client

	// Tokens supplies the bearer token. May be nil for tests.
	Tokens TokenProvider

	// DeviceLabel identifies this installation in acknowledgments.
	// When empty a label is derived from the hostname plus a random
	// suffix.
	DeviceLabel string
}

// Client is a thin, stateless wrapper over the backend's JSON endpoints.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenProvider
	deviceLabel string
}

// New creates a backend client from the given config.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	label := cfg.DeviceLabel
	if label == "" {
		label = defaultDeviceLabel()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        httpClient,
		tokens:      cfg.Tokens,
		deviceLabel: label,
	}
}

// DeviceLabel returns the label sent with acknowledgments.
func (c *Client) DeviceLabel() string {
	return c.deviceLabel
}

// FetchInbox fetches the authoritative unread count and today's reminder
// list. The result fully replaces any locally held list.
func (c *Client) FetchInbox(ctx context.Context,
	limit int) (InboxSnapshot, error) {

	var snap InboxSnapshot
	path := fmt.Sprintf(
		"/api/calendar-reminders/inbox/?limit=%d", limit,
	)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return InboxSnapshot{}, err
	}

	return snap, nil
}

// MarkRead marks the given reminders as read, or all unread reminders when
// ids is empty, and returns the backend's authoritative unread count.
func (c *Client) MarkRead(ctx context.Context, ids []int64) (int, error) {
	req := struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids}
	if req.IDs == nil {
		req.IDs = []int64{}
	}

	var resp struct {
		UnreadCount int `json:"unreadCount"`
	}
	err := c.do(
		ctx, http.MethodPost,
		"/api/calendar-reminders/inbox/mark-read/", req, &resp,
	)
	if err != nil {
		return 0, err
	}

	return resp.UnreadCount, nil
}

// AckDelivery records how reminder id reached the user. The backend treats
// re-acking as a no-op, so callers may retry freely.
func (c *Client) AckDelivery(ctx context.Context, id int64,
	channel Channel) error {

	req := struct {
		Channel     Channel `json:"channel"`
		DeviceLabel string  `json:"deviceLabel"`
	}{Channel: channel, DeviceLabel: c.deviceLabel}

	path := fmt.Sprintf("/api/calendar-reminders/%d/ack/", id)

	return c.do(ctx, http.MethodPost, path, req, nil)
}

// ForwardLog ships one client log record to the backend. Best effort;
// callers are expected to ignore the error beyond logging it locally.
func (c *Client) ForwardLog(ctx context.Context, entry LogEntry) error {
	return c.do(ctx, http.MethodPost, "/api/client-logs/", entry, nil)
}

// do issues one JSON request and decodes the response into out when out is
// non-nil. Authentication failures map to ErrSessionExpired, other non-2xx
// statuses to UnexpectedStatusError.
func (c *Client) do(ctx context.Context, method, path string,
	body, out any) error {

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.baseURL+path, reqBody,
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:

		return ErrSessionExpired

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &UnexpectedStatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w",
			method, path, err)
	}

	return nil
}

// defaultDeviceLabel builds a stable-enough installation label from the
// hostname plus a short random suffix so two daemons on one host stay
// distinguishable.
func defaultDeviceLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}

	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}
