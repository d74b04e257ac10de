package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrSessionExpired is returned before any connection is attempted
	// when the token source reports the session as already expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrEmptyBody is returned when the server answers the stream
	// request with no body at all.
	ErrEmptyBody = errors.New("stream response has no body")
)

// StatusError is returned when the stream endpoint answers with a non-2xx
// status.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected stream status %d", e.Code)
}

// DecodePolicy controls what happens when a frame's data payload fails to
// decode as JSON.
type DecodePolicy uint8

const (
	// DecodeStrict surfaces malformed payloads as a terminal stream
	// error. This is the default.
	DecodeStrict DecodePolicy = iota

	// DecodeLenient drops malformed payloads and keeps reading. Keep
	// alive comments are always ignored regardless of policy, so
	// lenient mode only matters for genuinely broken data lines.
	DecodeLenient
)

// TokenSource supplies the bearer token attached to the stream request.
type TokenSource interface {
	// Token returns the current bearer token, or empty when the
	// session is anonymous.
	Token() string

	// Expired reports whether the session is already known to be
	// expired, in which case no connection is attempted.
	Expired() bool
}

// Message is one decoded stream frame.
type Message struct {
	// EventType is the frame's event type, DefaultEventType when the
	// frame carried none.
	EventType string

	// Data is the frame's payload, validated to be well-formed JSON.
	Data json.RawMessage
}

// Config parameterizes a Client.
type Config struct {
	// URL is the stream endpoint.
	URL string

	// HTTPClient issues the streaming request. When nil a client
	// without a global timeout is used, since the request is expected
	// to stay open indefinitely.
	HTTPClient *http.Client

	// Tokens supplies the bearer token. May be nil for anonymous
	// streams.
	Tokens TokenSource

	// Policy selects the malformed payload behavior.
	Policy DecodePolicy
}

// Client consumes a server-sent-event endpoint. One Stream call owns one
// connection and one read loop; the client itself is stateless and may be
// reused across calls.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client from the given config.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}

	return &Client{cfg: cfg, http: httpClient}
}

// Stream opens the connection and delivers decoded messages, in server
// order, to the deliver callback until the stream ends. It returns nil on
// natural stream end, ctx.Err() when the caller cancelled, and a transport
// or decode error otherwise. It never retries internally; reconnect policy
// belongs to the caller, which needs the cancel/error distinction to decide
// whether retrying is appropriate.
//
// A non-nil error from deliver stops the stream and is returned as is.
func (c *Client) Stream(ctx context.Context,
	deliver func(Message) error) error {

	var token string
	if c.cfg.Tokens != nil {
		if c.cfg.Tokens.Expired() {
			return ErrSessionExpired
		}
		token = c.cfg.Tokens.Token()
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.cfg.URL, nil,
	)
	if err != nil {
		return fmt.Errorf("stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream connect: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	if resp.ContentLength == 0 {
		return ErrEmptyBody
	}

	log.DebugS(ctx, "Stream connected",
		"url", c.cfg.URL,
		"status", resp.StatusCode)

	var (
		parser Parser
		buf    = make([]byte, 4096)
		frames int
	)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, frame := range parser.Push(buf[:n]) {
				msg, ok, decErr := c.decode(ctx, frame)
				if decErr != nil {
					return decErr
				}
				if !ok {
					continue
				}

				frames++
				if err := deliver(msg); err != nil {
					return err
				}
			}
		}

		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			log.InfoS(ctx, "Stream ended",
				"frames", frames,
				"uptime", time.Since(start))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("stream read: %w", readErr)
	}
}

// decode validates a frame's payload as JSON. Under DecodeLenient a
// malformed payload is logged and skipped; under DecodeStrict it is a
// terminal error.
func (c *Client) decode(ctx context.Context,
	frame Frame) (Message, bool, error) {

	if !json.Valid(frame.Data) {
		if c.cfg.Policy == DecodeLenient {
			log.WarnS(ctx, "Dropping malformed frame payload",
				nil, "event_type", frame.EventType)
			return Message{}, false, nil
		}

		return Message{}, false, fmt.Errorf(
			"malformed frame payload for event %q",
			frame.EventType,
		)
	}

	return Message{
		EventType: frame.EventType,
		Data:      json.RawMessage(frame.Data),
	}, true, nil
}
