// Package web carries the WebSocket transport between the daemon and its
// foreground surfaces. Surfaces attach to /ws, hand over their session token
// and push provider config, and declare their visibility; the daemon pushes
// notifications and navigation requests back over the same connection.
package web

import (
	"encoding/json"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// Wire message types exchanged with surfaces.
const (
	// MsgTypeConnected confirms a successful attach, daemon to surface.
	MsgTypeConnected = "CONNECTED"

	// MsgTypeFirebaseConfig carries the push provider handshake, surface
	// to daemon.
	MsgTypeFirebaseConfig = "FIREBASE_CONFIG"

	// MsgTypeAuthToken carries the session bearer token, surface to
	// daemon.
	MsgTypeAuthToken = "AUTH_TOKEN"

	// MsgTypeVisibility declares whether the surface is currently
	// visible, surface to daemon.
	MsgTypeVisibility = "VISIBILITY"

	// MsgTypePushNotification delivers a push payload to a visible
	// surface, daemon to surface.
	MsgTypePushNotification = "PUSH_NOTIFICATION"

	// MsgTypeNavigate asks a surface to open a link, daemon to surface.
	MsgTypeNavigate = "NAVIGATE"

	// MsgTypePing and MsgTypePong are the application-level liveness
	// probe, on top of the protocol ping the write pump already sends.
	MsgTypePing = "PING"
	MsgTypePong = "PONG"

	// MsgTypeError reports a rejected surface message.
	MsgTypeError = "ERROR"
)

// Envelope is the framing for every wire message in both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inboundEnvelope defers payload decoding until the type is known.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthTokenPayload is the AUTH_TOKEN payload.
type AuthTokenPayload struct {
	Token string `json:"token"`
}

// VisibilityPayload is the VISIBILITY payload.
type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

// PushNotificationPayload is the PUSH_NOTIFICATION payload. BodyHTML holds
// the reminder content rendered from markdown, ready for display.
type PushNotificationPayload struct {
	Payload  push.Payload `json:"payload"`
	Channel  api.Channel  `json:"channel"`
	Title    string       `json:"title"`
	BodyHTML string       `json:"bodyHtml"`
}

// NavigatePayload is the NAVIGATE payload.
type NavigatePayload struct {
	Link string `json:"link"`
}

// ErrorPayload is the ERROR payload.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload is the CONNECTED payload.
type ConnectedPayload struct {
	SurfaceID string `json:"surfaceId"`
}
