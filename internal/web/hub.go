package web

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// Control receives the handshake messages a surface sends after attaching.
// The daemon wires these to the push router and the token store.
type Control interface {
	// OnProviderConfig is called when a surface hands over the push
	// provider config.
	OnProviderConfig(ctx context.Context, cfg push.ProviderConfig)

	// OnAuthToken is called when a surface hands over its session token.
	OnAuthToken(ctx context.Context, token string)
}

// Hub maintains the set of attached surfaces and routes messages between
// them and the daemon. It implements the push router's SurfaceDirectory
// port.
type Hub struct {
	control Control

	// Attached surfaces.
	clients map[*Client]struct{}

	// Register requests from clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to the client set.
	mu sync.RWMutex

	// Context for shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub. The control port may be nil, in which case handshake
// messages are acknowledged but go nowhere.
func NewHub(control Control) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		control:    control,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			// Clean up all clients on shutdown.
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()

			log.Infof("Surface %s attached (total=%d)",
				client.id, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()

			log.Infof("Surface %s detached (total=%d)",
				client.id, total)
		}
	}
}

// Stop shuts down the hub.
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount returns the number of attached surfaces.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// VisibleCount returns the number of surfaces that declared themselves
// visible.
func (h *Hub) VisibleCount(_ context.Context) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var n int
	for client := range h.clients {
		if client.Visible() {
			n++
		}
	}

	return n
}

// DeliverToVisible hands the payload to every visible surface and returns
// how many accepted it. The reminder body is rendered from markdown once,
// before fan-out.
func (h *Hub) DeliverToVisible(_ context.Context, p push.Payload,
	channel api.Channel) int {

	kind := push.Classify(p)
	msg := &Envelope{
		Type: MsgTypePushNotification,
		Payload: PushNotificationPayload{
			Payload:  p,
			Channel:  channel,
			Title:    kind.Title(),
			BodyHTML: RenderMarkdown(kind.Body()),
		},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var accepted int
	for client := range h.clients {
		if !client.Visible() {
			continue
		}
		if client.Send(msg) {
			accepted++
		}
	}

	return accepted
}

// Navigate asks one attached surface to open the link, preferring a visible
// one. It returns false when no surface took it.
func (h *Hub) Navigate(_ context.Context, link string) bool {
	msg := &Envelope{
		Type:    MsgTypeNavigate,
		Payload: NavigatePayload{Link: link},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var fallback *Client
	for client := range h.clients {
		if client.Visible() {
			if client.Send(msg) {
				return true
			}
			continue
		}
		if fallback == nil {
			fallback = client
		}
	}

	if fallback != nil {
		return fallback.Send(msg)
	}

	return false
}

// Attach registers an upgraded connection with the hub, completes the
// CONNECTED handshake, and starts the pumps.
func (h *Hub) Attach(conn *websocket.Conn) *Client {
	client := newClient(h, conn, uuid.NewString()[:8])

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.Close()
		return client
	}

	client.Send(&Envelope{
		Type:    MsgTypeConnected,
		Payload: ConnectedPayload{SurfaceID: client.id},
	})

	go client.writePump()
	go client.readPump()

	return client
}

// handleIncoming processes one message received from a surface.
func (h *Hub) handleIncoming(client *Client, data []byte) {
	var msg inboundEnvelope
	if err := json.Unmarshal(data, &msg); err != nil {
		client.Send(&Envelope{
			Type:    MsgTypeError,
			Payload: ErrorPayload{Message: "invalid message format"},
		})
		return
	}

	switch msg.Type {
	case MsgTypePing:
		client.Send(&Envelope{Type: MsgTypePong})

	case MsgTypeVisibility:
		var vis VisibilityPayload
		if err := json.Unmarshal(msg.Payload, &vis); err != nil {
			client.Send(invalidPayload(msg.Type))
			return
		}

		client.setVisible(vis.Visible)
		log.Debugf("Surface %s visibility=%v", client.id, vis.Visible)

	case MsgTypeAuthToken:
		var auth AuthTokenPayload
		if err := json.Unmarshal(msg.Payload, &auth); err != nil {
			client.Send(invalidPayload(msg.Type))
			return
		}

		if h.control != nil {
			h.control.OnAuthToken(h.ctx, auth.Token)
		}

	case MsgTypeFirebaseConfig:
		var cfg push.ProviderConfig
		if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
			client.Send(invalidPayload(msg.Type))
			return
		}

		if h.control != nil {
			h.control.OnProviderConfig(h.ctx, cfg)
		}

	default:
		client.Send(&Envelope{
			Type: MsgTypeError,
			Payload: ErrorPayload{
				Message: "unknown message type: " + msg.Type,
			},
		})
	}
}

func invalidPayload(msgType string) *Envelope {
	return &Envelope{
		Type: MsgTypeError,
		Payload: ErrorPayload{
			Message: "invalid payload for " + msgType,
		},
	}
}
