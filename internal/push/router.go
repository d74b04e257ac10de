package push

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
)

// RouterKey is the service key for the delivery router actor.
var RouterKey = actor.NewServiceKey[RouterRequest, RouterResponse](
	"push-router",
)

// SurfaceDirectory is the router's view of foreground surfaces. The
// enumeration and the delivery are separate calls; the router accepts that
// a surface may appear or vanish between them.
type SurfaceDirectory interface {
	// VisibleCount returns the number of currently visible surfaces.
	VisibleCount(ctx context.Context) int

	// DeliverToVisible hands the payload to every visible surface and
	// returns how many accepted it. Must not block on slow surfaces.
	DeliverToVisible(ctx context.Context, p Payload,
		channel api.Channel) int

	// Navigate asks an existing surface to open the link. It returns
	// false when no surface took it.
	Navigate(ctx context.Context, link string) bool
}

// SystemNotifier raises OS level notifications. Notify with a tag that was
// already used replaces the previous notification rather than stacking a
// new one.
type SystemNotifier interface {
	Notify(ctx context.Context, title, body, tag string) error
	Close(ctx context.Context, tag string) error
}

// Acker posts delivery acknowledgments to the backend. Satisfied by
// api.Client.
type Acker interface {
	AckDelivery(ctx context.Context, id int64, channel api.Channel) error
}

// DeliveryJournal persists each raised OS notification under its tag, so
// the replace-not-stack history survives a daemon restart.
type DeliveryJournal interface {
	RecordDelivery(ctx context.Context, tag string, reminderID int64,
		title string) error
}

// TokenSink receives bearer token updates from the auth handshake.
type TokenSink interface {
	SetToken(token string)
}

const (
	// defaultAckTimeout bounds the best-effort acknowledgment call.
	defaultAckTimeout = 10 * time.Second

	// defaultMaxLiveTags bounds the live notification table. Raised
	// notifications that are never clicked or dismissed get pruned
	// oldest-first beyond this.
	defaultMaxLiveTags = 256
)

// RouterConfig wires the router's ports.
type RouterConfig struct {
	Surfaces SurfaceDirectory
	Notifier SystemNotifier
	Acker    Acker

	// Tokens receives bearer token updates. May be nil.
	Tokens TokenSink

	// Journal records raised notifications. May be nil.
	Journal DeliveryJournal

	// AckTimeout bounds each acknowledgment request.
	AckTimeout time.Duration

	// MaxLiveTags caps the live notification table.
	MaxLiveTags int
}

// liveNotification is the router's record of one raised OS notification,
// kept until the notification is clicked, dismissed, or pruned.
type liveNotification struct {
	fsm         *DeliveryFSM
	payload     Payload
	link        string
	displayedAt time.Time
}

// Router decides, per payload, between direct foreground delivery and an OS
// notification. All state lives inside the actor; the ports are the only
// way anything leaves it.
//
// The router is initialized by the provider config handshake. Payloads that
// arrive before it are dropped and counted, never buffered.
type Router struct {
	cfg RouterConfig

	initialized bool
	provider    ProviderConfig

	live map[string]*liveNotification

	droppedPreInit uint64
	deliveredInApp uint64
	notified       uint64

	now func() time.Time
}

// NewRouter creates an uninitialized router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	if cfg.MaxLiveTags <= 0 {
		cfg.MaxLiveTags = defaultMaxLiveTags
	}

	return &Router{
		cfg:  cfg,
		live: make(map[string]*liveNotification),
		now:  time.Now,
	}
}

// Receive implements actor.ActorBehavior by dispatching to type-specific
// handlers. It never returns an error for a delivery: internal failures
// degrade to a generic notification so a push is not silently lost.
func (r *Router) Receive(ctx context.Context,
	msg RouterRequest) fn.Result[RouterResponse] {

	switch m := msg.(type) {
	case ConfigureMsg:
		return fn.Ok[RouterResponse](r.handleConfigure(ctx, m))

	case SetAuthTokenMsg:
		return fn.Ok[RouterResponse](r.handleSetAuthToken(m))

	case DeliverMsg:
		return fn.Ok[RouterResponse](r.handleDeliver(ctx, m))

	case ClickedMsg:
		return fn.Ok[RouterResponse](r.handleClicked(ctx, m))

	case DismissedMsg:
		return fn.Ok[RouterResponse](r.handleDismissed(m))

	case StatusMsg:
		return fn.Ok[RouterResponse](r.handleStatus())

	default:
		return fn.Err[RouterResponse](ErrUnknownRequestType)
	}
}

// handleConfigure moves the router to initialized. The transition is
// one-way and repeats are idempotent.
func (r *Router) handleConfigure(ctx context.Context,
	msg ConfigureMsg) ConfigureResponse {

	if r.initialized {
		return ConfigureResponse{AlreadyInitialized: true}
	}

	r.provider = msg.Config
	r.initialized = true
	log.InfoS(ctx, "Router initialized",
		"project_id", msg.Config.ProjectID,
		"dropped_pre_init", r.droppedPreInit)

	return ConfigureResponse{}
}

func (r *Router) handleSetAuthToken(msg SetAuthTokenMsg) SetAuthTokenResponse {
	if r.cfg.Tokens != nil {
		r.cfg.Tokens.SetToken(msg.Token)
	}

	return SetAuthTokenResponse{}
}

// handleDeliver routes one payload to exactly one of foreground delivery or
// OS notification.
func (r *Router) handleDeliver(ctx context.Context,
	msg DeliverMsg) DeliverResponse {

	if !r.initialized {
		r.droppedPreInit++
		log.WarnS(ctx, "Dropping pre-init payload", nil,
			"dropped_total", r.droppedPreInit)

		return DeliverResponse{Dropped: true}
	}

	kind := Classify(msg.Payload)

	// Visible app state preempts system-level interruption: when any
	// surface is visible the payload goes there and no OS notification
	// is raised.
	if r.cfg.Surfaces.VisibleCount(ctx) > 0 {
		delivered := r.cfg.Surfaces.DeliverToVisible(
			ctx, msg.Payload, api.ChannelInApp,
		)
		r.deliveredInApp++
		log.DebugS(ctx, "Delivered payload to surfaces",
			"surfaces", delivered)

		return DeliverResponse{
			Channel:  api.ChannelInApp,
			Surfaces: delivered,
		}
	}

	tag := r.raiseNotification(ctx, kind, msg.Payload)

	return DeliverResponse{Channel: api.ChannelSystem, Tag: tag}
}

// raiseNotification shows the OS notification for a payload and records its
// lifecycle. All failures are absorbed here.
func (r *Router) raiseNotification(ctx context.Context, kind Kind,
	payload Payload) string {

	var (
		tag   string
		link  string
		ackID int64
	)
	switch k := kind.(type) {
	case CalendarReminder:
		if k.ReminderID != "" {
			tag = k.NotificationTag()
			if id, err := strconv.ParseInt(
				k.ReminderID, 10, 64,
			); err == nil {
				ackID = id
			}
		}
		link = k.Link

	case Generic:
		link = k.Link
	}
	if tag == "" {
		tag = "push-" + uuid.New().String()[:8]
	}

	err := r.cfg.Notifier.Notify(ctx, kind.Title(), kind.Body(), tag)
	if err != nil {
		log.ErrorS(ctx, "Notification failed, showing generic", err,
			"tag", tag)

		// Degraded generic fallback so the push is not lost. A
		// failure here is only logged.
		err = r.cfg.Notifier.Notify(ctx, "Notification", "", tag)
		if err != nil {
			log.ErrorS(ctx, "Generic notification failed", err,
				"tag", tag)
			return tag
		}
	}

	fsm := NewDeliveryFSM()
	_, _ = fsm.ProcessEvent(DisplayedEvent{})
	r.trackLive(tag, &liveNotification{
		fsm:         fsm,
		payload:     payload,
		link:        link,
		displayedAt: r.now(),
	})
	r.notified++

	// Journal the tag so a restart keeps replacing instead of stacking.
	if r.cfg.Journal != nil {
		err := r.cfg.Journal.RecordDelivery(
			ctx, tag, ackID, kind.Title(),
		)
		if err != nil {
			log.WarnS(ctx, "Delivery journal write failed", err,
				"tag", tag)
		}
	}

	// Advisory ack of the system channel, off the actor goroutine so a
	// slow backend cannot stall routing. Failures are swallowed.
	if ackID != 0 && r.cfg.Acker != nil {
		r.ackSystemAsync(ctx, ackID)
	}

	return tag
}

// trackLive records a raised notification, pruning the oldest entry when
// the table is full.
func (r *Router) trackLive(tag string, n *liveNotification) {
	if len(r.live) >= r.cfg.MaxLiveTags {
		var (
			oldestTag string
			oldestAt  time.Time
		)
		for t, entry := range r.live {
			if oldestTag == "" || entry.displayedAt.Before(oldestAt) {
				oldestTag = t
				oldestAt = entry.displayedAt
			}
		}
		delete(r.live, oldestTag)
	}

	r.live[tag] = n
}

// ackSystemAsync posts the "system" delivery ack in the background. The
// parent's cancellation is detached so daemon shutdown mid-ack does not
// turn an advisory call into an error path.
func (r *Router) ackSystemAsync(ctx context.Context, id int64) {
	ackCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), r.cfg.AckTimeout,
	)
	go func() {
		defer cancel()

		err := r.cfg.Acker.AckDelivery(ackCtx, id, api.ChannelSystem)
		if err != nil {
			log.DebugS(ackCtx, "System ack failed",
				"reminder_id", id, "err", err)
		}
	}()
}

// handleClicked closes the clicked notification, navigates an existing
// surface to the link, and re-forwards the original payload so the
// foreground can process it too.
func (r *Router) handleClicked(ctx context.Context,
	msg ClickedMsg) ClickedResponse {

	entry, ok := r.live[msg.Tag]
	if !ok {
		return ClickedResponse{}
	}

	if err := r.cfg.Notifier.Close(ctx, msg.Tag); err != nil {
		log.DebugS(ctx, "Notification close failed",
			"tag", msg.Tag, "err", err)
	}
	_, _ = entry.fsm.ProcessEvent(ClickedEvent{})

	var navigated bool
	if entry.link != "" {
		navigated = r.cfg.Surfaces.Navigate(ctx, entry.link)
	}

	forwarded := r.cfg.Surfaces.DeliverToVisible(
		ctx, entry.payload, api.ChannelSystem,
	)

	delete(r.live, msg.Tag)

	return ClickedResponse{
		Known:     true,
		Navigated: navigated,
		Forwarded: forwarded,
	}
}

func (r *Router) handleDismissed(msg DismissedMsg) DismissedResponse {
	entry, ok := r.live[msg.Tag]
	if !ok {
		return DismissedResponse{}
	}

	_, _ = entry.fsm.ProcessEvent(DismissedEvent{})
	delete(r.live, msg.Tag)

	return DismissedResponse{Known: true}
}

func (r *Router) handleStatus() StatusResponse {
	return StatusResponse{
		Initialized:    r.initialized,
		DroppedPreInit: r.droppedPreInit,
		DeliveredInApp: r.deliveredInApp,
		Notified:       r.notified,
		LiveTags:       len(r.live),
	}
}
