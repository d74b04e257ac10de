package inbox

import (
	"context"
	"slices"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
)

// InboxKey is the service key for the inbox actor.
var InboxKey = actor.NewServiceKey[InboxRequest, InboxResponse](
	"reminder-inbox",
)

// DefaultLimit is the today-list size requested from the backend.
const DefaultLimit = 20

// Backend is the slice of the API client the inbox needs. Satisfied by
// api.Client.
type Backend interface {
	FetchInbox(ctx context.Context, limit int) (api.InboxSnapshot, error)
	MarkRead(ctx context.Context, ids []int64) (int, error)
}

// Config wires the inbox service.
type Config struct {
	Backend Backend

	// Tokens gates all requests: an anonymous or expired session
	// forces zero state and suppresses fetches entirely.
	Tokens api.TokenProvider

	// Limit overrides DefaultLimit when positive.
	Limit int
}

// Service is the inbox actor behavior. All three input streams meet here:
// poll ticks and explicit refreshes arrive as RefreshMsg, push deliveries
// as PushReceivedMsg, and user read actions as MarkReadMsg. Serial
// processing inside the actor is what makes the optimistic mark-read and
// the full-replace refresh safe to interleave.
type Service struct {
	cfg Config

	unreadCount int
	today       []api.Reminder
	lastRefresh time.Time

	now func() time.Time
}

// NewService creates an inbox service with empty state.
func NewService(cfg Config) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	return &Service{cfg: cfg, now: time.Now}
}

// Receive implements actor.ActorBehavior by dispatching to type-specific
// handlers.
func (s *Service) Receive(ctx context.Context,
	msg InboxRequest) fn.Result[InboxResponse] {

	switch m := msg.(type) {
	case RefreshMsg:
		return fn.Ok[InboxResponse](s.handleRefresh(ctx, m))

	case MarkReadMsg:
		return fn.Ok[InboxResponse](s.handleMarkRead(ctx, m))

	case PushReceivedMsg:
		return fn.Ok[InboxResponse](s.handlePushReceived(ctx, m))

	case SnapshotMsg:
		return fn.Ok[InboxResponse](s.handleSnapshot())

	default:
		return fn.Err[InboxResponse](ErrUnknownRequestType)
	}
}

func (s *Service) authenticated() bool {
	if s.cfg.Tokens == nil {
		return false
	}

	return s.cfg.Tokens.Token() != "" && !s.cfg.Tokens.Expired()
}

// handleRefresh fetches the authoritative snapshot and fully replaces local
// state with it. An unauthenticated session zeroes state without any
// request.
func (s *Service) handleRefresh(ctx context.Context,
	msg RefreshMsg) RefreshResponse {

	if !s.authenticated() {
		s.unreadCount = 0
		s.today = nil

		return RefreshResponse{Applied: true}
	}

	snap, err := s.cfg.Backend.FetchInbox(ctx, s.cfg.Limit)
	if err != nil {
		if msg.ShowError {
			log.WarnS(ctx, "Inbox refresh failed", err)
		} else {
			log.DebugS(ctx, "Inbox refresh failed", "err", err)
		}

		return RefreshResponse{
			UnreadCount: s.unreadCount,
			Err:         err,
		}
	}

	// Full replace, never merge: optimistic local edits and stale
	// partial merges must not drift apart.
	s.unreadCount = snap.UnreadCount
	s.today = snap.Today
	s.lastRefresh = s.now()

	log.DebugS(ctx, "Inbox refreshed",
		"unread", snap.UnreadCount,
		"today", len(snap.Today))

	return RefreshResponse{
		Applied:     true,
		UnreadCount: snap.UnreadCount,
	}
}

// handleMarkRead stamps readAt locally first, then persists. The backend's
// unread count replaces the optimistic one on success; on failure the
// optimistic state stands, with no rollback.
func (s *Service) handleMarkRead(ctx context.Context,
	msg MarkReadMsg) MarkReadResponse {

	markAll := len(msg.IDs) == 0
	stamp := s.now()

	marked := 0
	for i := range s.today {
		item := &s.today[i]
		if item.ReadAt != nil {
			continue
		}
		if markAll || slices.Contains(msg.IDs, item.ID) {
			t := stamp
			item.ReadAt = &t
			marked++
		}
	}

	if markAll {
		s.unreadCount = 0
	} else {
		s.unreadCount = max(0, s.unreadCount-marked)
	}

	if !s.authenticated() {
		return MarkReadResponse{UnreadCount: s.unreadCount}
	}

	unread, err := s.cfg.Backend.MarkRead(ctx, msg.IDs)
	if err != nil {
		log.DebugS(ctx, "Mark-read persist failed", "err", err)

		return MarkReadResponse{UnreadCount: s.unreadCount}
	}

	s.unreadCount = unread

	return MarkReadResponse{UnreadCount: unread, Persisted: true}
}

// handlePushReceived refreshes out-of-band for calendar reminder pushes.
// Freshness wins over request economy here.
func (s *Service) handlePushReceived(ctx context.Context,
	msg PushReceivedMsg) PushReceivedResponse {

	if _, ok := push.Classify(msg.Payload).(push.CalendarReminder); !ok {
		return PushReceivedResponse{}
	}

	s.handleRefresh(ctx, RefreshMsg{})

	return PushReceivedResponse{Refreshed: true}
}

func (s *Service) handleSnapshot() SnapshotResponse {
	today := make([]api.Reminder, len(s.today))
	copy(today, s.today)

	return SnapshotResponse{
		UnreadCount:   s.unreadCount,
		Today:         today,
		Authenticated: s.authenticated(),
		LastRefresh:   s.lastRefresh,
	}
}
