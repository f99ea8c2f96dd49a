package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amannsus/Online-Chat-App-sub000/internal/content"
	"github.com/amannsus/Online-Chat-App-sub000/internal/dedup"
	"github.com/amannsus/Online-Chat-App-sub000/internal/models"
)

// Sender is the relay's view of one live connection. Implementations must
// make Send non-blocking: a slow or dead peer must never stall the event
// that is being fanned out.
type Sender interface {
	Send(ev models.ServerEvent)
	Close() error
}

// Notifier delivers an offline-fallback notice for a direct message whose
// target had no connection at send time. Called in its own goroutine; it
// may block on external I/O.
type Notifier interface {
	NotifyOffline(userID string, msg models.Message)
}

// Hub routes events between connections: it owns the presence directory
// and the group membership index, deduplicates retransmitted sends, and
// synthesizes delivery acknowledgments back to the sender.
//
// Both shared maps are guarded by one RWMutex. Everything that happens
// under the lock is pure map manipulation; outbound sends are queued after
// the lock is released.
type Hub struct {
	directory *Directory
	groups    *Index

	window   time.Duration
	notifier Notifier

	now   func() time.Time
	newID func() string

	mu sync.RWMutex
}

type Option func(*Hub)

// WithDedupWindow overrides how long a message identifier is remembered
// per connection.
func WithDedupWindow(window time.Duration) Option {
	return func(h *Hub) { h.window = window }
}

// WithNotifier installs an offline-fallback notifier for unreachable
// direct-message targets.
func WithNotifier(n Notifier) Option {
	return func(h *Hub) { h.notifier = n }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		directory: NewDirectory(),
		groups:    NewIndex(),
		window:    dedup.DefaultWindow,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewSession creates the relay state for a freshly opened connection. The
// context bounds the session's dedup cache; cancel it (or call Disconnect)
// on teardown.
func (h *Hub) NewSession(ctx context.Context, conn Sender) *Session {
	return &Session{
		conn:  conn,
		state: StateUnjoined,
		seen:  dedup.New(ctx, h.window),
	}
}

// HandleEvent processes one inbound client event to completion. A panic
// during processing is contained to the event: it is logged and, where the
// sender expects a response, answered with a typed error event.
func (h *Hub) HandleEvent(s *Session, ev models.ClientEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic processing event", "type", ev.Type, "user_id", s.userID, "panic", r)
			switch ev.Type {
			case models.ClientEventSendMessage:
				s.conn.Send(models.ServerEvent{Type: models.ServerEventMessageError, Error: "internal error"})
			case models.ClientEventSendGroupMessage:
				s.conn.Send(models.ServerEvent{Type: models.ServerEventGroupMessageError, Error: "internal error"})
			}
		}
	}()

	if s.state == StateDisconnected {
		return
	}

	if ev.Type == models.ClientEventJoin {
		h.join(s, ev.UserID)
		return
	}

	// Before join the sender identity is unknown, so there is nothing
	// meaningful to route or to answer.
	if s.state != StateJoined {
		slog.Debug("ignoring event before join", "type", ev.Type)
		return
	}

	switch ev.Type {
	case models.ClientEventJoinGroups:
		h.joinGroups(s, ev.GroupIDs)
	case models.ClientEventSendMessage:
		h.sendDirect(s, ev)
	case models.ClientEventSendGroupMessage:
		h.sendGroup(s, ev)
	case models.ClientEventTyping:
		h.forwardTyping(s, ev.ContactID, models.ServerEventUserTyping)
	case models.ClientEventStopTyping:
		h.forwardTyping(s, ev.ContactID, models.ServerEventUserStopTyping)
	case models.ClientEventGroupTyping:
		h.forwardGroupTyping(s, ev.GroupID, models.ServerEventGroupUserTyping)
	case models.ClientEventGroupStopTyping:
		h.forwardGroupTyping(s, ev.GroupID, models.ServerEventGroupUserStopTyping)
	case models.ClientEventLeaveGroup:
		h.leaveGroup(s, ev.GroupID)
	default:
		slog.Debug("unknown client event", "type", ev.Type)
	}
}

// Disconnect is the terminal transition: presence is unregistered, group
// memberships cascade-removed, and the dedup cache discarded. Safe to call
// more than once.
func (h *Hub) Disconnect(s *Session) {
	if s.state == StateDisconnected {
		return
	}
	joined := s.state == StateJoined
	s.state = StateDisconnected
	s.seen.Discard()

	if !joined {
		return
	}

	h.mu.Lock()
	owned := h.directory.Unregister(s.userID, s.conn)
	var conns []Sender
	var online []string
	if owned {
		conns = h.directory.Conns()
		online = h.directory.Online()
	}
	departures := h.groups.CascadeRemove(s.userID, s.conn)
	h.mu.Unlock()

	if owned {
		for _, c := range conns {
			c.Send(models.ServerEvent{Type: models.ServerEventUserOffline, UserID: s.userID})
			c.Send(models.ServerEvent{Type: models.ServerEventOnlineUsers, Users: online})
		}
	}

	for _, dep := range departures {
		notice := models.ServerEvent{
			Type:    models.ServerEventUserLeftGroup,
			GroupID: dep.GroupID,
			UserID:  s.userID,
		}
		for _, c := range dep.Remaining {
			c.Send(notice)
		}
	}

	slog.Info("session disconnected", "user_id", s.userID, "groups_left", len(departures))
}

func (h *Hub) join(s *Session, userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	s.userID = userID
	s.state = StateJoined
	prev, replaced := h.directory.Register(userID, s.conn)
	others := h.directory.ConnsExcept(s.conn)
	all := h.directory.Conns()
	online := h.directory.Online()
	h.mu.Unlock()

	if replaced {
		// A re-join without the old connection closing first. Close the
		// displaced handle so it cannot linger with a stale mapping.
		slog.Info("user rejoined, closing previous connection", "user_id", userID)
		_ = prev.Close()
	}

	for _, c := range others {
		c.Send(models.ServerEvent{Type: models.ServerEventUserOnline, UserID: userID})
	}
	list := models.ServerEvent{Type: models.ServerEventOnlineUsers, Users: online}
	for _, c := range all {
		c.Send(list)
	}

	slog.Info("user joined", "user_id", userID, "online", len(online))
}

func (h *Hub) joinGroups(s *Session, groupIDs []string) {
	h.mu.Lock()
	for _, id := range groupIDs {
		if id == "" {
			continue
		}
		h.groups.Join(id, s.userID, s.conn)
	}
	h.mu.Unlock()
}

func (h *Hub) sendDirect(s *Session, ev models.ClientEvent) {
	msg, ok := h.prepare(s, ev.Message, models.ServerEventMessageError,
		ev.ReceiverID != "")
	if !ok {
		return
	}
	msg.ReceiverID = ev.ReceiverID

	h.mu.RLock()
	target, online := h.directory.Lookup(ev.ReceiverID)
	h.mu.RUnlock()

	if online {
		target.Send(models.ServerEvent{Type: models.ServerEventNewMessage, Message: msg})
	} else if h.notifier != nil {
		go h.notifier.NotifyOffline(ev.ReceiverID, *msg)
	}

	// Reachability at send time, not a durability guarantee.
	delivered := online
	s.conn.Send(models.ServerEvent{
		Type:      models.ServerEventMessageDelivered,
		Message:   msg,
		Delivered: &delivered,
	})
}

func (h *Hub) sendGroup(s *Session, ev models.ClientEvent) {
	msg, ok := h.prepare(s, ev.Message, models.ServerEventGroupMessageError,
		ev.GroupID != "")
	if !ok {
		return
	}
	msg.GroupID = ev.GroupID

	h.mu.RLock()
	var targets []Sender
	if ch, ok := h.groups.Lookup(ev.GroupID); ok {
		targets = ch.sendersExcept(s.userID)
	}
	h.mu.RUnlock()

	out := models.ServerEvent{
		Type:    models.ServerEventNewGroupMessage,
		GroupID: ev.GroupID,
		Message: msg,
	}
	for _, c := range targets {
		c.Send(out)
	}

	// Group fan-out is multicast: the ack carries no reachability flag and
	// is sent unconditionally.
	s.conn.Send(models.ServerEvent{
		Type:    models.ServerEventGroupMessageDelivered,
		GroupID: ev.GroupID,
		Message: msg,
	})
}

// prepare validates, deduplicates and stamps an inbound message. It
// returns ok=false when the event must be dropped; malformed payloads are
// answered with errType, duplicates absorbed silently.
func (h *Hub) prepare(s *Session, msg *models.Message, errType models.ServerEventType, hasTarget bool) (*models.Message, bool) {
	if msg == nil || !hasTarget || (msg.Text == "" && msg.ImageURL == "") {
		slog.Warn("malformed send event", "user_id", s.userID, "error_type", errType)
		s.conn.Send(models.ServerEvent{
			Type:  errType,
			Error: "message requires a target and a text or image payload",
		})
		return nil, false
	}

	m := *msg
	if m.ID == "" {
		m.ID = h.newID()
	} else if !s.seen.ShouldProcess(m.ID) {
		slog.Debug("duplicate message absorbed", "user_id", s.userID, "message_id", m.ID)
		return nil, false
	}

	m.SenderID = s.userID
	m.Timestamp = h.now().Unix()
	m.Text = content.Sanitize(m.Text)
	m.HTML = ""
	if m.Text != "" {
		if html, err := content.RenderMarkdown(m.Text); err == nil {
			m.HTML = html
		} else {
			slog.Warn("failed to render message", "message_id", m.ID, "error", err)
		}
	}
	return &m, true
}

func (h *Hub) forwardTyping(s *Session, contactID string, typ models.ServerEventType) {
	if contactID == "" {
		return
	}
	h.mu.RLock()
	target, online := h.directory.Lookup(contactID)
	h.mu.RUnlock()
	if !online {
		return
	}
	target.Send(models.ServerEvent{Type: typ, UserID: s.userID})
}

func (h *Hub) forwardGroupTyping(s *Session, groupID string, typ models.ServerEventType) {
	if groupID == "" {
		return
	}
	h.mu.RLock()
	var targets []Sender
	if ch, ok := h.groups.Lookup(groupID); ok {
		targets = ch.sendersExcept(s.userID)
	}
	h.mu.RUnlock()
	ev := models.ServerEvent{Type: typ, GroupID: groupID, UserID: s.userID}
	for _, c := range targets {
		c.Send(ev)
	}
}

func (h *Hub) leaveGroup(s *Session, groupID string) {
	if groupID == "" {
		return
	}

	h.mu.Lock()
	remaining, _ := h.groups.Leave(groupID, s.userID, s.conn)
	h.mu.Unlock()

	notice := models.ServerEvent{
		Type:    models.ServerEventUserLeftGroup,
		GroupID: groupID,
		UserID:  s.userID,
	}
	for _, c := range remaining {
		c.Send(notice)
	}
	// Mirrored notice to the leaver itself, so its own view updates even
	// when it was the last member.
	s.conn.Send(notice)
}

// Online returns the user identities currently registered in the presence
// directory.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.directory.Online()
}

// DisconnectUser force-closes the connection of userID, if any. Used by
// the admin layer when credentials are revoked.
func (h *Hub) DisconnectUser(userID string) {
	h.mu.RLock()
	conn, ok := h.directory.Lookup(userID)
	h.mu.RUnlock()
	if ok {
		_ = conn.Close()
	}
}
