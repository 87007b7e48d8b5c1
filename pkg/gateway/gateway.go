// Package gateway is the realtime entry point. It authenticates a connection,
// subscribes it to the rooms of every channel its user belongs to, routes
// inbound events to the chat services and broadcasts the results.
//
// Handlers never report errors back to the client. Validation misses are
// dropped silently and storage failures are logged, leaving the connection
// open.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/log"
	"github.com/rubiojr/huddle/pkg/notify"
	"github.com/rubiojr/huddle/pkg/presence"
	"github.com/rubiojr/huddle/pkg/realtime"
)

// Gateway is safe for concurrent use by any number of connections.
type Gateway struct {
	dir      *chat.Directory
	messages *chat.MessageService
	verifier auth.Verifier
	presence *presence.Registry
	hub      *realtime.Hub
	notices  notify.Sink
	preview  int
	log      *log.Logger

	// channelID -> *sync.Mutex, serializing persist+broadcast per channel
	sendLocks sync.Map
}

type Option func(*Gateway)

// WithNotices sets the sink receiving message and mention notices.
func WithNotices(sink notify.Sink) Option {
	return func(g *Gateway) {
		if sink != nil {
			g.notices = sink
		}
	}
}

// WithPresence shares a presence registry with other components.
func WithPresence(r *presence.Registry) Option {
	return func(g *Gateway) {
		if r != nil {
			g.presence = r
		}
	}
}

func WithHub(h *realtime.Hub) Option {
	return func(g *Gateway) {
		if h != nil {
			g.hub = h
		}
	}
}

// WithPreviewLength sets the rune length of notice bodies.
func WithPreviewLength(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.preview = n
		}
	}
}

func New(dir *chat.Directory, messages *chat.MessageService, verifier auth.Verifier, opts ...Option) *Gateway {
	g := &Gateway{
		dir:      dir,
		messages: messages,
		verifier: verifier,
		presence: presence.NewRegistry(),
		hub:      realtime.NewHub(),
		notices:  notify.Nop,
		preview:  chat.DefaultPreviewLength,
		log:      log.ForService("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Presence() *presence.Registry { return g.presence }

func (g *Gateway) Hub() *realtime.Hub { return g.hub }

// Connect authenticates conn and brings it to the Active state. On failure
// the connection is closed and the returned session is in the Closed state.
func (g *Gateway) Connect(ctx context.Context, conn realtime.Conn, credential string) (*Session, error) {
	sess := &Session{conn: conn}

	identity, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		sess.setState(StateClosed)
		g.log.Debugf("rejecting connection %s: %v", conn.ID(), err)
		conn.Close(realtime.CloseUnauthorized, "unauthorized")
		return sess, err
	}
	sess.identity = identity
	sess.setState(StateAuthenticated)

	userID := identity.UserID
	if err := g.dir.EnsureStandardMembership(ctx, userID, identity.DepartmentID, identity.Role); err != nil {
		g.abort(sess)
		return sess, fmt.Errorf("ensuring memberships for %s: %w", userID, err)
	}
	channelIDs, err := g.dir.ChannelIDsFor(ctx, userID)
	if err != nil {
		g.abort(sess)
		return sess, fmt.Errorf("listing channels for %s: %w", userID, err)
	}

	g.hub.Add(conn)
	for _, id := range channelIDs {
		g.hub.Join(id, conn)
	}
	sess.setState(StateSubscribed)

	if g.presence.Register(userID, conn) {
		g.broadcastAll(EventUserOnline, PresenceChange{UserID: userID})
	}
	g.send(conn, EventOnlineSnapshot, g.presence.OnlineUserIDs())
	sess.setState(StateActive)

	zl := g.log.Zerolog()
	zl.Info().
		Str("user", userID).
		Str("conn", conn.ID()).
		Int("channels", len(channelIDs)).
		Msg("client connected: " + identity.Email)
	return sess, nil
}

func (g *Gateway) abort(sess *Session) {
	sess.setState(StateClosed)
	sess.conn.Close(websocket.CloseInternalServerErr, "session setup failed")
}

// Disconnect removes the session from every room and from presence. The
// last connection of a user going away broadcasts user:offline. Calling it
// more than once is harmless.
func (g *Gateway) Disconnect(sess *Session) {
	if sess == nil || sess.identity == nil {
		return
	}
	if sess.setState(StateClosed) == StateClosed {
		return
	}

	g.hub.Remove(sess.conn)
	if g.presence.Unregister(sess.identity.UserID, sess.conn) {
		g.broadcastAll(EventUserOffline, PresenceChange{UserID: sess.identity.UserID})
	}
	g.log.Infof("client disconnected: %s (%s)", sess.identity.Email, sess.conn.ID())
}

// Dispatch decodes one inbound frame and runs its handler to completion.
// Undecodable frames, events on inactive sessions, handler errors and
// handler panics are logged and dropped.
func (g *Gateway) Dispatch(ctx context.Context, sess *Session, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorf("panic handling event: %v\n%s", r, debug.Stack())
		}
	}()

	if sess.State() != StateActive {
		return
	}
	ev, err := Decode(raw)
	if err != nil {
		g.log.Debugf("dropping frame from %s: %v", sess.conn.ID(), err)
		return
	}

	switch ev := ev.(type) {
	case SendMessage:
		err = g.handleSend(ctx, sess, ev)
	case MarkRead:
		err = g.handleRead(ctx, sess, ev)
	case TypingStart:
		g.relayTyping(sess, ev.ChannelID, EventTyping)
	case TypingStop:
		g.relayTyping(sess, ev.ChannelID, EventTypingStop)
	case CardStatusUpdate:
		err = g.handleCardStatus(ctx, ev)
	case JoinChannel:
		err = g.handleJoin(ctx, sess, ev)
	}
	if err != nil {
		g.log.Errorf("%s from %s: %v", ev.Event(), sess.identity.UserID, err)
	}
}

func (g *Gateway) handleSend(ctx context.Context, sess *Session, ev SendMessage) error {
	if ev.ChannelID == "" {
		return nil
	}
	if strings.TrimSpace(ev.Content) == "" && len(ev.Attachments) == 0 {
		return nil
	}

	senderID := sess.identity.UserID
	member, err := g.dir.IsMember(ctx, ev.ChannelID, senderID)
	if err != nil {
		return err
	}
	if !member {
		g.log.Debugf("dropping message from non-member %s to %s", senderID, ev.ChannelID)
		return nil
	}

	msg, err := g.persistAndBroadcast(ctx, senderID, ev)
	if err != nil {
		return err
	}
	g.notify(ctx, msg, ev.Mentions)
	return nil
}

func (g *Gateway) persistAndBroadcast(ctx context.Context, senderID string, ev SendMessage) (*chat.MessagePayload, error) {
	lock := g.sendLock(ev.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := g.messages.Create(ctx, ev.ChannelID, senderID, ev.Content, ev.ReplyToID, ev.Mentions, ev.Attachments)
	if errors.Is(err, chat.ErrEmptyMessage) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.broadcast(ev.ChannelID, EventMessageNew, msg, "")
	return msg, nil
}

func (g *Gateway) sendLock(channelID string) *sync.Mutex {
	lock, _ := g.sendLocks.LoadOrStore(channelID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// notify forwards one message notice per other member and one mention notice
// per mentioned member. Mentions of non-members are ignored. Failures are
// logged only.
func (g *Gateway) notify(ctx context.Context, msg *chat.MessagePayload, mentions []string) {
	if msg == nil {
		return
	}
	senderID := msg.Sender.ID
	senderName := msg.Sender.DisplayName("Someone")
	preview := chat.Truncate(msg.Content, g.preview)

	memberIDs, err := g.dir.MemberIDs(ctx, msg.ChannelID)
	if err != nil {
		g.log.Warnf("listing members of %s for notices: %v", msg.ChannelID, err)
	}

	body := preview
	if body == "" {
		body = "Sent an attachment"
	}
	members := make(map[string]struct{}, len(memberIDs))
	var notices []notify.Notice
	for _, id := range memberIDs {
		members[id] = struct{}{}
		if id == senderID {
			continue
		}
		notices = append(notices, notify.Notice{
			Title:    "New message from " + senderName,
			Body:     body,
			Category: notify.CategoryMessage,
			UserID:   id,
		})
	}
	g.deliver(ctx, notices)

	var mentioned []notify.Notice
	for _, id := range mentions {
		if _, ok := members[id]; !ok || id == senderID {
			continue
		}
		mentioned = append(mentioned, notify.Notice{
			Title:    senderName + " mentioned you",
			Body:     preview,
			Category: notify.CategoryMention,
			UserID:   id,
		})
	}
	g.deliver(ctx, mentioned)
}

func (g *Gateway) deliver(ctx context.Context, notices []notify.Notice) {
	if len(notices) == 0 {
		return
	}
	if err := g.notices.CreateMany(ctx, notices); err != nil {
		g.log.Warnf("delivering %d notices: %v", len(notices), err)
	}
}

func (g *Gateway) handleRead(ctx context.Context, sess *Session, ev MarkRead) error {
	if ev.ChannelID == "" {
		return nil
	}
	userID := sess.identity.UserID
	at, err := g.messages.MarkRead(ctx, ev.ChannelID, userID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	g.broadcast(ev.ChannelID, EventReadUpdate, ReadUpdate{
		ChannelID:  ev.ChannelID,
		UserID:     userID,
		LastReadAt: at,
	}, "")
	return nil
}

// relayTyping only relays for rooms the connection is subscribed to.
func (g *Gateway) relayTyping(sess *Session, channelID, event string) {
	if channelID == "" || !g.hub.InRoom(channelID, sess.conn) {
		return
	}
	g.broadcast(channelID, event, Typing{ChannelID: channelID, UserID: sess.identity.UserID}, sess.conn.ID())
}

func (g *Gateway) handleCardStatus(ctx context.Context, ev CardStatusUpdate) error {
	if ev.DemandID == "" || ev.Status == "" {
		return nil
	}
	update, err := g.messages.PatchCardStatus(ctx, ev.DemandID, ev.Status)
	if err != nil || update == nil {
		return err
	}
	g.broadcast(update.ChannelID, EventMessageUpdated, update, "")
	return nil
}

func (g *Gateway) handleJoin(ctx context.Context, sess *Session, ev JoinChannel) error {
	if ev.ChannelID == "" {
		return nil
	}
	member, err := g.dir.IsMember(ctx, ev.ChannelID, sess.identity.UserID)
	if err != nil || !member {
		return err
	}
	g.hub.Join(ev.ChannelID, sess.conn)
	return nil
}

// JoinUserToChannel subscribes every live connection of userID to channelID.
// Users with no live connection are ignored.
func (g *Gateway) JoinUserToChannel(userID, channelID string) {
	for _, conn := range g.presence.ConnectionsOf(userID) {
		g.hub.Join(channelID, conn)
	}
}

func (g *Gateway) broadcast(channelID, event string, data any, exceptConnID string) {
	payload, err := Encode(event, data)
	if err != nil {
		g.log.Errorf("%v", err)
		return
	}
	g.hub.Broadcast(channelID, payload, exceptConnID)
}

func (g *Gateway) broadcastAll(event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		g.log.Errorf("%v", err)
		return
	}
	g.hub.BroadcastAll(payload)
}

func (g *Gateway) send(conn realtime.Conn, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		g.log.Errorf("%v", err)
		return
	}
	if err := conn.Send(payload); err != nil {
		g.log.Debugf("send %s to %s: %v", event, conn.ID(), err)
	}
}

// Serve runs a websocket connection from handshake to close: it connects,
// reads frames until the peer goes away and disconnects.
func (g *Gateway) Serve(ctx context.Context, conn *realtime.WSConn, credential string) {
	conn.Start()
	conn.KeepAlive()

	sess, err := g.Connect(ctx, conn, credential)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingCredential) && !errors.Is(err, auth.ErrInvalidCredential) {
			g.log.Errorf("connect: %v", err)
		}
		return
	}
	defer g.Disconnect(sess)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				g.log.Debugf("read from %s: %v", conn.ID(), err)
			}
			conn.Close(websocket.CloseNormalClosure, "")
			return
		}
		g.Dispatch(ctx, sess, data)
	}
}
