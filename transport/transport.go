// Package transport owns the single realtime connection of a client session.
// It routes inbound events to typed listeners and carries no business state.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/pkg/metrics"
	"github.com/mbeoliero/tutorchat/sdk"
)

// Transport is the realtime connection. Construct one per signed-in session and share it.
type Transport struct {
	url               string
	dialer            *websocket.Dialer
	tokens            jwt.TokenStore
	connectTimeout    time.Duration
	reconnectDelay    time.Duration
	reconnectDelayMax time.Duration
	connOpts          ConnOptions

	listeners *listenerMap

	mu      sync.Mutex
	cancel  context.CancelFunc // non-nil while the connection loop runs
	conn    *Conn              // live connection, nil while (re)connecting
	ready   chan struct{}      // closed while conn is live
	rooms   []Frame            // join frames replayed after every reconnect
	roomIdx map[string]int
}

// Option configures a Transport
type Option func(*Transport)

// WithTokenStore sets where tokens are loaded from and saved to
func WithTokenStore(store jwt.TokenStore) Option {
	return func(t *Transport) {
		t.tokens = store
	}
}

// WithDialer sets a custom websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

// WithConnectTimeout bounds a single dial attempt
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.connectTimeout = d
		}
	}
}

// WithReconnectDelay bounds the delay between reconnect attempts
func WithReconnectDelay(minDelay, maxDelay time.Duration) Option {
	return func(t *Transport) {
		if minDelay > 0 {
			t.reconnectDelay = minDelay
		}
		if maxDelay > 0 {
			t.reconnectDelayMax = maxDelay
		}
	}
}

// WithConnOptions tunes keepalive and buffering of each connection
func WithConnOptions(opts ConnOptions) Option {
	return func(t *Transport) {
		t.connOpts = opts
	}
}

// New creates a Transport for the websocket endpoint at rawURL (ws:// or wss://)
func New(rawURL string, opts ...Option) *Transport {
	t := &Transport{
		url:               rawURL,
		tokens:            jwt.NewMemoryTokenStore(),
		connectTimeout:    DefaultConnectTimeout,
		reconnectDelay:    DefaultReconnectDelay,
		reconnectDelayMax: DefaultReconnectDelayMax,
		listeners:         newListenerMap(),
		ready:             make(chan struct{}),
		roomIdx:           make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.reconnectDelayMax < t.reconnectDelay {
		t.reconnectDelayMax = t.reconnectDelay
	}
	if t.dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = t.connectTimeout
		t.dialer = &d
	}
	return t
}

// Connect starts the connection loop. It is idempotent: while a loop runs, it returns nil.
// An empty token falls back to the token store. Dial failures are retried in the
// background forever and are only logged.
func (t *Transport) Connect(ctx context.Context, token string) error {
	if token == "" {
		stored, err := t.tokens.Load(ctx)
		if err != nil {
			log.CtxWarn(ctx, "load stored token failed: %v", err)
		}
		token = stored
	} else if err := t.tokens.Save(ctx, token); err != nil {
		log.CtxWarn(ctx, "save token failed: %v", err)
	}
	if token == "" {
		return ErrTokenMissing
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(loopCtx, token)
	return nil
}

// Disconnect stops the loop, closes the socket, drops every listener and forgets joined rooms.
// Safe to call when not connected.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	cancel, c := t.cancel, t.conn
	t.cancel = nil
	t.conn = nil
	t.rooms = nil
	t.roomIdx = make(map[string]int)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		t.ready = make(chan struct{})
		metrics.SetSocketConnected(false)
	}
	t.mu.Unlock()

	t.listeners.clear()
	if c != nil {
		c.Abort()
	}
	if cancel != nil {
		log.Info("socket disconnected")
	}
}

// Connected reports whether a live connection exists
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// WaitConnected blocks until a live connection exists or ctx is done
func (t *Transport) WaitConnected(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.conn != nil {
			t.mu.Unlock()
			return nil
		}
		ready := t.ready
		t.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// run dials, reads until the connection drops, and reconnects with backoff until cancelled
func (t *Transport) run(ctx context.Context, token string) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.reconnectDelay
	eb.MaxInterval = t.reconnectDelayMax
	eb.MaxElapsedTime = 0
	eb.Reset()
	bo := backoff.WithContext(eb, ctx)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			metrics.SocketReconnects.Inc()
			log.CtxInfo(ctx, "socket reconnect attempt %d", attempt)
		}

		c, err := t.dial(ctx, token)
		if err == nil {
			if !t.attach(ctx, c) {
				return
			}
			bo.Reset()
			err = t.readLoop(ctx, c)
			t.detach(c)
		}
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		log.CtxWarn(ctx, "socket connection failed, retrying in %s: %v", wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Transport) dial(ctx context.Context, token string) (*Conn, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}
	q := u.Query()
	q.Set(constant.QueryToken, token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	ws, resp, err := t.dialer.DialContext(dialCtx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed (http %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return NewConn(ws, t.connOpts), nil
}

// attach publishes a new live connection and replays room joins.
// It refuses the connection when Disconnect won the race.
func (t *Transport) attach(ctx context.Context, c *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx.Err() != nil {
		c.Abort()
		return false
	}

	for _, f := range t.rooms {
		b, err := Encode(f)
		if err != nil {
			continue
		}
		if err := c.WriteMessage(b); err != nil {
			log.CtxWarn(ctx, "rejoin %s failed: %v", f.Event, err)
		}
	}

	t.conn = c
	close(t.ready)
	metrics.SetSocketConnected(true)
	log.CtxInfo(ctx, "socket connected, rejoined %d rooms", len(t.rooms))
	return true
}

func (t *Transport) detach(c *Conn) {
	c.Abort()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != c {
		return
	}
	t.conn = nil
	t.ready = make(chan struct{})
	metrics.SetSocketConnected(false)
}

func (t *Transport) readLoop(ctx context.Context, c *Conn) error {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrConnClosed
			}
			return err
		}
		t.dispatch(ctx, data)
	}
}

// dispatch decodes one frame and fans it out to the listeners of its event, in registration order
func (t *Transport) dispatch(ctx context.Context, data []byte) {
	var f Frame
	if err := Decode(data, &f); err != nil || f.Event == "" {
		metrics.RecordDroppedEvent("", dropMalformedJSON)
		log.CtxWarn(ctx, "drop malformed frame: %v", err)
		return
	}

	v, err := DecodeEvent(f.Event, f.Data)
	if err != nil {
		reason := dropDecode
		var de *decodeError
		if errors.As(err, &de) {
			reason = de.reason
		}
		if reason == dropUnknownEvent {
			log.CtxDebug(ctx, "ignore unknown event %s", f.Event)
			return
		}
		metrics.RecordDroppedEvent(f.Event, reason)
		log.CtxWarn(ctx, "drop %s event: %v", f.Event, err)
		return
	}

	metrics.RecordSocketEvent(f.Event)
	for _, sub := range t.listeners.get(f.Event) {
		t.deliver(ctx, sub, v)
	}
}

func (t *Transport) deliver(ctx context.Context, sub *Subscription, v any) {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(ctx, "%v: listener for %s: %v", ErrPanic, sub.event, r)
		}
	}()
	sub.fn(v)
}

// Emit sends an event to the server. While disconnected it silently does nothing.
func (t *Transport) Emit(event string, data any) {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()

	if c == nil {
		log.Debug("emit %s skipped: not connected", event)
		return
	}
	if err := c.WriteFrame(event, data); err != nil {
		log.Debug("emit %s failed: %v", event, err)
	}
}

// remember records a join so it is replayed after reconnects, then sends it
func (t *Transport) remember(room, event string, data any) {
	f, err := NewFrame(event, data)
	if err != nil {
		log.Warn("build %s frame failed: %v", event, err)
		return
	}

	t.mu.Lock()
	if _, exists := t.roomIdx[room]; !exists {
		t.roomIdx[room] = len(t.rooms)
		t.rooms = append(t.rooms, *f)
	}
	t.mu.Unlock()

	t.Emit(event, data)
}

func (t *Transport) forget(room string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, exists := t.roomIdx[room]
	if !exists {
		return
	}
	t.rooms = append(t.rooms[:idx], t.rooms[idx+1:]...)
	delete(t.roomIdx, room)
	for r, i := range t.roomIdx {
		if i > idx {
			t.roomIdx[r] = i - 1
		}
	}
}

// JoinUserRoom subscribes to the per-user notification room
func (t *Transport) JoinUserRoom(userId string) {
	t.remember(constant.UserRoom(userId), constant.EventJoinChat, &JoinChatPayload{UserId: userId})
}

// JoinConversation subscribes to a conversation room
func (t *Transport) JoinConversation(conversationId string) {
	t.remember(constant.ConversationRoom(conversationId), constant.EventJoinConversation,
		&ConversationPayload{ConversationId: conversationId})
}

// LeaveConversation unsubscribes from a conversation room
func (t *Transport) LeaveConversation(conversationId string) {
	t.forget(constant.ConversationRoom(conversationId))
	t.Emit(constant.EventLeaveConversation, &ConversationPayload{ConversationId: conversationId})
}

// Rooms returns the rooms that will be re-joined after a reconnect
func (t *Transport) Rooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.rooms))
	for room, i := range t.roomIdx {
		out[i] = room
	}
	return out
}

// StartTyping tells the conversation room that userId is typing
func (t *Transport) StartTyping(conversationId, userId string) {
	t.Emit(constant.EventTypingStart, &TypingPayload{ConversationId: conversationId, UserId: userId})
}

// StopTyping tells the conversation room that userId stopped typing
func (t *Transport) StopTyping(conversationId, userId string) {
	t.Emit(constant.EventTypingStop, &TypingPayload{ConversationId: conversationId, UserId: userId})
}

func (t *Transport) on(event string, fn func(any)) *Subscription {
	return t.listeners.add(event, fn)
}

// OnNewMessage listens for messages broadcast to a conversation room
func (t *Transport) OnNewMessage(fn func(*sdk.Message)) *Subscription {
	return t.on(constant.EventNewMessage, func(v any) { fn(v.(*sdk.Message)) })
}

// OnMessageReceived listens for messages addressed to the user room
func (t *Transport) OnMessageReceived(fn func(*sdk.Message)) *Subscription {
	return t.on(constant.EventMessageReceived, func(v any) { fn(v.(*sdk.Message)) })
}

// OnMessageStatusUpdate listens for delivery status changes
func (t *Transport) OnMessageStatusUpdate(fn func(*sdk.StatusUpdate)) *Subscription {
	return t.on(constant.EventMessageStatusUpdate, func(v any) { fn(v.(*sdk.StatusUpdate)) })
}

// OnConversationUpdate listens for conversation snapshots
func (t *Transport) OnConversationUpdate(fn func(*sdk.Conversation)) *Subscription {
	return t.on(constant.EventConversationUpdate, func(v any) { fn(v.(*sdk.Conversation)) })
}

// OnUserTyping listens for typing signals of other participants
func (t *Transport) OnUserTyping(fn func(*sdk.TypingEvent)) *Subscription {
	return t.on(constant.EventUserTyping, func(v any) { fn(v.(*sdk.TypingEvent)) })
}

// OnConversationClosed listens for conversations reaching the closed state
func (t *Transport) OnConversationClosed(fn func(*sdk.ConversationClosed)) *Subscription {
	return t.on(constant.EventConversationClosed, func(v any) { fn(v.(*sdk.ConversationClosed)) })
}

// Off removes a listener; equivalent to sub.Unsubscribe()
func (t *Transport) Off(sub *Subscription) {
	sub.Unsubscribe()
}

// ListenerCount returns the number of listeners for event, or for all events when event is ""
func (t *Transport) ListenerCount(event string) int {
	if event == "" {
		return t.listeners.total()
	}
	return t.listeners.count(event)
}
