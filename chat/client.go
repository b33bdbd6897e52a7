// Package chat ties the transport and the store together for one signed-in user.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/store"
	"github.com/mbeoliero/tutorchat/transport"
)

// DefaultTypingIdleTimeout is how long after the last keystroke typing_stop is sent
const DefaultTypingIdleTimeout = time.Second

// Realtime is the part of the transport the chat surface drives
type Realtime interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	JoinUserRoom(userId string)
	JoinConversation(conversationId string)
	LeaveConversation(conversationId string)
	StartTyping(conversationId, userId string)
	StopTyping(conversationId, userId string)
	OnNewMessage(fn func(*sdk.Message)) *transport.Subscription
	OnMessageReceived(fn func(*sdk.Message)) *transport.Subscription
	OnMessageStatusUpdate(fn func(*sdk.StatusUpdate)) *transport.Subscription
	OnConversationUpdate(fn func(*sdk.Conversation)) *transport.Subscription
	OnUserTyping(fn func(*sdk.TypingEvent)) *transport.Subscription
	OnConversationClosed(fn func(*sdk.ConversationClosed)) *transport.Subscription
}

// Options configures a Client
type Options struct {
	TypingIdleTimeout time.Duration
	// Tokens is consulted when Start is called without a token
	Tokens jwt.TokenStore
}

// Client is the app-level chat surface: one per signed-in user
type Client struct {
	rt    Realtime
	store *store.Store
	opts  Options

	// startMu serializes Start and Stop so listeners are bound once
	startMu sync.Mutex

	mu       sync.Mutex
	started  bool
	self     string
	role     string
	subs     []*transport.Subscription
	sessions map[*Session]struct{}
	joined   map[string]int // open sessions per conversation room
}

// NewClient creates a Client over an existing transport and store
func NewClient(rt Realtime, st *store.Store, opts Options) *Client {
	if opts.TypingIdleTimeout <= 0 {
		opts.TypingIdleTimeout = DefaultTypingIdleTimeout
	}
	return &Client{
		rt:       rt,
		store:    st,
		opts:     opts,
		sessions: make(map[*Session]struct{}),
		joined:   make(map[string]int),
	}
}

// Start connects, joins the user's room, binds global events to the store and loads the
// conversation list. Calling it again while started does nothing.
func (c *Client) Start(ctx context.Context, token string) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if token == "" && c.opts.Tokens != nil {
		stored, err := c.opts.Tokens.Load(ctx)
		if err != nil {
			return err
		}
		token = stored
	}
	claims, err := jwt.ParseUnverified(token)
	if err != nil {
		return err
	}

	if err := c.rt.Connect(ctx, token); err != nil {
		return err
	}
	c.rt.JoinUserRoom(claims.UserId)

	subs := []*transport.Subscription{
		c.rt.OnNewMessage(c.store.HandleNewMessage),
		c.rt.OnMessageReceived(c.store.HandleNewMessage),
		c.rt.OnConversationUpdate(c.store.HandleConversationUpdate),
		c.rt.OnConversationClosed(c.store.HandleConversationClosed),
	}

	c.mu.Lock()
	c.started = true
	c.self = claims.UserId
	c.role = claims.Role
	c.subs = subs
	c.mu.Unlock()

	log.CtxInfo(ctx, "chat started for %s (%s)", claims.UserId, claims.Role)
	return c.store.FetchConversations(ctx)
}

// Stop closes open sessions, unbinds global events and disconnects
func (c *Client) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	sessions := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		sessions = append(sessions, s)
	}
	subs := c.subs
	c.subs = nil
	c.started = false
	c.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	c.rt.Disconnect()
}

// Self returns the signed-in user's id
func (c *Client) Self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Role returns the signed-in user's role
func (c *Client) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Store returns the underlying message store
func (c *Client) Store() *store.Store {
	return c.store
}

// UnreadTotal is the sidebar badge: the user's unread messages across conversations
func (c *Client) UnreadTotal() int {
	return c.store.UnreadFor(c.Self())
}

// StartConversation opens (or returns) the conversation of a contact request
func (c *Client) StartConversation(ctx context.Context, requestId string) (*sdk.Conversation, error) {
	return c.store.CreateConversation(ctx, requestId)
}

// Open mounts a conversation view: it selects the conversation, joins its room, listens for
// typing and status events and loads the newest page. Unread messages are marked read.
func (c *Client) Open(ctx context.Context, conversationId string) (*Session, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	self := c.self
	c.joined[conversationId]++
	c.mu.Unlock()

	c.store.SelectConversation(conversationId)
	c.rt.JoinConversation(conversationId)

	s := &Session{
		client: c,
		convId: conversationId,
		self:   self,
		idle:   c.opts.TypingIdleTimeout,
	}
	s.subs = []*transport.Subscription{
		c.rt.OnUserTyping(c.store.HandleTyping),
		c.rt.OnMessageStatusUpdate(c.store.HandleStatusUpdate),
	}

	c.mu.Lock()
	c.sessions[s] = struct{}{}
	c.mu.Unlock()

	if err := c.store.FetchMessages(ctx, conversationId, 1); err != nil {
		s.Close()
		return nil, err
	}

	if conv, ok := c.store.Conversation(conversationId); ok && conv.UnreadCount.Get(conv.RoleOf(self)) > 0 {
		if err := c.store.MarkMessagesAsRead(ctx, conversationId); err != nil {
			log.CtxWarn(ctx, "mark read on open %s failed: %v", conversationId, err)
		}
	}
	return s, nil
}

// release drops s and reports whether it was the last open session on its conversation
func (c *Client) release(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, s)

	c.joined[s.convId]--
	if c.joined[s.convId] > 0 {
		return false
	}
	delete(c.joined, s.convId)
	return true
}
