// Package store is the client-side cache of conversations and the open conversation's history.
// It merges REST responses, local actions and realtime events into one view.
package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mbeoliero/tutorchat/pkg/idgen"
	"github.com/mbeoliero/tutorchat/sdk"
)

// Defaults
const (
	DefaultFetchDebounce = 2 * time.Second
	DefaultPageSize      = 20
	DefaultSeenCapacity  = 4096
)

// API is the subset of the REST client the store persists through
type API interface {
	ListConversations(ctx context.Context) ([]*sdk.Conversation, error)
	CreateConversation(ctx context.Context, requestId string) (*sdk.Conversation, error)
	CloseConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error)
	MarkRead(ctx context.Context, conversationId string) error
	GetMessages(ctx context.Context, conversationId string, page, limit int) (*sdk.MessagePage, error)
	SendMessage(ctx context.Context, conversationId string, req *sdk.SendMessageRequest) (*sdk.Message, error)
}

// Options configures a Store
type Options struct {
	FetchDebounce time.Duration
	PageSize      int
	SeenCapacity  int
	Notifier      Notifier
	IDGenerator   idgen.IDGenerator
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FetchDebounce <= 0 {
		o.FetchDebounce = DefaultFetchDebounce
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.SeenCapacity <= 0 {
		o.SeenCapacity = DefaultSeenCapacity
	}
	if o.Notifier == nil {
		o.Notifier = LogNotifier{}
	}
	if o.IDGenerator == nil {
		o.IDGenerator = idgen.GetDefaultGenerator()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is safe for concurrent use. Network calls never run under the lock.
type Store struct {
	api  API
	opts Options
	sf   singleflight.Group

	mu            sync.RWMutex
	conversations []*sdk.Conversation
	currentId     string
	messages      []*sdk.Message
	present       map[string]struct{} // ids in messages
	pagination    sdk.Pagination
	typing        map[string]bool
	err           error
	seen          *seenSet
	readMarks     map[string]*readMark // in-flight read marks by conversation

	loadingConversations bool
	loadingMessages      bool
	lastFetch            time.Time
	generation           uint64 // bumped whenever the open conversation's view is reset

	listenerMu sync.Mutex
	listenerId uint64
	listeners  map[uint64]func()
}

// New creates a Store persisting through api
func New(api API, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		api:       api,
		opts:      opts,
		present:   make(map[string]struct{}),
		typing:    make(map[string]bool),
		seen:      newSeenSet(opts.SeenCapacity),
		readMarks: make(map[string]*readMark),
		listeners: make(map[uint64]func()),
	}
}

// OnChange registers fn to run after every state change and returns its remover
func (s *Store) OnChange(fn func()) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.listenerId++
	id := s.listenerId
	s.listeners[id] = fn
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) changed() {
	s.listenerMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// fail records err in the error slot, tells the user and hands it back for chaining
func (s *Store) fail(ctx context.Context, action string, err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.opts.Notifier.Notify(ctx, action, err)
	s.changed()
	return err
}

func (s *Store) clearErr() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// findLocked returns the cached conversation with id, or nil
func (s *Store) findLocked(id string) *sdk.Conversation {
	for _, c := range s.conversations {
		if c.Id == id {
			return c
		}
	}
	return nil
}

// resetViewLocked opens conversationId with an empty history
func (s *Store) resetViewLocked(conversationId string) {
	s.currentId = conversationId
	s.messages = nil
	s.present = make(map[string]struct{})
	s.pagination = sdk.Pagination{}
	s.typing = make(map[string]bool)
	s.loadingMessages = false
	s.generation++
}

// SelectConversation opens a conversation, clearing the previous one's history and typing flags
func (s *Store) SelectConversation(conversationId string) {
	s.mu.Lock()
	s.resetViewLocked(conversationId)
	s.mu.Unlock()
	s.changed()
}

// ===== Selectors, all returning copies =====

// Conversations returns the cached conversation list
func (s *Store) Conversations() []*sdk.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*sdk.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Conversation returns one cached conversation
func (s *Store) Conversation(id string) (*sdk.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findLocked(id)
	if c == nil {
		return nil, false
	}
	return c.Clone(), true
}

// CurrentConversationId returns the open conversation, or ""
func (s *Store) CurrentConversationId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentId
}

// Messages returns the open conversation's history in chronological order
func (s *Store) Messages() []*sdk.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*sdk.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Pagination returns the cursor of the open conversation's history
func (s *Store) Pagination() sdk.Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Typing returns the typing flags of the open conversation
func (s *Store) Typing() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(s.typing))
	for k, v := range s.typing {
		out[k] = v
	}
	return out
}

// IsOtherTyping reports whether anyone but selfId is typing in the open conversation
func (s *Store) IsOtherTyping(selfId string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userId, typing := range s.typing {
		if typing && userId != selfId {
			return true
		}
	}
	return false
}

// Err returns the last failure, or nil
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether conversations or messages are being fetched
func (s *Store) Loading() (conversations, messages bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingConversations, s.loadingMessages
}

// UnreadFor sums selfId's unread counters across all conversations
func (s *Store) UnreadFor(selfId string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount.Get(c.RoleOf(selfId))
	}
	return total
}
