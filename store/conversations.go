package store

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

// FetchConversations loads the conversation list. It is skipped while another fetch is in
// flight, and when the cache is non-empty and was filled within the debounce window.
func (s *Store) FetchConversations(ctx context.Context) error {
	return s.fetchConversations(ctx, false)
}

// RefreshConversations loads the conversation list ignoring the debounce window
func (s *Store) RefreshConversations(ctx context.Context) error {
	return s.fetchConversations(ctx, true)
}

func (s *Store) fetchConversations(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.loadingConversations {
		s.mu.Unlock()
		log.CtxDebug(ctx, "fetch conversations skipped: in flight")
		return nil
	}
	if !force && len(s.conversations) > 0 && !s.lastFetch.IsZero() &&
		s.opts.Now().Sub(s.lastFetch) < s.opts.FetchDebounce {
		s.mu.Unlock()
		log.CtxDebug(ctx, "fetch conversations skipped: fresh")
		return nil
	}
	s.loadingConversations = true
	s.err = nil
	s.mu.Unlock()
	s.changed()

	list, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	s.loadingConversations = false
	if err == nil {
		convs := make([]*sdk.Conversation, 0, len(list))
		for _, c := range list {
			if c == nil || c.Id == "" {
				continue
			}
			s.rebaseReadMarkLocked(c)
			convs = append(convs, c.Clone())
		}
		s.conversations = convs
		s.lastFetch = s.opts.Now()
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(ctx, "fetch conversations", err)
	}
	s.changed()
	return nil
}

// CreateConversation returns the conversation of a contact request, creating it if needed.
// Concurrent calls for one request share a single network call.
func (s *Store) CreateConversation(ctx context.Context, requestId string) (*sdk.Conversation, error) {
	s.mu.RLock()
	for _, c := range s.conversations {
		if requestId != "" && c.RequestId == requestId {
			existing := c.Clone()
			s.mu.RUnlock()
			return existing, nil
		}
	}
	s.mu.RUnlock()

	v, err, _ := s.sf.Do(requestId, func() (any, error) {
		return s.api.CreateConversation(ctx, requestId)
	})
	if err != nil {
		return nil, s.fail(ctx, "create conversation", err)
	}
	conv, _ := v.(*sdk.Conversation)
	if conv == nil || conv.Id == "" {
		return nil, s.fail(ctx, "create conversation", ErrEmptyConversation)
	}

	s.mu.Lock()
	if s.findLocked(conv.Id) == nil {
		s.conversations = append([]*sdk.Conversation{conv.Clone()}, s.conversations...)
	}
	s.err = nil
	s.mu.Unlock()

	s.changed()
	return conv.Clone(), nil
}

// CloseConversation moves a conversation to the closed state on the server and locally
func (s *Store) CloseConversation(ctx context.Context, conversationId string) error {
	conv, err := s.api.CloseConversation(ctx, conversationId)
	if err != nil {
		return s.fail(ctx, "close conversation", err)
	}

	s.mu.Lock()
	if c := s.findLocked(conversationId); c != nil {
		if conv != nil && conv.Id == conversationId {
			*c = *conv.Clone()
		}
		c.Status = constant.ConversationStatusClosed
	}
	s.err = nil
	s.mu.Unlock()

	s.changed()
	return nil
}

// readMark is what a conversation's counters go back to if its read mark fails: the
// counts when it was cleared (or the latest server counts) plus local arrivals since
type readMark struct {
	base    sdk.UnreadCount
	arrived sdk.UnreadCount
	refs    int
}

func (m *readMark) restore() sdk.UnreadCount {
	return sdk.UnreadCount{
		Student: m.base.Student + m.arrived.Student,
		Tutor:   m.base.Tutor + m.arrived.Tutor,
	}
}

// rebaseReadMarkLocked makes server counts the value a failing read mark restores
func (s *Store) rebaseReadMarkLocked(conv *sdk.Conversation) {
	if mark := s.readMarks[conv.Id]; mark != nil {
		mark.base = conv.UnreadCount
		mark.arrived = sdk.UnreadCount{}
	}
}

// MarkMessagesAsRead zeroes both unread counters at once and persists the read mark.
// If the persist call fails, the counters go back to their value before the clear plus
// anything that arrived in the meantime; a server update seen in between replaces the
// earlier value.
func (s *Store) MarkMessagesAsRead(ctx context.Context, conversationId string) error {
	s.mu.Lock()
	var mark *readMark
	if c := s.findLocked(conversationId); c != nil {
		mark = s.readMarks[conversationId]
		if mark == nil {
			mark = &readMark{base: c.UnreadCount}
			s.readMarks[conversationId] = mark
		}
		mark.refs++
		c.UnreadCount = sdk.UnreadCount{}
	}
	s.mu.Unlock()
	s.changed()

	err := s.api.MarkRead(ctx, conversationId)

	s.mu.Lock()
	if mark != nil && s.readMarks[conversationId] == mark {
		mark.refs--
		switch {
		case err == nil:
			delete(s.readMarks, conversationId)
		case mark.refs == 0:
			delete(s.readMarks, conversationId)
			if c := s.findLocked(conversationId); c != nil {
				c.UnreadCount = mark.restore()
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return s.fail(ctx, "mark read", err)
	}
	s.clearErr()
	return nil
}

// HandleConversationUpdate replaces the cached entry with the same id, or prepends it
func (s *Store) HandleConversationUpdate(conv *sdk.Conversation) {
	if conv == nil || conv.Id == "" {
		log.Warn("conversation update without id ignored")
		return
	}

	s.mu.Lock()
	s.rebaseReadMarkLocked(conv)
	if c := s.findLocked(conv.Id); c != nil {
		*c = *conv.Clone()
	} else {
		s.conversations = append([]*sdk.Conversation{conv.Clone()}, s.conversations...)
	}
	s.mu.Unlock()
	s.changed()
}

// HandleConversationClosed marks a cached conversation closed
func (s *Store) HandleConversationClosed(evt *sdk.ConversationClosed) {
	if evt == nil {
		return
	}

	s.mu.Lock()
	c := s.findLocked(evt.ConversationId)
	if c != nil {
		c.Status = constant.ConversationStatusClosed
	}
	s.mu.Unlock()

	if c != nil {
		s.changed()
	}
}
