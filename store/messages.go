package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/metrics"
	"github.com/mbeoliero/tutorchat/sdk"
)

// FetchMessages loads one page of history.
// Page 1 opens conversationId with a fresh view. Page n > 1 must directly follow the loaded
// page of the open conversation; older messages are prepended and ids already present skipped.
// A response that arrives after the view moved on is discarded.
func (s *Store) FetchMessages(ctx context.Context, conversationId string, page int) error {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	if page == 1 {
		s.resetViewLocked(conversationId)
	} else {
		switch {
		case s.currentId != conversationId:
			s.mu.Unlock()
			return s.fail(ctx, "fetch messages", fmt.Errorf("%w: conversation %s is not open", ErrPageOutOfOrder, conversationId))
		case page != s.pagination.Page+1:
			s.mu.Unlock()
			return s.fail(ctx, "fetch messages", fmt.Errorf("%w: want page %d, got %d", ErrPageOutOfOrder, s.pagination.Page+1, page))
		case !s.pagination.HasMore:
			s.mu.Unlock()
			return nil
		case s.loadingMessages:
			s.mu.Unlock()
			log.CtxDebug(ctx, "fetch messages page %d skipped: in flight", page)
			return nil
		}
	}
	s.loadingMessages = true
	s.err = nil
	gen := s.generation
	s.mu.Unlock()
	s.changed()

	res, err := s.api.GetMessages(ctx, conversationId, page, s.opts.PageSize)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.CtxDebug(ctx, "discard stale page %d of %s", page, conversationId)
		return nil
	}
	s.loadingMessages = false
	if err != nil {
		s.mu.Unlock()
		return s.fail(ctx, "fetch messages", err)
	}

	// realtime arrivals during a page 1 fetch are kept after the fetched window
	var arrived []*sdk.Message
	if page == 1 {
		arrived = s.messages
		s.messages = nil
		s.present = make(map[string]struct{})
	}

	fetched := make([]*sdk.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		if m == nil || m.Id == "" {
			metrics.StoreRejectedMessages.Inc()
			continue
		}
		if _, dup := s.present[m.Id]; dup {
			continue
		}
		s.present[m.Id] = struct{}{}
		s.seen.add(m.Id)
		fetched = append(fetched, m.Clone())
	}

	s.messages = append(fetched, s.messages...)
	for _, m := range arrived {
		if _, dup := s.present[m.Id]; dup {
			continue
		}
		s.present[m.Id] = struct{}{}
		s.messages = append(s.messages, m)
	}
	s.pagination = res.Pagination
	s.pagination.Page = page
	s.mu.Unlock()

	s.changed()
	return nil
}

// LoadOlderMessages fetches the page after the loaded one for the open conversation
func (s *Store) LoadOlderMessages(ctx context.Context) error {
	s.mu.RLock()
	convId, next := s.currentId, s.pagination.Page+1
	s.mu.RUnlock()

	if convId == "" {
		return ErrNoConversation
	}
	return s.FetchMessages(ctx, convId, next)
}

// SendMessage persists a message. Nothing is inserted locally: the message shows up when
// its realtime echo arrives.
func (s *Store) SendMessage(ctx context.Context, conversationId string, payload *sdk.SendMessageRequest) (*sdk.Message, error) {
	if payload == nil {
		return nil, s.fail(ctx, "send message", ErrInvalidMessage)
	}

	s.mu.RLock()
	c := s.findLocked(conversationId)
	closed := c != nil && c.IsClosed()
	s.mu.RUnlock()
	if closed {
		return nil, s.fail(ctx, "send message", ErrConversationClosed)
	}

	req := *payload
	if req.ClientMsgId == "" {
		id, err := s.opts.IDGenerator.NextID()
		if err != nil {
			return nil, s.fail(ctx, "send message", err)
		}
		req.ClientMsgId = id
	}
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, "send message", err)
	}

	msg, err := s.api.SendMessage(ctx, conversationId, &req)
	if err != nil {
		return nil, s.fail(ctx, "send message", err)
	}

	s.clearErr()
	log.CtxDebug(ctx, "message %s persisted in %s", msg.Id, conversationId)
	return msg, nil
}

// HandleNewMessage applies a realtime message. An id seen before in this session is ignored
// entirely. Otherwise the message is appended if its conversation is open, and the
// conversation's last message and the receiver's unread counter are updated either way.
func (s *Store) HandleNewMessage(msg *sdk.Message) {
	if msg == nil || strings.TrimSpace(msg.Id) == "" {
		metrics.StoreRejectedMessages.Inc()
		log.Warn("realtime message without id rejected")
		return
	}

	s.mu.Lock()
	_, inList := s.present[msg.Id]
	if inList || s.seen.has(msg.Id) {
		s.mu.Unlock()
		metrics.StoreDuplicateMessages.Inc()
		log.Debug("duplicate message %s ignored", msg.Id)
		return
	}
	s.seen.add(msg.Id)

	if msg.ConversationId == s.currentId {
		s.messages = append(s.messages, msg.Clone())
		s.present[msg.Id] = struct{}{}
	}

	if c := s.findLocked(msg.ConversationId); c != nil {
		ts := msg.CreatedAt
		if ts == 0 {
			ts = s.opts.Now().UnixMilli()
		}
		c.LastMessage = &sdk.LastMessage{
			Content:   msg.Preview(),
			SenderId:  msg.SenderId,
			Timestamp: ts,
		}
		c.UpdatedAt = ts

		receiver := msg.ReceiverId
		if receiver == "" {
			receiver = c.PeerOf(msg.SenderId)
		}
		mark := s.readMarks[c.Id]
		switch c.RoleOf(receiver) {
		case constant.RoleStudent:
			c.UnreadCount.Student++
			if mark != nil {
				mark.arrived.Student++
			}
		case constant.RoleTutor:
			c.UnreadCount.Tutor++
			if mark != nil {
				mark.arrived.Tutor++
			}
		}
	}
	s.mu.Unlock()

	s.changed()
}

// HandleStatusUpdate advances the status of the listed messages; statuses never regress
func (s *Store) HandleStatusUpdate(upd *sdk.StatusUpdate) {
	if upd == nil || len(upd.MessageIds) == 0 {
		return
	}

	ids := make(map[string]struct{}, len(upd.MessageIds))
	for _, id := range upd.MessageIds {
		ids[id] = struct{}{}
	}

	changed := false
	s.mu.Lock()
	for _, m := range s.messages {
		if _, ok := ids[m.Id]; ok && m.AdvanceStatus(upd.Status) {
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.changed()
	}
}

// HandleTyping records a typing flag for the open conversation; other conversations are ignored
func (s *Store) HandleTyping(evt *sdk.TypingEvent) {
	if evt == nil || evt.UserId == "" {
		return
	}

	s.mu.Lock()
	if evt.ConversationId != s.currentId {
		s.mu.Unlock()
		return
	}
	if evt.IsTyping {
		s.typing[evt.UserId] = true
	} else {
		delete(s.typing, evt.UserId)
	}
	s.mu.Unlock()

	s.changed()
}
