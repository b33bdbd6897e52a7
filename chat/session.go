package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/transport"
)

// Session is one open conversation view with its composer
type Session struct {
	client *Client
	convId string
	self   string
	idle   time.Duration
	subs   []*transport.Subscription

	mu       sync.Mutex
	closed   bool
	draft    string
	replyTo  *sdk.ReplyTo
	typing   bool
	timer    *time.Timer
	timerSeq uint64
}

// ConversationId returns the conversation this session shows
func (s *Session) ConversationId() string {
	return s.convId
}

// Conversation returns the cached conversation
func (s *Session) Conversation() (*sdk.Conversation, bool) {
	return s.client.store.Conversation(s.convId)
}

// Messages returns the history of this conversation, or nil once another one was opened
func (s *Session) Messages() []*sdk.Message {
	if s.client.store.CurrentConversationId() != s.convId {
		return nil
	}
	return s.client.store.Messages()
}

// IsOtherTyping reports whether the other participant is typing
func (s *Session) IsOtherTyping() bool {
	return s.client.store.IsOtherTyping(s.self)
}

// Draft returns the composer text
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft updates the composer. The first keystroke sends typing_start; typing_stop follows
// once no keystroke arrived for the idle timeout, or right away when the draft is cleared.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.draft = text
	if strings.TrimSpace(text) == "" {
		s.stopTypingLocked()
		return
	}

	if !s.typing {
		s.typing = true
		s.client.rt.StartTyping(s.convId, s.self)
	}
	s.armTimerLocked()
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerSeq++
	seq := s.timerSeq
	s.timer = time.AfterFunc(s.idle, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.timerSeq {
			return
		}
		s.stopTypingLocked()
	})
}

func (s *Session) stopTypingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
	if s.typing {
		s.typing = false
		s.client.rt.StopTyping(s.convId, s.self)
	}
}

// ReplyTo makes the next send reference msg
func (s *Session) ReplyTo(msg *sdk.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == nil {
		s.replyTo = nil
		return
	}
	s.replyTo = &sdk.ReplyTo{MessageId: msg.Id, Content: msg.Preview()}
}

func (s *Session) guard() error {
	if s.closed {
		return ErrSessionClosed
	}
	if conv, ok := s.client.store.Conversation(s.convId); ok && conv.IsClosed() {
		return ErrConversationClosed
	}
	return nil
}

// Send persists the draft as a text message. Empty drafts and closed conversations are
// rejected here, before the store is involved.
func (s *Session) Send(ctx context.Context) (*sdk.Message, error) {
	s.mu.Lock()
	if err := s.guard(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(s.draft) == "" {
		s.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	req := &sdk.SendMessageRequest{
		MsgType: constant.MsgTypeText,
		Content: s.draft,
		ReplyTo: s.replyTo,
	}
	s.mu.Unlock()

	msg, err := s.client.store.SendMessage(ctx, s.convId, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.draft == req.Content {
		s.draft = ""
	}
	s.replyTo = nil
	s.stopTypingLocked()
	s.mu.Unlock()
	return msg, nil
}

// SendFile persists an image or file message from already uploaded metadata
func (s *Session) SendFile(ctx context.Context, kind string, file *sdk.File) (*sdk.Message, error) {
	if kind != constant.MsgTypeImage && kind != constant.MsgTypeFile {
		return nil, ErrInvalidFileKind
	}

	s.mu.Lock()
	if err := s.guard(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := &sdk.SendMessageRequest{
		MsgType: kind,
		File:    file,
		ReplyTo: s.replyTo,
	}
	s.mu.Unlock()

	msg, err := s.client.store.SendMessage(ctx, s.convId, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.replyTo = nil
	s.mu.Unlock()
	return msg, nil
}

// LoadOlder fetches the next page of history
func (s *Session) LoadOlder(ctx context.Context) error {
	return s.client.store.LoadOlderMessages(ctx)
}

// MarkRead marks the conversation read
func (s *Session) MarkRead(ctx context.Context) error {
	return s.client.store.MarkMessagesAsRead(ctx, s.convId)
}

// Close unmounts the view: pending typing is stopped, this session's listeners are removed
// and the room is left once no other session shows it. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTypingLocked()
	s.mu.Unlock()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.client.release(s) {
		s.client.rt.LeaveConversation(s.convId)
	}
}
