package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

// mockAPI implements API for testing.
type mockAPI struct {
	mu            sync.Mutex
	conversations []*sdk.Conversation
	history       map[string][]*sdk.Message // chronological

	listCalls   atomic.Int32
	createCalls atomic.Int32
	sendCalls   atomic.Int32
	readCalls   atomic.Int32

	markReadErr error
	sendErr     error

	// hooks run inside the call, before it returns
	onMarkRead    func()
	onGetMessages func(conversationId string, page int)
	onCreate      func()
}

func newMockAPI() *mockAPI {
	return &mockAPI{history: make(map[string][]*sdk.Message)}
}

func (m *mockAPI) ListConversations(ctx context.Context) ([]*sdk.Conversation, error) {
	m.listCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*sdk.Conversation, len(m.conversations))
	for i, c := range m.conversations {
		out[i] = c.Clone()
	}
	return out, nil
}

func (m *mockAPI) CreateConversation(ctx context.Context, requestId string) (*sdk.Conversation, error) {
	m.createCalls.Add(1)
	if m.onCreate != nil {
		m.onCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.RequestId == requestId {
			return c.Clone(), nil
		}
	}
	c := newConversation("conv-"+requestId, "stu_1", "tut_1")
	c.RequestId = requestId
	m.conversations = append(m.conversations, c)
	return c.Clone(), nil
}

func (m *mockAPI) CloseConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.Id == conversationId {
			c.Status = constant.ConversationStatusClosed
			return c.Clone(), nil
		}
	}
	return nil, sdk.ErrConvNotFound
}

func (m *mockAPI) MarkRead(ctx context.Context, conversationId string) error {
	m.readCalls.Add(1)
	if m.onMarkRead != nil {
		m.onMarkRead()
	}
	return m.markReadErr
}

func (m *mockAPI) GetMessages(ctx context.Context, conversationId string, page, limit int) (*sdk.MessagePage, error) {
	if m.onGetMessages != nil {
		m.onGetMessages(conversationId, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.history[conversationId]
	end := len(all) - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]*sdk.Message, 0, end-start)
	for _, msg := range all[start:end] {
		out = append(out, msg.Clone())
	}
	return &sdk.MessagePage{
		Messages:   out,
		Pagination: sdk.Pagination{Page: page, Limit: limit, Total: len(all), HasMore: start > 0},
	}, nil
}

func (m *mockAPI) SendMessage(ctx context.Context, conversationId string, req *sdk.SendMessageRequest) (*sdk.Message, error) {
	m.sendCalls.Add(1)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &sdk.Message{
		Id:             "srv-" + req.ClientMsgId,
		ConversationId: conversationId,
		ClientMsgId:    req.ClientMsgId,
		SenderId:       "stu_1",
		MsgType:        req.MsgType,
		Content:        req.Content,
		Status:         constant.MsgStatusSent,
	}, nil
}

type fixedIds struct{ n atomic.Int32 }

func (f *fixedIds) NextID() (string, error) {
	return fmt.Sprintf("cm-%d", f.n.Add(1)), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newConversation(id, student, tutor string) *sdk.Conversation {
	return &sdk.Conversation{
		Id:      id,
		Subject: "Algebra",
		Student: sdk.Participant{Id: student, Name: "Student"},
		Tutor:   sdk.Participant{Id: tutor, Name: "Tutor"},
		Status:  constant.ConversationStatusActive,
	}
}

func textMessage(id, convId, sender, receiver, content string) *sdk.Message {
	return &sdk.Message{
		Id:             id,
		ConversationId: convId,
		SenderId:       sender,
		ReceiverId:     receiver,
		MsgType:        constant.MsgTypeText,
		Content:        content,
		Status:         constant.MsgStatusSent,
	}
}

func newTestStore(t *testing.T, api *mockAPI) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := New(api, Options{
		PageSize:    20,
		IDGenerator: &fixedIds{},
		Now:         clock.Now,
		Notifier:    NotifierFunc(func(context.Context, string, error) {}),
	})
	return s, clock
}

func seeded(t *testing.T, convs ...*sdk.Conversation) (*Store, *mockAPI, *fakeClock) {
	t.Helper()
	api := newMockAPI()
	api.conversations = convs
	s, clock := newTestStore(t, api)
	require.NoError(t, s.FetchConversations(context.Background()))
	return s, api, clock
}

func TestHandleNewMessage_Dedup(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")

	s.HandleNewMessage(textMessage("m1", "c1", "stu_1", "tut_1", "one"))
	s.HandleNewMessage(textMessage("m2", "c1", "tut_1", "stu_1", "two"))
	before := s.Messages()

	// same id through the room broadcast and the user room
	s.HandleNewMessage(textMessage("m1", "c1", "stu_1", "tut_1", "one"))
	s.HandleNewMessage(textMessage("m1", "c1", "stu_1", "tut_1", "one"))

	after := s.Messages()
	require.Len(t, after, 2)
	assert.Equal(t, before, after)
	assert.Equal(t, "m1", after[0].Id)
	assert.Equal(t, "m2", after[1].Id)

	conv, _ := s.Conversation("c1")
	assert.Equal(t, 1, conv.UnreadCount.Tutor)
	assert.Equal(t, 1, conv.UnreadCount.Student)
}

func TestHandleNewMessage_DuplicateOfOtherConversationCountedOnce(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"), newConversation("c2", "stu_2", "tut_1"))
	s.SelectConversation("c1")

	msg := textMessage("m9", "c2", "stu_2", "tut_1", "hi")
	s.HandleNewMessage(msg)
	s.HandleNewMessage(msg)

	assert.Empty(t, s.Messages())
	conv, _ := s.Conversation("c2")
	assert.Equal(t, 1, conv.UnreadCount.Tutor)
	assert.Equal(t, "hi", conv.LastMessage.Content)
}

func TestHandleNewMessage_RejectsMissingId(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")

	s.HandleNewMessage(nil)
	s.HandleNewMessage(textMessage("", "c1", "stu_1", "tut_1", "ghost"))
	s.HandleNewMessage(textMessage("  ", "c1", "stu_1", "tut_1", "ghost"))

	assert.Empty(t, s.Messages())
	conv, _ := s.Conversation("c1")
	assert.Nil(t, conv.LastMessage)
	assert.Equal(t, 0, conv.UnreadCount.Tutor)
}

func TestUnreadAccounting(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))

	const n = 7
	for i := 0; i < n; i++ {
		// receiver left empty: the non-sender participant is the receiver
		s.HandleNewMessage(textMessage(fmt.Sprintf("m%d", i), "c1", "stu_1", "", "msg"))
	}

	conv, _ := s.Conversation("c1")
	assert.Equal(t, n, conv.UnreadCount.Tutor)
	assert.Equal(t, 0, conv.UnreadCount.Student)
	assert.Equal(t, n, s.UnreadFor("tut_1"))
	assert.Equal(t, 0, s.UnreadFor("stu_1"))

	require.NoError(t, s.MarkMessagesAsRead(context.Background(), "c1"))
	conv, _ = s.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount.Tutor)
	assert.Equal(t, int32(1), api.readCalls.Load())
}

func TestMarkMessagesAsRead_RollbackOnFailure(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	for i := 0; i < 3; i++ {
		s.HandleNewMessage(textMessage(fmt.Sprintf("m%d", i), "c1", "stu_1", "tut_1", "msg"))
	}

	var notified []string
	s.opts.Notifier = NotifierFunc(func(_ context.Context, action string, _ error) {
		notified = append(notified, action)
	})

	api.markReadErr = errors.New("boom")
	api.onMarkRead = func() {
		// optimistic zero is visible while the call is in flight
		conv, _ := s.Conversation("c1")
		assert.Equal(t, 0, conv.UnreadCount.Tutor)
		// a message racing in while the call is in flight
		s.HandleNewMessage(textMessage("late", "c1", "stu_1", "tut_1", "late"))
	}

	err := s.MarkMessagesAsRead(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, err, s.Err())
	assert.Equal(t, []string{"mark read"}, notified)

	conv, _ := s.Conversation("c1")
	assert.Equal(t, 4, conv.UnreadCount.Tutor)
}

func TestMarkMessagesAsRead_RollbackUsesServerUpdate(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	for i := 0; i < 3; i++ {
		s.HandleNewMessage(textMessage(fmt.Sprintf("m%d", i), "c1", "stu_1", "tut_1", "msg"))
	}

	api.markReadErr = errors.New("boom")
	api.onMarkRead = func() {
		s.HandleNewMessage(textMessage("late", "c1", "stu_1", "tut_1", "late"))
		// the server already counted the late message
		update := newConversation("c1", "stu_1", "tut_1")
		update.UnreadCount = sdk.UnreadCount{Tutor: 4}
		s.HandleConversationUpdate(update)
	}

	require.Error(t, s.MarkMessagesAsRead(context.Background(), "c1"))
	conv, _ := s.Conversation("c1")
	assert.Equal(t, 4, conv.UnreadCount.Tutor)

	// arrivals after the server update are still added back
	api.onMarkRead = func() {
		update := newConversation("c1", "stu_1", "tut_1")
		update.UnreadCount = sdk.UnreadCount{Tutor: 4}
		s.HandleConversationUpdate(update)
		s.HandleNewMessage(textMessage("later", "c1", "stu_1", "tut_1", "later"))
	}
	require.Error(t, s.MarkMessagesAsRead(context.Background(), "c1"))
	conv, _ = s.Conversation("c1")
	assert.Equal(t, 5, conv.UnreadCount.Tutor)
}

func TestMarkMessagesAsRead_SuccessKeepsLaterArrivals(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.HandleNewMessage(textMessage("m0", "c1", "stu_1", "tut_1", "msg"))

	api.onMarkRead = func() {
		s.HandleNewMessage(textMessage("late", "c1", "stu_1", "tut_1", "late"))
	}
	require.NoError(t, s.MarkMessagesAsRead(context.Background(), "c1"))
	conv, _ := s.Conversation("c1")
	assert.Equal(t, 1, conv.UnreadCount.Tutor)
	assert.Empty(t, s.readMarks)
}

func TestCreateConversation_Idempotent(t *testing.T) {
	api := newMockAPI()
	s, _ := newTestStore(t, api)

	release := make(chan struct{})
	api.onCreate = func() { <-release }

	var wg sync.WaitGroup
	results := make([]*sdk.Conversation, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.CreateConversation(context.Background(), "req-1")
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, results[0].Id, results[1].Id)
	assert.Equal(t, int32(1), api.createCalls.Load())

	again, err := s.CreateConversation(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, results[0].Id, again.Id)

	count := 0
	for _, c := range s.Conversations() {
		if c.Id == results[0].Id {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

type emptyCreateAPI struct {
	*mockAPI
}

func (emptyCreateAPI) CreateConversation(context.Context, string) (*sdk.Conversation, error) {
	return nil, nil
}

func TestCreateConversation_EmptyResponse(t *testing.T) {
	s := New(emptyCreateAPI{newMockAPI()}, Options{Notifier: NotifierFunc(func(context.Context, string, error) {})})

	conv, err := s.CreateConversation(context.Background(), "req_1")
	assert.ErrorIs(t, err, ErrEmptyConversation)
	assert.Nil(t, conv)
	assert.Empty(t, s.Conversations())
}

func TestCreateConversation_NotDuplicatedWhenListed(t *testing.T) {
	existing := newConversation("conv-req-2", "stu_1", "tut_1")
	s, api, _ := seeded(t, existing)

	// the listed entry has no request id, so the server is asked and returns the same id
	c, err := s.CreateConversation(context.Background(), "req-2")
	require.NoError(t, err)
	assert.Equal(t, "conv-req-2", c.Id)
	assert.Equal(t, int32(1), api.createCalls.Load())
	assert.Len(t, s.Conversations(), 1)
}

func TestFetchMessages_PaginationMonotonic(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	for i := 0; i < 50; i++ {
		api.history["c1"] = append(api.history["c1"], textMessage(fmt.Sprintf("m%02d", i), "c1", "stu_1", "tut_1", "x"))
	}
	ctx := context.Background()

	require.NoError(t, s.FetchMessages(ctx, "c1", 1))
	assert.Len(t, s.Messages(), 20)
	assert.Equal(t, "c1", s.CurrentConversationId())

	err := s.FetchMessages(ctx, "c1", 3)
	assert.ErrorIs(t, err, ErrPageOutOfOrder)

	require.NoError(t, s.FetchMessages(ctx, "c1", 2))
	require.NoError(t, s.LoadOlderMessages(ctx))

	msgs := s.Messages()
	require.Len(t, msgs, 50)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%02d", i), m.Id)
	}
	assert.False(t, s.Pagination().HasMore)
	assert.Equal(t, 3, s.Pagination().Page)

	// nothing older: no-op
	require.NoError(t, s.LoadOlderMessages(ctx))
	assert.Len(t, s.Messages(), 50)
}

func TestFetchMessages_OlderPageSkipsPresentIds(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	for i := 0; i < 25; i++ {
		api.history["c1"] = append(api.history["c1"], textMessage(fmt.Sprintf("m%02d", i), "c1", "stu_1", "tut_1", "x"))
	}
	ctx := context.Background()
	require.NoError(t, s.FetchMessages(ctx, "c1", 1))

	// a new message shifts the server's windows by one
	late := textMessage("m25", "c1", "tut_1", "stu_1", "late")
	api.history["c1"] = append(api.history["c1"], late)
	s.HandleNewMessage(late)

	require.NoError(t, s.LoadOlderMessages(ctx))
	msgs := s.Messages()
	ids := make(map[string]int)
	for _, m := range msgs {
		ids[m.Id]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "id %s duplicated", id)
	}
	assert.Equal(t, "m00", msgs[0].Id)
	assert.Equal(t, "m25", msgs[len(msgs)-1].Id)
}

func TestFetchMessages_StaleResponseDiscarded(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"), newConversation("c2", "stu_1", "tut_2"))
	api.history["c1"] = []*sdk.Message{textMessage("a1", "c1", "stu_1", "tut_1", "x")}

	api.onGetMessages = func(conversationId string, page int) {
		if conversationId == "c1" {
			s.SelectConversation("c2")
		}
	}
	require.NoError(t, s.FetchMessages(context.Background(), "c1", 1))

	assert.Equal(t, "c2", s.CurrentConversationId())
	assert.Empty(t, s.Messages())
}

func TestFetchConversations_Debounced(t *testing.T) {
	s, api, clock := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	ctx := context.Background()

	require.NoError(t, s.FetchConversations(ctx))
	assert.Equal(t, int32(1), api.listCalls.Load())

	clock.Advance(DefaultFetchDebounce + time.Millisecond)
	require.NoError(t, s.FetchConversations(ctx))
	assert.Equal(t, int32(2), api.listCalls.Load())

	require.NoError(t, s.RefreshConversations(ctx))
	assert.Equal(t, int32(3), api.listCalls.Load())
}

func TestFetchConversations_EmptyCacheNotDebounced(t *testing.T) {
	api := newMockAPI()
	s, _ := newTestStore(t, api)
	ctx := context.Background()

	require.NoError(t, s.FetchConversations(ctx))
	require.NoError(t, s.FetchConversations(ctx))
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestSendMessage_NoOptimisticInsert(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")

	msg, err := s.SendMessage(context.Background(), "c1", &sdk.SendMessageRequest{MsgType: constant.MsgTypeText, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "cm-1", msg.ClientMsgId)
	assert.Equal(t, int32(1), api.sendCalls.Load())
	assert.Empty(t, s.Messages())

	s.HandleNewMessage(msg)
	assert.Len(t, s.Messages(), 1)
}

func TestSendMessage_ClosedConversationGuard(t *testing.T) {
	closed := newConversation("c1", "stu_1", "tut_1")
	closed.Status = constant.ConversationStatusClosed
	s, api, _ := seeded(t, closed)

	_, err := s.SendMessage(context.Background(), "c1", &sdk.SendMessageRequest{MsgType: constant.MsgTypeText, Content: "Hello"})
	assert.ErrorIs(t, err, ErrConversationClosed)
	assert.Equal(t, int32(0), api.sendCalls.Load())
}

func TestSendMessage_InvalidPayload(t *testing.T) {
	s, api, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))

	_, err := s.SendMessage(context.Background(), "c1", &sdk.SendMessageRequest{MsgType: constant.MsgTypeImage})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = s.SendMessage(context.Background(), "c1", nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Equal(t, int32(0), api.sendCalls.Load())
}

func TestHandleStatusUpdate_Monotonic(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")
	s.HandleNewMessage(textMessage("m1", "c1", "stu_1", "tut_1", "x"))
	s.HandleNewMessage(textMessage("m2", "c1", "stu_1", "tut_1", "y"))

	s.HandleStatusUpdate(&sdk.StatusUpdate{ConversationId: "c1", MessageIds: []string{"m1", "m2"}, Status: constant.MsgStatusRead})
	s.HandleStatusUpdate(&sdk.StatusUpdate{ConversationId: "c1", MessageIds: []string{"m1"}, Status: constant.MsgStatusDelivered})

	for _, m := range s.Messages() {
		assert.Equal(t, constant.MsgStatusRead, m.Status)
	}
}

func TestHandleTyping_CurrentConversationOnly(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")

	s.HandleTyping(&sdk.TypingEvent{ConversationId: "c2", UserId: "tut_9", IsTyping: true})
	assert.False(t, s.IsOtherTyping("stu_1"))

	s.HandleTyping(&sdk.TypingEvent{ConversationId: "c1", UserId: "stu_1", IsTyping: true})
	assert.False(t, s.IsOtherTyping("stu_1"))

	s.HandleTyping(&sdk.TypingEvent{ConversationId: "c1", UserId: "tut_1", IsTyping: true})
	assert.True(t, s.IsOtherTyping("stu_1"))

	s.HandleTyping(&sdk.TypingEvent{ConversationId: "c1", UserId: "tut_1", IsTyping: false})
	assert.False(t, s.IsOtherTyping("stu_1"))

	s.HandleTyping(&sdk.TypingEvent{ConversationId: "c1", UserId: "tut_1", IsTyping: true})
	s.SelectConversation("c1")
	assert.Empty(t, s.Typing())
}

func TestHandleConversationEvents(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))

	updated := newConversation("c1", "stu_1", "tut_1")
	updated.UnreadCount.Student = 2
	s.HandleConversationUpdate(updated)
	s.HandleConversationUpdate(newConversation("c2", "stu_1", "tut_2"))

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "c2", convs[0].Id)
	assert.Equal(t, 2, convs[1].UnreadCount.Student)

	s.HandleConversationClosed(&sdk.ConversationClosed{ConversationId: "c1", ClosedBy: "tut_1"})
	c1, _ := s.Conversation("c1")
	assert.True(t, c1.IsClosed())
}

func TestCloseConversation(t *testing.T) {
	conv := newConversation("c1", "stu_1", "tut_1")
	s, _, _ := seeded(t, conv)

	require.NoError(t, s.CloseConversation(context.Background(), "c1"))
	c1, _ := s.Conversation("c1")
	assert.True(t, c1.IsClosed())

	err := s.CloseConversation(context.Background(), "nope")
	assert.ErrorIs(t, err, sdk.ErrConvNotFound)
	assert.ErrorIs(t, s.Err(), sdk.ErrConvNotFound)
}

func TestSelectorsReturnCopies(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))
	s.SelectConversation("c1")
	s.HandleNewMessage(textMessage("m1", "c1", "stu_1", "tut_1", "x"))

	s.Messages()[0].Content = "mutated"
	s.Conversations()[0].UnreadCount.Tutor = 99

	assert.Equal(t, "x", s.Messages()[0].Content)
	c1, _ := s.Conversation("c1")
	assert.Equal(t, 1, c1.UnreadCount.Tutor)
}

func TestOnChange(t *testing.T) {
	s, _, _ := seeded(t, newConversation("c1", "stu_1", "tut_1"))

	var calls atomic.Int32
	remove := s.OnChange(func() { calls.Add(1) })
	s.SelectConversation("c1")
	assert.Equal(t, int32(1), calls.Load())

	remove()
	s.SelectConversation("c1")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSeenSet_Bounded(t *testing.T) {
	set := newSeenSet(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		set.add(id)
	}
	assert.Equal(t, 3, set.len())
	assert.False(t, set.has("a"))
	assert.True(t, set.has("d"))
}
