package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/store"
	"github.com/mbeoliero/tutorchat/transport"
)

// fakeRealtime records outbound calls. Listener bookkeeping is delegated to an unconnected
// transport so subscriptions behave like the real thing.
type fakeRealtime struct {
	*transport.Transport

	mu      sync.Mutex
	token   string
	joined  []string
	left    []string
	starts  int
	stops   int
	stopped bool
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{Transport: transport.New("ws://127.0.0.1:1/ws")}
}

func (f *fakeRealtime) Connect(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return nil
}

func (f *fakeRealtime) Disconnect() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	f.Transport.Disconnect()
}

func (f *fakeRealtime) JoinUserRoom(userId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, constant.UserRoom(userId))
}

func (f *fakeRealtime) JoinConversation(conversationId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, constant.ConversationRoom(conversationId))
}

func (f *fakeRealtime) LeaveConversation(conversationId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, constant.ConversationRoom(conversationId))
}

func (f *fakeRealtime) StartTyping(conversationId, userId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeRealtime) StopTyping(conversationId, userId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRealtime) typingCalls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// fakeAPI serves a single conversation between s1 and t1
type fakeAPI struct {
	mu   sync.Mutex
	conv *sdk.Conversation

	sendCalls atomic.Int32
	readCalls atomic.Int32
}

func newFakeAPI(unreadStudent int) *fakeAPI {
	return &fakeAPI{conv: &sdk.Conversation{
		Id:          "c1",
		RequestId:   "r1",
		Student:     sdk.Participant{Id: "s1"},
		Tutor:       sdk.Participant{Id: "t1"},
		Status:      constant.ConversationStatusActive,
		UnreadCount: sdk.UnreadCount{Student: unreadStudent},
	}}
}

func (a *fakeAPI) ListConversations(ctx context.Context) ([]*sdk.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return []*sdk.Conversation{a.conv.Clone()}, nil
}

func (a *fakeAPI) CreateConversation(ctx context.Context, requestId string) (*sdk.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Clone(), nil
}

func (a *fakeAPI) CloseConversation(ctx context.Context, conversationId string) (*sdk.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conv.Status = constant.ConversationStatusClosed
	return a.conv.Clone(), nil
}

func (a *fakeAPI) MarkRead(ctx context.Context, conversationId string) error {
	a.readCalls.Add(1)
	return nil
}

func (a *fakeAPI) GetMessages(ctx context.Context, conversationId string, page, limit int) (*sdk.MessagePage, error) {
	return &sdk.MessagePage{Pagination: sdk.Pagination{Page: page, Limit: limit}}, nil
}

func (a *fakeAPI) SendMessage(ctx context.Context, conversationId string, req *sdk.SendMessageRequest) (*sdk.Message, error) {
	a.sendCalls.Add(1)
	return &sdk.Message{
		Id:             "m-" + req.ClientMsgId,
		ConversationId: conversationId,
		ClientMsgId:    req.ClientMsgId,
		SenderId:       "s1",
		ReceiverId:     "t1",
		MsgType:        req.MsgType,
		Content:        req.Content,
		Status:         constant.MsgStatusSent,
	}, nil
}

func startedClient(t *testing.T, api *fakeAPI, idle time.Duration) (*Client, *fakeRealtime) {
	t.Helper()
	token, err := jwt.GenerateToken("s1", constant.RoleStudent, "test-secret", 1)
	require.NoError(t, err)

	rt := newFakeRealtime()
	c := NewClient(rt, store.New(api, store.Options{}), Options{TypingIdleTimeout: idle})
	require.NoError(t, c.Start(context.Background(), token))
	t.Cleanup(c.Stop)
	return c, rt
}

func TestStart_JoinsUserRoomAndLoadsList(t *testing.T) {
	c, rt := startedClient(t, newFakeAPI(0), time.Second)

	assert.Equal(t, "s1", c.Self())
	assert.Equal(t, constant.RoleStudent, c.Role())
	assert.Contains(t, rt.joined, constant.UserRoom("s1"))
	assert.Len(t, c.Store().Conversations(), 1)
	assert.Equal(t, 1, rt.ListenerCount(constant.EventNewMessage))

	// second start is a no-op
	require.NoError(t, c.Start(context.Background(), ""))
	assert.Equal(t, 1, rt.ListenerCount(constant.EventNewMessage))
}

func TestStart_ConcurrentBindsOnce(t *testing.T) {
	token, err := jwt.GenerateToken("s1", constant.RoleStudent, "test-secret", 1)
	require.NoError(t, err)
	rt := newFakeRealtime()
	c := NewClient(rt, store.New(newFakeAPI(0), store.Options{}), Options{})
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Start(context.Background(), token))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rt.ListenerCount(constant.EventNewMessage))
	assert.Equal(t, 1, rt.ListenerCount(constant.EventConversationUpdate))
	assert.Len(t, rt.joined, 1)
}

func TestStart_UsesStoredToken(t *testing.T) {
	token, err := jwt.GenerateToken("t1", constant.RoleTutor, "test-secret", 1)
	require.NoError(t, err)
	tokens := jwt.NewMemoryTokenStore()
	require.NoError(t, tokens.Save(context.Background(), token))

	c := NewClient(newFakeRealtime(), store.New(newFakeAPI(0), store.Options{}), Options{Tokens: tokens})
	require.NoError(t, c.Start(context.Background(), ""))
	defer c.Stop()
	assert.Equal(t, "t1", c.Self())
}

func TestOpen_RequiresStart(t *testing.T) {
	c := NewClient(newFakeRealtime(), store.New(newFakeAPI(0), store.Options{}), Options{})
	_, err := c.Open(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestOpen_MarksUnreadAsRead(t *testing.T) {
	api := newFakeAPI(3)
	c, rt := startedClient(t, api, time.Second)
	assert.Equal(t, 3, c.UnreadTotal())

	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	assert.Contains(t, rt.joined, constant.ConversationRoom("c1"))
	assert.Equal(t, int32(1), api.readCalls.Load())
	assert.Equal(t, 0, c.UnreadTotal())
}

func TestOpen_NothingUnreadSkipsMarkRead(t *testing.T) {
	api := newFakeAPI(0)
	c, _ := startedClient(t, api, time.Second)

	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()
	assert.Zero(t, api.readCalls.Load())
}

func TestSession_ListenersBalanced(t *testing.T) {
	c, rt := startedClient(t, newFakeAPI(0), time.Second)

	for i := 0; i < 3; i++ {
		s, err := c.Open(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, 1, rt.ListenerCount(constant.EventUserTyping))
		assert.Equal(t, 1, rt.ListenerCount(constant.EventMessageStatusUpdate))

		s.Close()
		s.Close()
		assert.Zero(t, rt.ListenerCount(constant.EventUserTyping))
		assert.Zero(t, rt.ListenerCount(constant.EventMessageStatusUpdate))
	}
	assert.Len(t, rt.left, 3)
}

func TestSession_SharedRoomLeftByLastSession(t *testing.T) {
	c, rt := startedClient(t, newFakeAPI(0), time.Second)
	ctx := context.Background()

	a, err := c.Open(ctx, "c1")
	require.NoError(t, err)
	b, err := c.Open(ctx, "c1")
	require.NoError(t, err)
	other, err := c.Open(ctx, "c2")
	require.NoError(t, err)
	defer other.Close()

	a.Close()
	assert.Empty(t, rt.left)
	assert.Equal(t, 2, rt.ListenerCount(constant.EventUserTyping))

	b.Close()
	assert.Equal(t, []string{constant.ConversationRoom("c1")}, rt.left)
}

func TestSession_TypingDebounce(t *testing.T) {
	c, rt := startedClient(t, newFakeAPI(0), 50*time.Millisecond)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	s.SetDraft("h")
	s.SetDraft("he")
	s.SetDraft("hel")
	starts, stops := rt.typingCalls()
	assert.Equal(t, 1, starts)
	assert.Zero(t, stops)

	require.Eventually(t, func() bool {
		_, stops := rt.typingCalls()
		return stops == 1
	}, time.Second, 5*time.Millisecond)

	s.SetDraft("hell")
	starts, _ = rt.typingCalls()
	assert.Equal(t, 2, starts)

	s.SetDraft("")
	_, stops = rt.typingCalls()
	assert.Equal(t, 2, stops)

	// no stray stop from the cancelled timer
	time.Sleep(100 * time.Millisecond)
	_, stops = rt.typingCalls()
	assert.Equal(t, 2, stops)
}

func TestSession_SendClearsDraftAndStopsTyping(t *testing.T) {
	api := newFakeAPI(0)
	c, rt := startedClient(t, api, time.Second)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	s.ReplyTo(&sdk.Message{Id: "m0", MsgType: constant.MsgTypeText, Content: "earlier"})
	s.SetDraft("Hello")
	msg, err := s.Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Hello", msg.Content)
	assert.Empty(t, s.Draft())
	assert.Equal(t, int32(1), api.sendCalls.Load())
	_, stops := rt.typingCalls()
	assert.Equal(t, 1, stops)
	// not inserted until the echo arrives
	assert.Empty(t, s.Messages())
}

func TestSession_SendEmptyRejected(t *testing.T) {
	api := newFakeAPI(0)
	c, _ := startedClient(t, api, time.Second)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	s.SetDraft("   ")
	_, err = s.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, api.sendCalls.Load())
}

func TestSession_ClosedConversationGuard(t *testing.T) {
	api := newFakeAPI(0)
	c, _ := startedClient(t, api, time.Second)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	c.Store().HandleConversationClosed(&sdk.ConversationClosed{ConversationId: "c1", ClosedBy: "t1"})

	s.SetDraft("anyone?")
	_, err = s.Send(context.Background())
	assert.True(t, errors.Is(err, ErrConversationClosed))

	_, err = s.SendFile(context.Background(), constant.MsgTypeImage, &sdk.File{Name: "a.png", Url: "https://cdn.test/a.png"})
	assert.True(t, errors.Is(err, ErrConversationClosed))
	assert.Zero(t, api.sendCalls.Load())
}

func TestSession_SendFileKind(t *testing.T) {
	api := newFakeAPI(0)
	c, _ := startedClient(t, api, time.Second)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SendFile(context.Background(), constant.MsgTypeText, &sdk.File{Name: "a", Url: "u"})
	assert.ErrorIs(t, err, ErrInvalidFileKind)

	msg, err := s.SendFile(context.Background(), constant.MsgTypeFile, &sdk.File{Name: "notes.pdf", Size: 10, Url: "https://cdn.test/notes.pdf"})
	require.NoError(t, err)
	assert.Equal(t, constant.MsgTypeFile, msg.MsgType)
}

func TestSession_UseAfterClose(t *testing.T) {
	api := newFakeAPI(0)
	c, _ := startedClient(t, api, time.Second)
	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	s.Close()

	s.SetDraft("late")
	_, err = s.Send(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Zero(t, api.sendCalls.Load())
}

func TestStop_ClosesSessions(t *testing.T) {
	api := newFakeAPI(0)
	token, err := jwt.GenerateToken("s1", constant.RoleStudent, "test-secret", 1)
	require.NoError(t, err)
	rt := newFakeRealtime()
	c := NewClient(rt, store.New(api, store.Options{}), Options{})
	require.NoError(t, c.Start(context.Background(), token))

	s, err := c.Open(context.Background(), "c1")
	require.NoError(t, err)
	c.Stop()

	assert.True(t, rt.stopped)
	assert.Zero(t, rt.ListenerCount(constant.EventUserTyping))
	assert.Zero(t, rt.ListenerCount(constant.EventNewMessage))
	_, err = s.Send(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = c.Open(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotStarted)
}
