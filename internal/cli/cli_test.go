package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/transport"
)

func init() {
	color.NoColor = true
}

func testConversation() *sdk.Conversation {
	return &sdk.Conversation{
		Id:          "c1",
		Subject:     "Algebra",
		Student:     sdk.Participant{Id: "s1", Name: "Sam"},
		Tutor:       sdk.Participant{Id: "t1", Name: "Toni"},
		Status:      constant.ConversationStatusActive,
		UnreadCount: sdk.UnreadCount{Tutor: 2},
		LastMessage: &sdk.LastMessage{Content: "Hello", SenderId: "s1"},
	}
}

func TestFormatConversation(t *testing.T) {
	c := testConversation()

	asTutor := formatConversation(c, "t1")
	assert.Contains(t, asTutor, "c1")
	assert.Contains(t, asTutor, "Sam")
	assert.Contains(t, asTutor, "active")
	assert.Contains(t, asTutor, "(2 unread)")
	assert.Contains(t, asTutor, "them: Hello")

	asStudent := formatConversation(c, "s1")
	assert.Contains(t, asStudent, "Toni")
	assert.NotContains(t, asStudent, "unread")
	assert.Contains(t, asStudent, "you: Hello")

	c.Status = constant.ConversationStatusClosed
	assert.Contains(t, formatConversation(c, "s1"), "closed")
}

func TestFormatMessage(t *testing.T) {
	m := &sdk.Message{Id: "m1", SenderId: "s1", MsgType: constant.MsgTypeText, Content: "Hi", Status: constant.MsgStatusRead}
	assert.Contains(t, formatMessage(m, "s1"), "you: Hi [read]")
	assert.Contains(t, formatMessage(m, "t1"), "s1: Hi")
	assert.NotContains(t, formatMessage(m, "t1"), "[read]")

	f := &sdk.Message{
		Id:       "m2",
		SenderId: "t1",
		MsgType:  constant.MsgTypeImage,
		File:     &sdk.File{Name: "graph.png", Url: "https://cdn.test/graph.png"},
		ReplyTo:  &sdk.ReplyTo{MessageId: "m1", Content: "Hi"},
	}
	out := formatMessage(f, "s1")
	assert.Contains(t, out, "(re: Hi)")
	assert.Contains(t, out, "[image] graph.png")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}

func TestResolveToken(t *testing.T) {
	ctx := context.Background()
	e := &env{cfg: config.Default(), tokens: jwt.NewMemoryTokenStore()}
	e.cfg.Auth.Token = ""

	_, err := e.resolveToken(ctx)
	assert.Error(t, err)

	require.NoError(t, e.tokens.Save(ctx, "stored"))
	token, err := e.resolveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stored", token)

	e.cfg.Auth.Token = "configured"
	token, _ = e.resolveToken(ctx)
	assert.Equal(t, "configured", token)

	e.token = "flag"
	token, _ = e.resolveToken(ctx)
	assert.Equal(t, "flag", token)
}

func TestPrinter_DedupAndTyping(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, "s1")

	m := &sdk.Message{Id: "m1", ConversationId: "c1", SenderId: "t1", MsgType: constant.MsgTypeText, Content: "Hello"}
	p.message(m)
	p.message(m)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Hello")))

	buf.Reset()
	p.typingEvent(&sdk.TypingEvent{ConversationId: "c1", UserId: "t1", IsTyping: true})
	p.typingEvent(&sdk.TypingEvent{ConversationId: "c1", UserId: "t1", IsTyping: true})
	p.typingEvent(&sdk.TypingEvent{ConversationId: "c1", UserId: "s1", IsTyping: true})
	assert.Equal(t, "t1 is typing...\n", buf.String())
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"login", "logout", "conversations", "open", "history", "send", "read", "close", "watch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("token"))
}

func TestUnsubscribe_RemovesPrinterListeners(t *testing.T) {
	rt := transport.New("ws://127.0.0.1:1/ws")
	p := newPrinter(&bytes.Buffer{}, "s1")
	keep := rt.OnNewMessage(func(*sdk.Message) {})
	defer keep.Unsubscribe()

	unsubscribe(
		rt.OnNewMessage(p.message),
		rt.OnMessageReceived(p.message),
		rt.OnUserTyping(p.typingEvent),
	)
	assert.Equal(t, 1, rt.ListenerCount(constant.EventNewMessage))
	assert.Zero(t, rt.ListenerCount(constant.EventMessageReceived))
	assert.Zero(t, rt.ListenerCount(constant.EventUserTyping))
}
