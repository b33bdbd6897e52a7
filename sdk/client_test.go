package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func newTestServer(t *testing.T, handle func(r recordedRequest) (int, string, any)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		seen = append(seen, rec)

		code, msg, data := handle(rec)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestLogin_StoresToken(t *testing.T) {
	srv, seen := newTestServer(t, func(r recordedRequest) (int, string, any) {
		return 0, "success", map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": "stu_1", "name": "Ada", "role": "student"},
		}
	})

	c := MustNewClient(srv.URL)
	resp, err := c.LoginWithUserId(context.Background(), "stu_1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "stu_1", resp.User.Id)
	assert.Equal(t, "tok-1", c.GetToken())

	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPost, (*seen)[0].Method)
	assert.Equal(t, "/auth/login", (*seen)[0].Path)
	assert.Equal(t, "stu_1", (*seen)[0].Body["user_id"])
}

func TestRequest_BearerAndPaths(t *testing.T) {
	srv, seen := newTestServer(t, func(r recordedRequest) (int, string, any) {
		switch r.Path {
		case "/conversations/c1/messages":
			if r.Method == http.MethodGet {
				return 0, "success", map[string]any{
					"messages":   []any{map[string]any{"id": "m1", "conversation_id": "c1", "sender_id": "stu_1", "msg_type": "text", "content": "hi"}},
					"pagination": map[string]any{"page": 2, "limit": 20, "total": 21, "has_more": false},
				}
			}
			return 0, "success", map[string]any{"id": "m2", "conversation_id": "c1", "sender_id": "stu_1", "msg_type": "text", "content": "yo"}
		case "/conversations/c1/read":
			return 0, "success", nil
		}
		return 1005, "not found", nil
	})

	c := MustNewClient(srv.URL, WithToken("tok"))
	ctx := context.Background()

	page, err := c.GetMessages(ctx, "c1", 2, 20)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].Id)
	assert.False(t, page.Pagination.HasMore)

	msg, err := c.SendTextMessage(ctx, "c1", "cm-1", "yo")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.Id)

	require.NoError(t, c.MarkRead(ctx, "c1"))

	require.Len(t, *seen, 3)
	for _, r := range *seen {
		assert.Equal(t, "Bearer tok", r.Auth)
	}
	assert.Equal(t, "limit=20&page=2", (*seen)[0].Query)
	assert.Equal(t, "cm-1", (*seen)[1].Body["client_msg_id"])
	assert.Equal(t, http.MethodPut, (*seen)[2].Method)
}

func TestRequest_APIError(t *testing.T) {
	srv, _ := newTestServer(t, func(r recordedRequest) (int, string, any) {
		return CodeConvClosed, "conversation closed", nil
	})

	c := MustNewClient(srv.URL)
	_, err := c.SendTextMessage(context.Background(), "c1", "", "hello")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeConvClosed, apiErr.Code)
	assert.True(t, errors.Is(err, ErrConversationClosed))
}

func TestSendMessageRequest_Validate(t *testing.T) {
	ok := &SendMessageRequest{MsgType: "text", Content: "hello"}
	assert.NoError(t, ok.Validate())

	blank := &SendMessageRequest{MsgType: "text", Content: "   "}
	assert.True(t, errors.Is(blank.Validate(), ErrMessageInvalid))

	noFile := &SendMessageRequest{MsgType: "image"}
	assert.Error(t, noFile.Validate())

	withFile := &SendMessageRequest{MsgType: "file", File: &File{Name: "notes.pdf", Size: 10, Url: "https://cdn/notes.pdf"}}
	assert.NoError(t, withFile.Validate())

	badKind := &SendMessageRequest{MsgType: "video", Content: "x"}
	assert.Error(t, badKind.Validate())
}

func TestMessage_AdvanceStatus(t *testing.T) {
	m := &Message{Status: "sent"}
	assert.True(t, m.AdvanceStatus("read"))
	assert.False(t, m.AdvanceStatus("delivered"))
	assert.Equal(t, "read", m.Status)
	assert.False(t, m.AdvanceStatus("bogus"))
}

func TestConversation_RoleOf(t *testing.T) {
	c := &Conversation{Student: Participant{Id: "s"}, Tutor: Participant{Id: "t"}}
	assert.Equal(t, "student", c.RoleOf("s"))
	assert.Equal(t, "tutor", c.RoleOf("t"))
	assert.Equal(t, "", c.RoleOf("x"))
	assert.Equal(t, "", c.RoleOf(""))
	assert.Equal(t, "t", c.PeerOf("s"))
}
