package transport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

func TestDecodeEvent_NormalizesLooseMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"_id": "m1",
		"conversationId": "c1",
		"sender": {"_id": "stu_1", "name": "Ada"},
		"receiver": "tut_1",
		"messageType": "text",
		"content": "Hello",
		"createdAt": "2025-03-01T10:00:00Z"
	}`)

	v, err := DecodeEvent(constant.EventNewMessage, raw)
	require.NoError(t, err)

	msg, ok := v.(*sdk.Message)
	require.True(t, ok)
	assert.Equal(t, "m1", msg.Id)
	assert.Equal(t, "c1", msg.ConversationId)
	assert.Equal(t, "stu_1", msg.SenderId)
	assert.Equal(t, "tut_1", msg.ReceiverId)
	assert.Equal(t, "text", msg.MsgType)
	assert.Equal(t, int64(1740823200000), msg.CreatedAt)
}

func TestDecodeEvent_ExplicitIdWins(t *testing.T) {
	raw := json.RawMessage(`{"id":"real","_id":"alias","conversation_id":"c1","sender_id":"s","msg_type":"text"}`)
	v, err := DecodeEvent(constant.EventMessageReceived, raw)
	require.NoError(t, err)
	assert.Equal(t, "real", v.(*sdk.Message).Id)
}

func TestDecodeEvent_FailsClosed(t *testing.T) {
	cases := []struct {
		name   string
		event  string
		data   string
		reason string
	}{
		{"missing id", constant.EventNewMessage, `{"conversation_id":"c1","sender_id":"s","msg_type":"text"}`, dropInvalid},
		{"bad kind", constant.EventNewMessage, `{"id":"m","conversation_id":"c1","sender_id":"s","msg_type":"video"}`, dropInvalid},
		{"file without url", constant.EventNewMessage, `{"id":"m","conversation_id":"c1","sender_id":"s","msg_type":"file","file":{"name":"a"}}`, dropInvalid},
		{"array payload", constant.EventNewMessage, `["m1"]`, dropNotObject},
		{"broken json", constant.EventUserTyping, `{"conversation_id":`, dropMalformedJSON},
		{"empty status list", constant.EventMessageStatusUpdate, `{"conversation_id":"c1","message_ids":[],"status":"read"}`, dropInvalid},
		{"unknown status", constant.EventMessageStatusUpdate, `{"conversation_id":"c1","message_ids":["m1"],"status":"seen"}`, dropInvalid},
		{"conversation without participants", constant.EventConversationUpdate, `{"id":"c1","status":"active"}`, dropInvalid},
		{"unknown event", "presence", `{}`, dropUnknownEvent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent(tc.event, json.RawMessage(tc.data))
			require.Error(t, err)
			var de *decodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.reason, de.reason)
		})
	}
}

func TestDecodeEvent_StatusAndTyping(t *testing.T) {
	v, err := DecodeEvent(constant.EventMessageStatusUpdate, json.RawMessage(`{"conversationId":"c1","messageIds":["m1","m2"],"status":"delivered"}`))
	require.NoError(t, err)
	upd := v.(*sdk.StatusUpdate)
	assert.Equal(t, []string{"m1", "m2"}, upd.MessageIds)
	assert.Equal(t, "delivered", upd.Status)

	v, err = DecodeEvent(constant.EventUserTyping, json.RawMessage(`{"conversationId":"c1","userId":"tut_1","isTyping":true}`))
	require.NoError(t, err)
	typing := v.(*sdk.TypingEvent)
	assert.Equal(t, "tut_1", typing.UserId)
	assert.True(t, typing.IsTyping)
}
