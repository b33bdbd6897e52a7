package entity

import (
	"github.com/mbeoliero/tutorchat/sdk"
)

// Message represents a stored message
type Message struct {
	Id             string       `json:"id"`
	ConversationId string       `json:"conversation_id"`
	ClientMsgId    string       `json:"client_msg_id"`
	SenderId       string       `json:"sender_id"`
	ReceiverId     string       `json:"receiver_id"`
	MsgType        string       `json:"msg_type"`
	Content        string       `json:"content"`
	File           *sdk.File    `json:"file,omitempty"`
	Status         string       `json:"status"`
	ReplyTo        *sdk.ReplyTo `json:"reply_to,omitempty"`
	CreatedAt      int64        `json:"created_at"`
}

// ToMessageInfo converts Message to its wire form
func (m *Message) ToMessageInfo() *sdk.Message {
	info := &sdk.Message{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		ClientMsgId:    m.ClientMsgId,
		SenderId:       m.SenderId,
		ReceiverId:     m.ReceiverId,
		MsgType:        m.MsgType,
		Content:        m.Content,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
	if m.File != nil {
		f := *m.File
		info.File = &f
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		info.ReplyTo = &r
	}
	return info
}

// Preview is the snapshot text stored as a conversation's last message
func (m *Message) Preview() string {
	if m.File != nil && m.Content == "" {
		return m.File.Name
	}
	return m.Content
}
