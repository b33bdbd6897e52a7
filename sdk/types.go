package sdk

import (
	"encoding/json"

	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// Response represents the standard API response
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UserInfo represents public user info
type UserInfo struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Participant is one side of a conversation
type Participant struct {
	Id     string `json:"id" validate:"required"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// LastMessage is the denormalized snapshot shown in conversation lists
type LastMessage struct {
	Content   string `json:"content"`
	SenderId  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
}

// UnreadCount holds one counter per participant role
type UnreadCount struct {
	Student int `json:"student" validate:"gte=0"`
	Tutor   int `json:"tutor" validate:"gte=0"`
}

// Get returns the counter for a role
func (u UnreadCount) Get(role string) int {
	switch role {
	case constant.RoleStudent:
		return u.Student
	case constant.RoleTutor:
		return u.Tutor
	}
	return 0
}

// Conversation is a two-party thread scoped to one contact request
type Conversation struct {
	Id          string       `json:"id" validate:"required"`
	RequestId   string       `json:"request_id"`
	Subject     string       `json:"subject"`
	Student     Participant  `json:"student"`
	Tutor       Participant  `json:"tutor"`
	Status      string       `json:"status" validate:"required,oneof=active closed"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount UnreadCount  `json:"unread_count"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
}

// RoleOf maps a participant id to its role, or "" for strangers
func (c *Conversation) RoleOf(userId string) string {
	switch userId {
	case "":
		return ""
	case c.Student.Id:
		return constant.RoleStudent
	case c.Tutor.Id:
		return constant.RoleTutor
	}
	return ""
}

// PeerOf returns the id of the other participant
func (c *Conversation) PeerOf(userId string) string {
	switch userId {
	case c.Student.Id:
		return c.Tutor.Id
	case c.Tutor.Id:
		return c.Student.Id
	}
	return ""
}

// IsClosed reports whether the conversation accepts no new messages
func (c *Conversation) IsClosed() bool {
	return c.Status == constant.ConversationStatusClosed
}

// Clone returns a deep copy
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

// File is the metadata of an image or file attachment
type File struct {
	Name     string `json:"name" validate:"required"`
	Size     int64  `json:"size" validate:"gte=0"`
	MimeType string `json:"mime_type"`
	Url      string `json:"url" validate:"required"`
}

// ReplyTo is a back-reference to an earlier message
type ReplyTo struct {
	MessageId string `json:"message_id" validate:"required"`
	Content   string `json:"content"`
}

// Message is one unit of conversation content
type Message struct {
	Id             string   `json:"id" validate:"required"`
	ConversationId string   `json:"conversation_id" validate:"required"`
	ClientMsgId    string   `json:"client_msg_id,omitempty"`
	SenderId       string   `json:"sender_id" validate:"required"`
	ReceiverId     string   `json:"receiver_id,omitempty"`
	MsgType        string   `json:"msg_type" validate:"required,oneof=text image file"`
	Content        string   `json:"content"`
	File           *File    `json:"file,omitempty"`
	Status         string   `json:"status" validate:"omitempty,oneof=sent delivered read"`
	ReplyTo        *ReplyTo `json:"reply_to,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}

// AdvanceStatus moves the status forward only. It reports whether it changed.
func (m *Message) AdvanceStatus(status string) bool {
	if constant.MsgStatusRank(status) <= constant.MsgStatusRank(m.Status) {
		return false
	}
	m.Status = status
	return true
}

// Preview is the text used for list snapshots and reply references
func (m *Message) Preview() string {
	if m.MsgType == constant.MsgTypeText || m.File == nil {
		return m.Content
	}
	return m.File.Name
}

// Clone returns a deep copy
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.File != nil {
		f := *m.File
		cp.File = &f
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		cp.ReplyTo = &r
	}
	return &cp
}

// Pagination describes one window of message history
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// MessagePage is one page of history in chronological order
type MessagePage struct {
	Messages   []*Message `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// StatusUpdate advances the delivery status of some messages
type StatusUpdate struct {
	ConversationId string   `json:"conversation_id" validate:"required"`
	MessageIds     []string `json:"message_ids" validate:"required,min=1,dive,required"`
	Status         string   `json:"status" validate:"required,oneof=sent delivered read"`
}

// TypingEvent reports that a participant started or stopped typing
type TypingEvent struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	UserId         string `json:"user_id" validate:"required"`
	IsTyping       bool   `json:"is_typing"`
}

// ConversationClosed reports that a conversation reached its terminal state
type ConversationClosed struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	ClosedBy       string `json:"closed_by,omitempty"`
}

// ===== Request types =====

// LoginRequest
type LoginRequest struct {
	UserId   string `json:"user_id"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// CreateConversationRequest opens (or returns) the conversation of a contact request
type CreateConversationRequest struct {
	RequestId string `json:"request_id" validate:"required"`
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ClientMsgId string   `json:"client_msg_id,omitempty"`
	MsgType     string   `json:"msg_type" validate:"required,oneof=text image file"`
	Content     string   `json:"content,omitempty" validate:"required_if=MsgType text"`
	File        *File    `json:"file,omitempty" validate:"required_unless=MsgType text"`
	ReplyTo     *ReplyTo `json:"reply_to,omitempty"`
}

// OnlineStatus reports whether a user currently holds a socket connection
type OnlineStatus struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}
