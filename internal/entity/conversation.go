package entity

import (
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

// Conversation represents a stored conversation
type Conversation struct {
	Id            string           `json:"id"`
	RequestId     string           `json:"request_id"`
	Subject       string           `json:"subject"`
	StudentId     string           `json:"student_id"`
	TutorId       string           `json:"tutor_id"`
	Status        string           `json:"status"`
	LastMessage   *sdk.LastMessage `json:"last_message,omitempty"`
	UnreadStudent int              `json:"unread_student"`
	UnreadTutor   int              `json:"unread_tutor"`
	ClosedBy      string           `json:"closed_by,omitempty"`
	CreatedAt     int64            `json:"created_at"`
	UpdatedAt     int64            `json:"updated_at"`
}

// RoleOf returns the role of a participant, or "" for strangers
func (c *Conversation) RoleOf(userId string) string {
	switch {
	case userId == "":
		return ""
	case userId == c.StudentId:
		return constant.RoleStudent
	case userId == c.TutorId:
		return constant.RoleTutor
	}
	return ""
}

// IsParticipant checks if userId is one of the two parties
func (c *Conversation) IsParticipant(userId string) bool {
	return c.RoleOf(userId) != ""
}

// PeerOf returns the other participant
func (c *Conversation) PeerOf(userId string) string {
	if userId == c.StudentId {
		return c.TutorId
	}
	return c.StudentId
}

// IsClosed reports whether new messages are rejected
func (c *Conversation) IsClosed() bool {
	return c.Status == constant.ConversationStatusClosed
}

// AddUnread increments the counter of the participant's role
func (c *Conversation) AddUnread(userId string) {
	switch c.RoleOf(userId) {
	case constant.RoleStudent:
		c.UnreadStudent++
	case constant.RoleTutor:
		c.UnreadTutor++
	}
}

// ClearUnread zeroes the counter of the participant's role
func (c *Conversation) ClearUnread(userId string) {
	switch c.RoleOf(userId) {
	case constant.RoleStudent:
		c.UnreadStudent = 0
	case constant.RoleTutor:
		c.UnreadTutor = 0
	}
}

// Clone returns a copy safe to hand out of the repository
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

// ToConversationInfo converts to the API view. Participants missing from users keep only their id.
func (c *Conversation) ToConversationInfo(users map[string]*User) *sdk.Conversation {
	participant := func(id string) sdk.Participant {
		if u, ok := users[id]; ok {
			return u.ToParticipant()
		}
		return sdk.Participant{Id: id}
	}

	info := &sdk.Conversation{
		Id:        c.Id,
		RequestId: c.RequestId,
		Subject:   c.Subject,
		Student:   participant(c.StudentId),
		Tutor:     participant(c.TutorId),
		Status:    c.Status,
		UnreadCount: sdk.UnreadCount{
			Student: c.UnreadStudent,
			Tutor:   c.UnreadTutor,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		info.LastMessage = &lm
	}
	return info
}
