package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/entity"
	"github.com/mbeoliero/tutorchat/internal/repository"
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/idgen"
	"github.com/mbeoliero/tutorchat/sdk"
)

// ConversationService handles conversation-related business logic
type ConversationService struct {
	convRepo    *repository.ConversationRepo
	requestRepo *repository.RequestRepo
	msgRepo     *repository.MessageRepo
	userRepo    *repository.UserRepo
	pusher      Pusher
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo:    repos.Conversation,
		requestRepo: repos.Request,
		msgRepo:     repos.Message,
		userRepo:    repos.User,
	}
}

// SetPusher sets the event pusher
func (s *ConversationService) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// CreateRequestRequest represents a new contact request
type CreateRequestRequest struct {
	RequestId string `json:"request_id"`
	StudentId string `json:"student_id" validate:"required"`
	TutorId   string `json:"tutor_id" validate:"required,nefield=StudentId"`
	Subject   string `json:"subject"`
}

// CreateRequest stores a contact request between an existing student and tutor
func (s *ConversationService) CreateRequest(ctx context.Context, req *CreateRequestRequest) (*entity.ContactRequest, error) {
	if err := sdk.Validator().Struct(req); err != nil {
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}
	users := s.userRepo.GetByIds(ctx, []string{req.StudentId, req.TutorId})
	student, tutor := users[req.StudentId], users[req.TutorId]
	if student == nil || tutor == nil {
		return nil, errcode.ErrUserNotFound
	}
	if student.Role != constant.RoleStudent || tutor.Role != constant.RoleTutor {
		return nil, errcode.ErrInvalidParam.Wrap(errors.New("request needs a student and a tutor"))
	}

	id := req.RequestId
	if id == "" {
		var err error
		if id, err = idgen.NextID(); err != nil {
			return nil, errcode.ErrInternalServer.Wrap(err)
		}
	}
	contact := &entity.ContactRequest{
		Id:        id,
		StudentId: req.StudentId,
		TutorId:   req.TutorId,
		Subject:   req.Subject,
		CreatedAt: entity.NowUnixMilli(),
	}
	if err := s.requestRepo.Create(ctx, contact); err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	return contact, nil
}

// CreateConversation returns the conversation of a contact request, creating it on first use
func (s *ConversationService) CreateConversation(ctx context.Context, userId, requestId string) (*sdk.Conversation, error) {
	if requestId == "" {
		return nil, errcode.ErrInvalidParam
	}
	req, err := s.requestRepo.GetById(ctx, requestId)
	if err != nil {
		return nil, errcode.ErrRequestNotFound
	}
	if !req.Involves(userId) {
		return nil, errcode.ErrNotParticipant
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	now := entity.NowUnixMilli()
	conv, created := s.convRepo.CreateIfAbsent(ctx, &entity.Conversation{
		Id:        id,
		RequestId: req.Id,
		Subject:   req.Subject,
		StudentId: req.StudentId,
		TutorId:   req.TutorId,
		Status:    constant.ConversationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})

	info := s.toInfo(ctx, conv)
	if created {
		log.CtxInfo(ctx, "conversation created: conversation_id=%s, request_id=%s", conv.Id, req.Id)
		s.push(conv.Id, Push{
			Event: constant.EventConversationUpdate,
			Data:  info,
			Rooms: participantRooms(conv),
		})
	}
	return info, nil
}

// GetUserConversations lists a user's conversations, most recent first
func (s *ConversationService) GetUserConversations(ctx context.Context, userId string) []*sdk.Conversation {
	convs := s.convRepo.GetUserConversations(ctx, userId)
	result := make([]*sdk.Conversation, 0, len(convs))
	for _, c := range convs {
		result = append(result, s.toInfo(ctx, c))
	}
	return result
}

// GetConversation gets a conversation the user participates in
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		return nil, errcode.ErrConvNotFound
	}
	if !conv.IsParticipant(userId) {
		return nil, errcode.ErrNotParticipant
	}
	return conv, nil
}

// MarkRead zeroes the caller's unread counter and moves the peer's messages to read
func (s *ConversationService) MarkRead(ctx context.Context, userId, conversationId string) error {
	if _, err := s.GetConversation(ctx, userId, conversationId); err != nil {
		return err
	}

	conv, err := s.convRepo.Update(ctx, conversationId, func(c *entity.Conversation) error {
		c.ClearUnread(userId)
		return nil
	})
	if err != nil {
		return errcode.ErrConvNotFound
	}

	pushes := []Push{{
		Event: constant.EventConversationUpdate,
		Data:  s.toInfo(ctx, conv),
		Rooms: []string{constant.UserRoom(userId)},
	}}
	if ids := s.msgRepo.MarkRead(ctx, conversationId, userId); len(ids) > 0 {
		pushes = append(pushes, Push{
			Event: constant.EventMessageStatusUpdate,
			Data: &sdk.StatusUpdate{
				ConversationId: conversationId,
				MessageIds:     ids,
				Status:         constant.MsgStatusRead,
			},
			Rooms: []string{constant.ConversationRoom(conversationId)},
		})
	}
	s.push(conversationId, pushes...)

	log.CtxDebug(ctx, "conversation read: conversation_id=%s, user_id=%s", conversationId, userId)
	return nil
}

// CloseConversation stops a conversation from accepting messages. Closing twice is a no-op.
func (s *ConversationService) CloseConversation(ctx context.Context, userId, conversationId string) (*sdk.Conversation, error) {
	if _, err := s.GetConversation(ctx, userId, conversationId); err != nil {
		return nil, err
	}

	alreadyClosed := false
	conv, err := s.convRepo.Update(ctx, conversationId, func(c *entity.Conversation) error {
		if c.IsClosed() {
			alreadyClosed = true
			return nil
		}
		c.Status = constant.ConversationStatusClosed
		c.ClosedBy = userId
		c.UpdatedAt = entity.NowUnixMilli()
		return nil
	})
	if err != nil {
		return nil, errcode.ErrConvNotFound
	}

	info := s.toInfo(ctx, conv)
	if !alreadyClosed {
		log.CtxInfo(ctx, "conversation closed: conversation_id=%s, closed_by=%s", conversationId, userId)
		s.push(conversationId,
			Push{
				Event: constant.EventConversationClosed,
				Data:  &sdk.ConversationClosed{ConversationId: conversationId, ClosedBy: userId},
				Rooms: participantRooms(conv),
			},
			Push{
				Event: constant.EventConversationUpdate,
				Data:  info,
				Rooms: participantRooms(conv),
			},
		)
	}
	return info, nil
}

func (s *ConversationService) toInfo(ctx context.Context, conv *entity.Conversation) *sdk.Conversation {
	return conv.ToConversationInfo(s.userRepo.GetByIds(ctx, []string{conv.StudentId, conv.TutorId}))
}

func (s *ConversationService) push(key string, pushes ...Push) {
	if s.pusher != nil {
		s.pusher.AsyncPush(key, pushes...)
	}
}

func participantRooms(conv *entity.Conversation) []string {
	return []string{constant.UserRoom(conv.StudentId), constant.UserRoom(conv.TutorId)}
}
