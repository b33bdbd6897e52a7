package service

import (
	"context"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/entity"
	"github.com/mbeoliero/tutorchat/internal/repository"
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/idgen"
	"github.com/mbeoliero/tutorchat/pkg/metrics"
	"github.com/mbeoliero/tutorchat/sdk"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Push is one server event addressed to some socket rooms
type Push struct {
	Event string
	Data  any
	Rooms []string
	// ExcludeUserId skips connections of this user
	ExcludeUserId string
}

// Pusher delivers events asynchronously. Pushes sharing a key are delivered in order.
type Pusher interface {
	AsyncPush(key string, pushes ...Push)
}

// MessageService handles message-related business logic
type MessageService struct {
	msgRepo  *repository.MessageRepo
	convRepo *repository.ConversationRepo
	convSvc  *ConversationService
	pusher   Pusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories, convSvc *ConversationService) *MessageService {
	return &MessageService{
		msgRepo:  repos.Message,
		convRepo: repos.Conversation,
		convSvc:  convSvc,
	}
}

// SetPusher sets the event pusher
func (s *MessageService) SetPusher(pusher Pusher) {
	s.pusher = pusher
}

// SendMessage persists a message from userId and fans it out: new_message to the conversation
// room, message_received to the receiver and conversation_update to both participants.
// A repeated client message id returns the stored message without a second fan-out.
func (s *MessageService) SendMessage(ctx context.Context, userId, conversationId string, req *sdk.SendMessageRequest) (*sdk.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, errcode.ErrMessageInvalid.Wrap(err)
	}
	conv, err := s.convSvc.GetConversation(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if conv.IsClosed() {
		return nil, errcode.ErrConvClosed
	}

	if existing := s.msgRepo.GetByClientMsgId(ctx, userId, req.ClientMsgId); existing != nil {
		log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
		return existing.ToMessageInfo(), nil
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate message id failed: %v", err)
		return nil, errcode.ErrSendFailed
	}
	msg := &entity.Message{
		Id:             id,
		ConversationId: conversationId,
		ClientMsgId:    req.ClientMsgId,
		SenderId:       userId,
		ReceiverId:     conv.PeerOf(userId),
		MsgType:        req.MsgType,
		Content:        req.Content,
		File:           req.File,
		Status:         constant.MsgStatusSent,
		ReplyTo:        req.ReplyTo,
		CreatedAt:      entity.NowUnixMilli(),
	}

	conv, err = s.convRepo.Update(ctx, conversationId, func(c *entity.Conversation) error {
		// closed between the check and now
		if c.IsClosed() {
			return errcode.ErrConvClosed
		}
		c.LastMessage = &sdk.LastMessage{
			Content:   msg.Preview(),
			SenderId:  msg.SenderId,
			Timestamp: msg.CreatedAt,
		}
		c.UpdatedAt = msg.CreatedAt
		c.AddUnread(msg.ReceiverId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		log.CtxError(ctx, "create message failed: %v", err)
		return nil, errcode.ErrSendFailed
	}
	metrics.DevserverMessages.WithLabelValues(msg.MsgType).Inc()

	info := msg.ToMessageInfo()
	if s.pusher != nil {
		s.pusher.AsyncPush(conversationId,
			Push{
				Event: constant.EventNewMessage,
				Data:  info,
				Rooms: []string{constant.ConversationRoom(conversationId)},
			},
			Push{
				Event: constant.EventMessageReceived,
				Data:  info,
				Rooms: []string{constant.UserRoom(msg.ReceiverId)},
			},
			Push{
				Event: constant.EventConversationUpdate,
				Data:  s.convSvc.toInfo(ctx, conv),
				Rooms: participantRooms(conv),
			},
		)
	}

	log.CtxDebug(ctx, "message sent: conversation_id=%s, message_id=%s", conversationId, msg.Id)
	return info, nil
}

// GetMessages returns page (1 = newest) of the conversation's history in chronological order
func (s *MessageService) GetMessages(ctx context.Context, userId, conversationId string, page, limit int) (*sdk.MessagePage, error) {
	if _, err := s.convSvc.GetConversation(ctx, userId, conversationId); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	msgs, total, hasMore := s.msgRepo.GetPage(ctx, conversationId, page, limit)
	result := &sdk.MessagePage{
		Messages: make([]*sdk.Message, 0, len(msgs)),
		Pagination: sdk.Pagination{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasMore: hasMore,
		},
	}
	for _, m := range msgs {
		result.Messages = append(result.Messages, m.ToMessageInfo())
	}
	return result, nil
}
