package repository

import (
	"context"
	"sync"

	"github.com/mbeoliero/tutorchat/internal/entity"
	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	mu       sync.RWMutex
	byConv   map[string][]*entity.Message // chronological
	byClient map[string]*entity.Message   // senderId/clientMsgId
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{
		byConv:   make(map[string][]*entity.Message),
		byClient: make(map[string]*entity.Message),
	}
}

func clientKey(senderId, clientMsgId string) string {
	return senderId + "/" + clientMsgId
}

// Create appends a message to its conversation
func (r *MessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.byConv[msg.ConversationId] = append(r.byConv[msg.ConversationId], &cp)
	if msg.ClientMsgId != "" {
		r.byClient[clientKey(msg.SenderId, msg.ClientMsgId)] = &cp
	}
	return nil
}

// GetByClientMsgId gets a message by client message Id, nil when absent
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) *entity.Message {
	if clientMsgId == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byClient[clientKey(senderId, clientMsgId)]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// GetPage returns window page (1 = newest) of limit messages in chronological order,
// the total message count and whether older messages exist
func (r *MessageRepo) GetPage(ctx context.Context, conversationId string, page, limit int) ([]*entity.Message, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.byConv[conversationId]
	total := len(all)
	end := total - (page-1)*limit
	if end <= 0 {
		return []*entity.Message{}, total, false
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	result := make([]*entity.Message, 0, end-start)
	for _, m := range all[start:end] {
		cp := *m
		result = append(result, &cp)
	}
	return result, total, start > 0
}

// MarkRead moves every message sent by someone other than readerId to read and returns the changed ids
func (r *MessageRepo) MarkRead(ctx context.Context, conversationId, readerId string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, m := range r.byConv[conversationId] {
		if m.SenderId == readerId || m.Status == constant.MsgStatusRead {
			continue
		}
		m.Status = constant.MsgStatusRead
		ids = append(ids, m.Id)
	}
	return ids
}
