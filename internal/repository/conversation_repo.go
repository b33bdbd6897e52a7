package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mbeoliero/tutorchat/internal/entity"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	mu        sync.RWMutex
	convs     map[string]*entity.Conversation
	byRequest map[string]string // requestId -> conversationId
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{
		convs:     make(map[string]*entity.Conversation),
		byRequest: make(map[string]string),
	}
}

// CreateIfAbsent stores conv unless its request already has a conversation.
// It returns the stored conversation and whether it was created by this call.
func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byRequest[conv.RequestId]; ok {
		return r.convs[id].Clone(), false
	}
	stored := conv.Clone()
	r.convs[conv.Id] = stored
	r.byRequest[conv.RequestId] = conv.Id
	return stored.Clone(), true
}

// GetById gets a conversation by Id
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return c.Clone(), nil
}

// GetUserConversations lists the conversations of a participant, most recently updated first
func (r *ConversationRepo) GetUserConversations(ctx context.Context, userId string) []*entity.Conversation {
	r.mu.RLock()
	result := make([]*entity.Conversation, 0)
	for _, c := range r.convs {
		if c.IsParticipant(userId) {
			result = append(result, c.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt == result[j].UpdatedAt {
			return result[i].Id < result[j].Id
		}
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	return result
}

// Update applies fn to the stored conversation atomically and returns the result.
// An error from fn leaves the conversation unchanged.
func (r *ConversationRepo) Update(ctx context.Context, id string, fn func(c *entity.Conversation) error) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	next := c.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.convs[id] = next
	return next.Clone(), nil
}
