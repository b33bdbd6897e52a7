package repository

import (
	"context"
	"sync"

	"github.com/mbeoliero/tutorchat/internal/entity"
)

// RequestRepo stores contact requests
type RequestRepo struct {
	mu       sync.RWMutex
	requests map[string]*entity.ContactRequest
}

// NewRequestRepo creates a new RequestRepo
func NewRequestRepo() *RequestRepo {
	return &RequestRepo{requests: make(map[string]*entity.ContactRequest)}
}

// Create stores a contact request, replacing one with the same id
func (r *RequestRepo) Create(ctx context.Context, req *entity.ContactRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.Id] = &cp
	return nil
}

// GetById gets a contact request by Id
func (r *RequestRepo) GetById(ctx context.Context, id string) (*entity.ContactRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}
