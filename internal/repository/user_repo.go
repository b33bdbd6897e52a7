package repository

import (
	"context"
	"sync"

	"github.com/mbeoliero/tutorchat/internal/entity"
)

// UserRepo is the repository for user operations
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

// NewUserRepo creates a new UserRepo
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*entity.User)}
}

// Create creates a new user
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.Id] = &cp
	return nil
}

// GetById gets user by Id
func (r *UserRepo) GetById(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByIds gets users by Ids, keyed by id; unknown ids are skipped
func (r *UserRepo) GetByIds(ctx context.Context, ids []string) map[string]*entity.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]*entity.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			result[id] = &cp
		}
	}
	return result
}

// Exists checks if user exists
func (r *UserRepo) Exists(ctx context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}
