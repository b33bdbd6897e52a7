package jwt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps the bearer token of the current session so that reconnects and
// later runs can authenticate without the caller passing it again.
type TokenStore interface {
	// Load returns the stored token, or "" when none is stored
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates a new MemoryTokenStore
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisTokenStore manages token storage in Redis, one key per profile
type RedisTokenStore struct {
	rdb    *redis.Client
	expire time.Duration
	key    string
}

// NewRedisTokenStore creates a new RedisTokenStore
// Key format: {prefix}token:{profile}
func NewRedisTokenStore(rdb *redis.Client, profile string, expireHours int) *RedisTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisTokenStore{
		rdb:    rdb,
		expire: time.Duration(expireHours) * time.Hour,
		key:    fmt.Sprintf(constant.RedisKeyToken(), profile),
	}
}

// Load returns the stored token
func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// Save stores the token with expiration
func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key, token, s.expire).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the token
func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
