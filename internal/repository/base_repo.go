package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/tutorchat/internal/config"
)

// ErrRecordNotFound is returned by lookups that match nothing
var ErrRecordNotFound = errors.New("record not found")

// Repositories holds all repositories
type Repositories struct {
	// Redis is nil unless configured; it only backs online presence
	Redis        *redis.Client
	User         *UserRepo
	Request      *RequestRepo
	Message      *MessageRepo
	Conversation *ConversationRepo
}

// NewRepositories creates all repositories
func NewRepositories(cfg *config.Config) *Repositories {
	repos := &Repositories{
		Redis:        initRedis(cfg),
		User:         NewUserRepo(),
		Request:      NewRequestRepo(),
		Message:      NewMessageRepo(),
		Conversation: NewConversationRepo(),
	}
	return repos
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	if cfg == nil || !cfg.Redis.Enabled() {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Close closes all connections
func (r *Repositories) Close() error {
	if r.Redis == nil {
		return nil
	}
	return r.Redis.Close()
}

// CheckConnection checks if the redis connection is alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	if r.Redis == nil {
		return nil
	}
	if err := r.Redis.Ping(ctx).Err(); err != nil {
		log.CtxError(ctx, "redis ping failed: %v", err)
		return err
	}
	return nil
}
