// Package devserver assembles an in-memory tutorchat backend: REST API, socket gateway and
// seeded accounts. It backs local demos and end-to-end tests.
package devserver

import (
	"context"
	"net/http"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/internal/gateway"
	"github.com/mbeoliero/tutorchat/internal/handler"
	"github.com/mbeoliero/tutorchat/internal/repository"
	"github.com/mbeoliero/tutorchat/internal/router"
	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// Server is a running development backend
type Server struct {
	repos   *repository.Repositories
	auth    *service.AuthService
	convs   *service.ConversationService
	ws      *gateway.WsServer
	handler http.Handler
	cancel  context.CancelFunc
}

// New wires repositories, services, the socket gateway and routes, and starts the push workers
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	repos := repository.NewRepositories(cfg)
	if err := repos.CheckConnection(ctx); err != nil {
		return nil, err
	}

	authService := service.NewAuthService(repos.User, cfg)
	userService := service.NewUserService(repos.User)
	convService := service.NewConversationService(repos)
	msgService := service.NewMessageService(repos, convService)

	wsServer := gateway.NewWsServer(cfg, repos.Redis, convService)
	convService.SetPusher(wsServer)
	msgService.SetPusher(wsServer)

	runCtx, cancel := context.WithCancel(context.Background())
	wsServer.Run(runCtx)

	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService, wsServer),
		Message:      handler.NewMessageHandler(msgService),
		Conversation: handler.NewConversationHandler(convService),
	}

	s := &Server{
		repos:   repos,
		auth:    authService,
		convs:   convService,
		ws:      wsServer,
		handler: router.SetupRouter(cfg, handlers, wsServer),
		cancel:  cancel,
	}

	if cfg.Devserver.Seed {
		if err := s.Seed(ctx, DefaultSeed()); err != nil {
			cancel()
			return nil, err
		}
	}
	log.CtxInfo(ctx, "devserver ready: seeded=%v", cfg.Devserver.Seed)
	return s, nil
}

// Handler returns the HTTP handler serving REST and /ws
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Gateway exposes the socket hub
func (s *Server) Gateway() *gateway.WsServer {
	return s.ws
}

// Close stops the push workers and releases connections
func (s *Server) Close() error {
	s.cancel()
	return s.repos.Close()
}
