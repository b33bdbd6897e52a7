package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/internal/gateway"
	"github.com/mbeoliero/tutorchat/internal/handler"
	"github.com/mbeoliero/tutorchat/internal/middleware"
	"github.com/mbeoliero/tutorchat/pkg/response"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Message      *handler.MessageHandler
	Conversation *handler.ConversationHandler
}

// SetupRouter sets up all routes
func SetupRouter(cfg *config.Config, handlers *Handlers, wsServer *gateway.WsServer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.Devserver.AllowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		response.Success(req.Context(), w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Auth routes (no auth required)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handlers.Auth.Register)
		r.Post("/login", handlers.Auth.Login)
	})

	// Authenticated REST routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.JWT.Secret))

		r.Get("/users/me", handlers.User.GetUserInfo)
		r.Get("/users/{id}/online", handlers.User.GetOnlineStatus)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", handlers.Conversation.GetConversationList)
			r.Post("/", handlers.Conversation.CreateConversation)
			r.Get("/{id}/messages", handlers.Message.GetMessages)
			r.Post("/{id}/messages", handlers.Message.SendMessage)
			r.Put("/{id}/read", handlers.Conversation.MarkRead)
			r.Put("/{id}/close", handlers.Conversation.CloseConversation)
		})
	})

	// Socket handshake authenticates itself from the token query parameter
	r.Get("/ws", wsServer.HandleConnection)

	return r
}
