package gateway

import (
	"net/http"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/middleware"
	"github.com/mbeoliero/tutorchat/pkg/idgen"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/transport"
)

// HandleConnection authenticates and upgrades a socket handshake
func (s *WsServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Check connection limit
	if s.maxConnNum > 0 && s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := middleware.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwt.ParseToken(token, s.secret)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	// registered before reading so a fast disconnect cannot overtake it
	client := NewClient(transport.NewConn(conn, s.connOpts), claims.UserId, idgen.NewConnId(), s)
	s.registerClient(ctx, client)
	client.Start()
}
