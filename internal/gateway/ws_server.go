package gateway

import (
	"context"
	"hash/crc32"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/internal/middleware"
	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/metrics"
	"github.com/mbeoliero/tutorchat/transport"
)

// WsServer is the WebSocket server
type WsServer struct {
	upgrader       *websocket.Upgrader
	secret         string
	connOpts       transport.ConnOptions
	rooms          *RoomMap
	unregisterChan chan *Client
	workers        []chan *pushTask
	convService    *service.ConversationService
	onlineUserNum  atomic.Int64
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, convService *service.ConversationService) *WsServer {
	allowed := cfg.Devserver.AllowedOrigins
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.CheckOrigin(r.Header.Get("Origin"), allowed)
		},
	}

	workerNum := cfg.Devserver.PushWorkerNum
	if workerNum <= 0 {
		workerNum = defaultPushWorkerNum
	}
	queueSize := cfg.Devserver.PushChannelSize
	if queueSize <= 0 {
		queueSize = defaultPushChannelSize
	}
	workers := make([]chan *pushTask, workerNum)
	for i := range workers {
		workers[i] = make(chan *pushTask, queueSize)
	}

	return &WsServer{
		upgrader: upgrader,
		secret:   cfg.JWT.Secret,
		connOpts: transport.ConnOptions{
			MaxMessageSize: cfg.Socket.MaxMessageSize,
			PongWait:       cfg.Socket.PongWait,
			PingPeriod:     cfg.Socket.PingPeriod,
			WriteWait:      cfg.Socket.WriteWait,
			WriteQueueSize: cfg.Socket.WriteQueueSize,
		},
		rooms:          NewRoomMap(rdb),
		unregisterChan: make(chan *Client, unregisterChannelSize),
		workers:        workers,
		convService:    convService,
		maxConnNum:     cfg.Devserver.MaxConnNum,
	}
}

// Run starts the unregistration loop and push workers; they stop with ctx
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	for _, ch := range s.workers {
		go s.pushLoop(ctx, ch)
	}
	log.Info("started %d push workers", len(s.workers))
}

// eventLoop handles client unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop delivers the tasks of one shard in order
func (s *WsServer) pushLoop(ctx context.Context, tasks <-chan *pushTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-tasks:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask encodes each push once and writes it to every member of its rooms
func (s *WsServer) processPushTask(ctx context.Context, task *pushTask) {
	for _, p := range task.pushes {
		data, err := transport.EncodeFrame(p.Event, p.Data)
		if err != nil {
			log.CtxWarn(ctx, "encode push failed: event=%s, error=%v", p.Event, err)
			continue
		}

		sent := make(map[string]struct{})
		for _, room := range p.Rooms {
			for _, client := range s.rooms.Members(room) {
				if p.ExcludeUserId != "" && client.UserId == p.ExcludeUserId {
					continue
				}
				if _, dup := sent[client.ConnId]; dup {
					continue
				}
				sent[client.ConnId] = struct{}{}

				if err := client.Push(data); err != nil {
					log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, error=%v", client.UserId, client.ConnId, err)
				}
			}
		}
	}
}

// AsyncPush queues pushes; pushes with the same key go to the same worker and keep their order
func (s *WsServer) AsyncPush(key string, pushes ...service.Push) {
	if len(pushes) == 0 {
		return
	}

	shard := s.workers[crc32.ChecksumIEEE([]byte(key))%uint32(len(s.workers))]

	select {
	case shard <- &pushTask{key: key, pushes: pushes}:
	default:
		log.Warn("push channel full, %d events dropped: key=%s", len(pushes), key)
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	if !s.rooms.HasConnection(client.UserId) {
		s.onlineUserNum.Add(1)
	}
	s.rooms.Register(ctx, client)
	s.onlineConnNum.Add(1)
	metrics.DevserverConnections.Inc()

	log.CtxInfo(ctx, "client registered: user_id=%s, conn_id=%s, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	isUserOffline := s.rooms.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)
	metrics.DevserverConnections.Dec()
	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// IsOnline reports whether a user holds a connection here or, with Redis, on another instance
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.rooms.IsOnline(ctx, userId)
}

// RoomSize returns the number of connections joined to a room
func (s *WsServer) RoomSize(room string) int {
	return s.rooms.RoomSize(room)
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}
