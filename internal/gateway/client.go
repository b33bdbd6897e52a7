package gateway

import (
	"context"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
	"github.com/mbeoliero/tutorchat/transport"
)

// Client represents a connected socket on the server side
type Client struct {
	conn   *transport.Conn
	UserId string
	ConnId string
	server *WsServer
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn *transport.Conn, userId, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		UserId: userId,
		ConnId: connId,
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads frames from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			return
		}
		if c.closed.Load() {
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: user_id=%s, conn_id=%s, error=%v", c.UserId, c.ConnId, err)
		}
	}
}

// handleMessage handles a single client event. Errors are logged and the connection kept.
func (c *Client) handleMessage(message []byte) error {
	var frame transport.Frame
	if err := transport.Decode(message, &frame); err != nil || frame.Event == "" {
		return ErrInvalidProtocol
	}

	log.CtxDebug(c.ctx, "received event: event=%s, user_id=%s", frame.Event, c.UserId)

	switch frame.Event {
	case constant.EventJoinChat:
		var p transport.JoinChatPayload
		if err := transport.Decode(frame.Data, &p); err != nil {
			return ErrInvalidProtocol
		}
		if p.UserId != "" && p.UserId != c.UserId {
			return ErrUserIdMismatch
		}
		c.server.rooms.Join(constant.UserRoom(c.UserId), c)

	case constant.EventJoinConversation:
		var p transport.ConversationPayload
		if err := transport.Decode(frame.Data, &p); err != nil {
			return ErrInvalidProtocol
		}
		if _, err := c.server.convService.GetConversation(c.ctx, c.UserId, p.ConversationId); err != nil {
			return err
		}
		c.server.rooms.Join(constant.ConversationRoom(p.ConversationId), c)

	case constant.EventLeaveConversation:
		var p transport.ConversationPayload
		if err := transport.Decode(frame.Data, &p); err != nil {
			return ErrInvalidProtocol
		}
		c.server.rooms.Leave(constant.ConversationRoom(p.ConversationId), c)

	case constant.EventTypingStart, constant.EventTypingStop:
		var p transport.TypingPayload
		if err := transport.Decode(frame.Data, &p); err != nil {
			return ErrInvalidProtocol
		}
		room := constant.ConversationRoom(p.ConversationId)
		if !c.server.rooms.InRoom(room, c) {
			return ErrNotInRoom
		}
		c.server.AsyncPush(p.ConversationId, service.Push{
			Event: constant.EventUserTyping,
			Data: &sdk.TypingEvent{
				ConversationId: p.ConversationId,
				UserId:         c.UserId,
				IsTyping:       frame.Event == constant.EventTypingStart,
			},
			Rooms:         []string{room},
			ExcludeUserId: c.UserId,
		})

	default:
		return ErrInvalidProtocol
	}
	return nil
}

// Push queues encoded frame bytes to the client
func (c *Client) Push(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// Close closes the client connection
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	_ = c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
