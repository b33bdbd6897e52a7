package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// RoomMap tracks connections, the rooms they joined and per-user presence
type RoomMap struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client  // room -> connId -> client
	joined map[string]map[string]struct{} // connId -> rooms
	users  map[string]map[string]*Client  // userId -> connId -> client
	rdb    *redis.Client
}

// NewRoomMap creates a new RoomMap. rdb may be nil.
func NewRoomMap(rdb *redis.Client) *RoomMap {
	return &RoomMap{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string]map[string]struct{}),
		users:  make(map[string]map[string]*Client),
		rdb:    rdb,
	}
}

// Register records a live connection
func (m *RoomMap) Register(ctx context.Context, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.users[client.UserId]
	if !ok {
		conns = make(map[string]*Client, 2)
		m.users[client.UserId] = conns
	}
	conns[client.ConnId] = client

	m.setOnline(ctx, client.UserId)
}

// Unregister removes a connection from every room. It reports whether the user has no
// connection left.
func (m *RoomMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room := range m.joined[client.ConnId] {
		m.leaveLocked(room, client)
	}
	delete(m.joined, client.ConnId)

	conns, ok := m.users[client.UserId]
	if !ok {
		return false
	}
	delete(conns, client.ConnId)
	if len(conns) == 0 {
		delete(m.users, client.UserId)
		m.setOffline(ctx, client.UserId)
		return true
	}
	return false
}

// Join adds a connection to a room
func (m *RoomMap) Join(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[room] = members
	}
	members[client.ConnId] = client

	rooms, ok := m.joined[client.ConnId]
	if !ok {
		rooms = make(map[string]struct{})
		m.joined[client.ConnId] = rooms
	}
	rooms[room] = struct{}{}
}

// Leave removes a connection from a room
func (m *RoomMap) Leave(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(room, client)
	if rooms, ok := m.joined[client.ConnId]; ok {
		delete(rooms, room)
	}
}

func (m *RoomMap) leaveLocked(room string, client *Client) {
	members, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ConnId)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

// InRoom reports whether a connection joined a room
func (m *RoomMap) InRoom(room string, client *Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[room][client.ConnId]
	return ok
}

// Members returns a copy of the connections in a room
func (m *RoomMap) Members(room string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[room]
	clients := make([]*Client, 0, len(members))
	for _, c := range members {
		clients = append(clients, c)
	}
	return clients
}

// RoomSize returns the number of connections in a room
func (m *RoomMap) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// HasConnection checks if user has any connection
func (m *RoomMap) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users[userId]) > 0
}

// GetOnlineUserCount returns the number of online users
func (m *RoomMap) GetOnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// GetOnlineConnCount returns the total number of connections
func (m *RoomMap) GetOnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, conns := range m.users {
		count += len(conns)
	}
	return count
}

// IsOnline checks if user is online, consulting Redis for connections held by other instances
func (m *RoomMap) IsOnline(ctx context.Context, userId string) bool {
	if m.HasConnection(userId) {
		return true
	}

	if m.rdb != nil {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		exists, _ := m.rdb.Exists(ctx, key).Result()
		return exists > 0
	}

	return false
}

// setOnline marks user as online in Redis
func (m *RoomMap) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Set(ctx, key, "1", presenceTTL)
}

// setOffline marks user as offline in Redis
func (m *RoomMap) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Del(ctx, key)
}
