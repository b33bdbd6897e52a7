package constant

// Participant roles
const (
	RoleStudent = "student" // Initiator of the contact request
	RoleTutor   = "tutor"   // Counterparty
)

// Conversation status
const (
	ConversationStatusActive = "active"
	ConversationStatusClosed = "closed"
)

// Message types
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeFile  = "file"
)

// Message status, ordered
const (
	MsgStatusSent      = "sent"
	MsgStatusDelivered = "delivered"
	MsgStatusRead      = "read"
)

// MsgStatusRank returns the position of a status in the sent -> delivered -> read order.
// Unknown statuses rank below sent.
func MsgStatusRank(status string) int {
	switch status {
	case MsgStatusSent:
		return 1
	case MsgStatusDelivered:
		return 2
	case MsgStatusRead:
		return 3
	default:
		return 0
	}
}

// IsValidMsgType reports whether msgType is one of the closed set of message kinds
func IsValidMsgType(msgType string) bool {
	switch msgType {
	case MsgTypeText, MsgTypeImage, MsgTypeFile:
		return true
	default:
		return false
	}
}

// Client -> server socket events
const (
	EventJoinChat          = "join_chat"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
)

// Server -> client socket events
const (
	EventNewMessage          = "new_message"
	EventMessageReceived     = "message_received"
	EventMessageStatusUpdate = "message_status_update"
	EventConversationUpdate  = "conversation_update"
	EventUserTyping          = "user_typing"
	EventConversationClosed  = "conversation_closed"
)

// Room name prefixes used by the socket server
const (
	UserRoomPrefix         = "user:"
	ConversationRoomPrefix = "conv:"
)

// UserRoom returns the per-user notification room name
func UserRoom(userId string) string { return UserRoomPrefix + userId }

// ConversationRoom returns the room name for a conversation
func ConversationRoom(conversationId string) string { return ConversationRoomPrefix + conversationId }

// Query parameter keys for the socket handshake
const (
	QueryToken = "token"
)

// Redis key patterns (without prefix, use RedisKeyToken() to get full key)
const (
	redisKeyToken  = "token:%s"  // token:{profile}
	redisKeyOnline = "online:%s" // online:{userId}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "tutorchat:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

func RedisKeyToken() string  { return redisKeyPrefix + redisKeyToken }
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
