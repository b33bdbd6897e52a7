package transport

import "time"

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200

	// WriteQueueSize bounds frames waiting for the writer goroutine
	WriteQueueSize = 256
)

// Reconnect defaults
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReconnectDelay    = 1 * time.Second
	DefaultReconnectDelayMax = 5 * time.Second
)

// Reasons recorded when an inbound event is dropped
const (
	dropMalformedJSON = "malformed_json"
	dropUnknownEvent  = "unknown_event"
	dropNotObject     = "not_object"
	dropDecode        = "decode"
	dropInvalid       = "invalid"
)
