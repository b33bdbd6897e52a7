package gateway

import "time"

const (
	// presenceTTL bounds how long a Redis online marker outlives a crashed server
	presenceTTL = 60 * time.Second

	defaultPushWorkerNum   = 4
	defaultPushChannelSize = 1024
	unregisterChannelSize  = 1000
)
