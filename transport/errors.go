package transport

import "errors"

// Transport errors
var (
	ErrConnClosed       = errors.New("connection closed")
	ErrWriteChannelFull = errors.New("write channel full")
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrTokenMissing     = errors.New("token missing")
	ErrPanic            = errors.New("panic error")
)
