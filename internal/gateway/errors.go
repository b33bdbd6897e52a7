package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed      = errors.New("connection closed")
	ErrInvalidProtocol = errors.New("invalid protocol")
	ErrUserIdMismatch  = errors.New("user Id mismatch")
	ErrNotInRoom       = errors.New("not in conversation room")
	ErrPanic           = errors.New("panic error")
)
