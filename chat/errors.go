package chat

import (
	"errors"

	"github.com/mbeoliero/tutorchat/store"
)

// Chat errors
var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrNotStarted         = errors.New("chat client not started")
	ErrSessionClosed      = errors.New("session closed")
	ErrInvalidFileKind    = errors.New("file kind must be image or file")
	ErrConversationClosed = store.ErrConversationClosed
)
