package store

import (
	"errors"

	"github.com/mbeoliero/tutorchat/sdk"
)

// Store errors
var (
	ErrPageOutOfOrder      = errors.New("page out of order")
	ErrNoConversation      = errors.New("no conversation selected")
	ErrEmptyConversation   = errors.New("server returned no conversation")
	ErrConversationClosed  = sdk.ErrConversationClosed
	ErrInvalidMessage      = sdk.ErrMessageInvalid
	ErrConversationUnknown = sdk.ErrConvNotFound
)
