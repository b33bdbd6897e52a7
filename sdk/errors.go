package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// IsSuccess checks if the error code indicates success
func (e *Error) IsSuccess() bool {
	return e.Code == 0
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam   = 1001
	CodeInternalServer = 1002
	CodeUnauthorized   = 1003
	CodeForbidden      = 1004
	CodeNotFound       = 1005

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeLoginFailed   = 2005
	CodeUserNotFound  = 2006
	CodePasswordWrong = 2008

	// Conversation errors (3xxx)
	CodeRequestNotFound   = 3001
	CodeConvNotFound      = 3002
	CodeConvClosed        = 3003
	CodeNotParticipant    = 3004
	CodeConvAlreadyClosed = 3005

	// Message errors (4xxx)
	CodeMessageInvalid   = 4001
	CodeMessageDuplicate = 4002
	CodeSendFailed       = 4005
	CodePullFailed       = 4006
)

// Predefined errors
var (
	ErrInvalidParam   = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden      = NewError(CodeForbidden, "forbidden")
	ErrNotFound       = NewError(CodeNotFound, "not found")

	ErrTokenInvalid  = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenMissing  = NewError(CodeTokenMissing, "token missing")
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrPasswordWrong = NewError(CodePasswordWrong, "password wrong")

	ErrRequestNotFound    = NewError(CodeRequestNotFound, "contact request not found")
	ErrConvNotFound       = NewError(CodeConvNotFound, "conversation not found")
	ErrConversationClosed = NewError(CodeConvClosed, "conversation closed")
	ErrNotParticipant     = NewError(CodeNotParticipant, "not a conversation participant")

	ErrMessageInvalid = NewError(CodeMessageInvalid, "invalid message payload")
)
