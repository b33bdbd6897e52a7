package sdk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator used for payloads in both directions.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a send payload before it leaves the client
func (r *SendMessageRequest) Validate() error {
	if r == nil {
		return ErrMessageInvalid
	}
	if err := Validator().Struct(r); err != nil {
		return NewError(CodeMessageInvalid, fmt.Sprintf("invalid message payload: %v", err))
	}
	if r.File == nil && strings.TrimSpace(r.Content) == "" {
		return NewError(CodeMessageInvalid, "invalid message payload: empty content")
	}
	return nil
}
