package store

import (
	"context"

	"github.com/mbeoliero/kit/log"
)

// Notifier shows store failures to the user, e.g. as a toast
type Notifier interface {
	Notify(ctx context.Context, action string, err error)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, action string, err error)

func (f NotifierFunc) Notify(ctx context.Context, action string, err error) {
	f(ctx, action, err)
}

// LogNotifier writes failures to the log
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, action string, err error) {
	log.CtxError(ctx, "%s failed: %v", action, err)
}
