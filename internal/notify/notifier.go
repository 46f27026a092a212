// Package notify delivers verification codes and issue updates to reporters.
package notify

import (
	"context"
	"errors"
)

// ErrInvalidDestination is returned when a destination address is empty.
var ErrInvalidDestination = errors.New("notify: empty destination")

// Notifier delivers a message synchronously. A nil error means the
// message was handed to the transport.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, to, subject, body string) error

func (f NotifierFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}
