// Package notify shows desktop notifications for messages posted by the page.
package notify

import (
	"errors"
)

// ErrUnsupported is returned by notifiers on platforms without a backend.
var ErrUnsupported = errors.New("desktop notifications not supported on this platform")

// Notifier displays a notification with a title and body.
type Notifier interface {
	Notify(title, body string) error
}

// Func adapts an ordinary function to Notifier.
type Func func(title, body string) error

// Notify implements Notifier.
func (f Func) Notify(title, body string) error {
	return f(title, body)
}

// Options configure the platform notifier.
type Options struct {
	AppName string
	Icon    string
}

type unsupported struct{}

func (unsupported) Notify(string, string) error {
	return ErrUnsupported
}
