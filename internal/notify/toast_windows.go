//go:build windows

package notify

import (
	"fmt"
	"path/filepath"

	"github.com/go-toast/toast"
)

// Toast shows Windows toast notifications through the Action Center.
type Toast struct {
	opts Options
	push func(n *toast.Notification) error
}

// New returns the Windows toast notifier.
func New(opts Options) Notifier {
	return &Toast{opts: opts, push: (*toast.Notification).Push}
}

// Notify implements Notifier.
func (t *Toast) Notify(title, body string) error {
	if err := t.push(t.notification(title, body)); err != nil {
		return fmt.Errorf("push toast: %w", err)
	}
	return nil
}

func (t *Toast) notification(title, body string) *toast.Notification {
	n := &toast.Notification{
		AppID:   t.opts.AppName,
		Title:   title,
		Message: body,
	}
	// Toasts only accept an image file; a bare icon name is ignored.
	if filepath.IsAbs(t.opts.Icon) {
		n.Icon = t.opts.Icon
	}
	return n
}
