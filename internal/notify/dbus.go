//go:build linux || freebsd || openbsd || netbsd || dragonfly

package notify

import (
	"fmt"
	"sync"

	"webshell/internal/logging"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest   = "org.freedesktop.Notifications"
	dbusPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	dbusMethod = "org.freedesktop.Notifications.Notify"
)

// DBus sends notifications through the freedesktop notification service on
// the session bus. The bus connection is opened lazily and reused.
type DBus struct {
	opts Options

	mu   sync.Mutex
	conn *dbus.Conn
	dial func() (*dbus.Conn, error)
}

// New returns the session bus notifier.
func New(opts Options) Notifier {
	return &DBus{opts: opts, dial: dbus.SessionBus}
}

// Notify implements Notifier.
func (d *DBus) Notify(title, body string) error {
	conn, err := d.connect()
	if err != nil {
		return err
	}
	obj := conn.Object(dbusDest, dbusPath)
	call := obj.Call(dbusMethod, 0,
		d.opts.AppName,
		uint32(0),
		d.opts.Icon,
		title,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("notify via %s: %w", dbusDest, call.Err)
	}
	var id uint32
	if err := call.Store(&id); err == nil {
		logging.Get(logging.CategoryNotify).Debug("notification %d shown: %q", id, title)
	}
	return nil
}

func (d *DBus) connect() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}
	conn, err := d.dial()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}
