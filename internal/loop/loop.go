// Package loop implements the control loop: the single owner of the window
// surface and the key/value store, which drains page messages from the
// bridge channel and dispatches them in arrival order.
package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"webshell/internal/bridge"
	"webshell/internal/logging"
	"webshell/internal/notify"
	"webshell/internal/startup"
	"webshell/internal/store"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateRunning State = iota
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Surface is the window the loop drives.
type Surface interface {
	Navigate(ctx context.Context, target string) error
	ShowError(ctx context.Context, message string) error
	SeedCookies(ctx context.Context, target string, entries map[string]string) error
	CookieHeader(ctx context.Context) (string, error)
	Events() <-chan bridge.HostEvent
}

// Config holds loop settings.
type Config struct {
	InitialTarget       string
	ExePath             string
	MarkerFlag          string
	RegistrationEnabled bool
	RecheckInterval     time.Duration
	SyncInterval        time.Duration
	CloseTimeout        time.Duration
}

// Deps are the collaborators owned or used by the loop. Registrar and Watch
// may be nil.
type Deps struct {
	Channel   *bridge.Channel
	Store     *store.Store
	Surface   Surface
	Notifier  notify.Notifier
	Registrar startup.Registrar
	Watch     <-chan struct{}
}

// ErrAlreadyRun is returned when Run is called on a loop that has started.
var ErrAlreadyRun = errors.New("control loop already ran")

// Loop dispatches bridge messages to the surface and notifier.
type Loop struct {
	cfg        Config
	deps       Deps
	state      atomic.Int32
	started    atomic.Bool
	lastHeader string
	log        *logging.Logger
}

// New creates a loop in the Running state.
func New(cfg Config, deps Deps) *Loop {
	return &Loop{
		cfg:  cfg,
		deps: deps,
		log:  logging.Get(logging.CategoryLoop),
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run blocks until the window closes or ctx is cancelled, then syncs
// cookies, closes the channel and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	l.seedCookies(ctx)
	l.ensureRegistered("start")

	var recheckC, syncC <-chan time.Time
	if l.registrationEnabled() && l.cfg.RecheckInterval > 0 {
		t := time.NewTicker(l.cfg.RecheckInterval)
		defer t.Stop()
		recheckC = t.C
	}
	if l.cfg.SyncInterval > 0 {
		t := time.NewTicker(l.cfg.SyncInterval)
		defer t.Stop()
		syncC = t.C
	}
	watch := l.deps.Watch
	if !l.registrationEnabled() {
		watch = nil
	}
	events := l.deps.Surface.Events()

	for {
		select {
		case <-ctx.Done():
			return l.terminate(ctx, "context cancelled")
		case ev, ok := <-events:
			if !ok {
				return l.terminate(ctx, "surface event stream ended")
			}
			if ev.Kind == bridge.CloseRequested {
				return l.terminate(ctx, ev.Reason)
			}
		case <-l.deps.Channel.Ready():
		case <-recheckC:
			l.ensureRegistered("recheck")
		case <-watch:
			l.ensureRegistered("record changed")
		case <-syncC:
			l.syncCookies(ctx)
		}
		l.drain(ctx)
	}
}

func (l *Loop) registrationEnabled() bool {
	return l.cfg.RegistrationEnabled && l.deps.Registrar != nil
}

// drain dispatches every pending message, each to completion, in order.
func (l *Loop) drain(ctx context.Context) {
	for {
		m, ok := l.deps.Channel.TryReceive()
		if !ok {
			return
		}
		l.dispatch(ctx, m)
	}
}

func (l *Loop) dispatch(ctx context.Context, m bridge.Message) {
	switch msg := m.(type) {
	case bridge.Navigate:
		l.log.Debug("navigate %s", msg.URL)
		if err := l.deps.Surface.Navigate(ctx, msg.URL); err != nil {
			l.log.Error("navigation error: %v", err)
		}
	case bridge.ConnectionError:
		if err := l.deps.Surface.ShowError(ctx, msg.Detail); err != nil {
			l.log.Error("error display failed: %v", err)
		}
	case bridge.Notify:
		if err := l.deps.Notifier.Notify(msg.Title, msg.Body); err != nil {
			l.log.Warn("failed to show notification: %v", err)
		}
	default:
		l.log.Warn("unhandled message %s", m.Kind())
	}
}

func (l *Loop) ensureRegistered(trigger string) {
	if !l.registrationEnabled() {
		return
	}
	if err := l.deps.Registrar.EnsureRegistered(l.cfg.ExePath, l.cfg.MarkerFlag); err != nil {
		l.log.Warn("run-at-login registration (%s) failed: %v", trigger, err)
	}
}

func (l *Loop) seedCookies(ctx context.Context) {
	if l.deps.Store == nil || l.deps.Store.Len() == 0 {
		return
	}
	if err := l.deps.Surface.SeedCookies(ctx, l.cfg.InitialTarget, l.deps.Store.Entries()); err != nil {
		l.log.Warn("seed cookies: %v", err)
		return
	}
	l.log.Debug("seeded %d cookies for %s", l.deps.Store.Len(), l.cfg.InitialTarget)
}

func (l *Loop) syncCookies(ctx context.Context) {
	if l.deps.Store == nil {
		return
	}
	header, err := l.deps.Surface.CookieHeader(ctx)
	if err != nil {
		l.log.Debug("read cookies: %v", err)
		return
	}
	if header == "" || header == l.lastHeader {
		return
	}
	if err := l.deps.Store.MergeFromHeader(header); err != nil {
		l.log.Warn("persist cookies: %v", err)
		return
	}
	l.lastHeader = header
}

func (l *Loop) terminate(ctx context.Context, reason string) error {
	l.state.Store(int32(StateClosing))
	l.log.Info("closing: %s", reason)

	timeout := l.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	l.syncCookies(closeCtx)
	cancel()

	if dropped := l.deps.Channel.Close(); dropped > 0 {
		l.log.Info("discarded %d pending messages", dropped)
	}
	l.state.Store(int32(StateTerminated))
	return nil
}
