// Package browser drives the Chromium app-mode window that hosts the web
// page. It installs the page-side IPC shim, forwards posted payloads to the
// bridge, and reports window closure as a host event.
package browser

import (
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"webshell/internal/bridge"
	"webshell/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// BindingName is the CDP binding the shim calls with raw payloads.
const BindingName = "__webshell_ipc"

var (
	//go:embed assets/loading.html
	loadingHTML string
	//go:embed assets/shim.js
	shimTemplate string
)

// ErrNotStarted is returned by page operations before Start succeeds.
var ErrNotStarted = errors.New("browser surface not started")

// Config holds browser window configuration.
type Config struct {
	Bin                 string
	Flags               []string
	Headless            bool
	UserDataDir         string
	Title               string
	Width               int
	Height              int
	Dark                bool
	Maximize            bool
	Hidden              bool
	NavigationTimeout   time.Duration
	LivenessInterval    time.Duration
	SubmissionPollEvery time.Duration
	CloseTimeout        time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Title:               "YouTube",
		Width:               1280,
		Height:              1024,
		Dark:                true,
		Maximize:            true,
		NavigationTimeout:   30 * time.Second,
		LivenessInterval:    2 * time.Second,
		SubmissionPollEvery: 30 * time.Second,
		CloseTimeout:        5 * time.Second,
	}
}

// GetNavigationTimeout returns the navigation timeout.
func (c Config) GetNavigationTimeout() time.Duration {
	if c.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return c.NavigationTimeout
}

// GetLivenessInterval returns how often the browser connection is checked.
func (c Config) GetLivenessInterval() time.Duration {
	if c.LivenessInterval <= 0 {
		return 2 * time.Second
	}
	return c.LivenessInterval
}

// GetSubmissionPollEvery returns the page-side submission poll interval.
func (c Config) GetSubmissionPollEvery() time.Duration {
	if c.SubmissionPollEvery <= 0 {
		return 30 * time.Second
	}
	return c.SubmissionPollEvery
}

// GetCloseTimeout bounds how long Shutdown waits for the browser to exit.
func (c Config) GetCloseTimeout() time.Duration {
	if c.CloseTimeout <= 0 {
		return 5 * time.Second
	}
	return c.CloseTimeout
}

// GetWidth returns the window width.
func (c Config) GetWidth() int {
	if c.Width <= 0 {
		return 1280
	}
	return c.Width
}

// GetHeight returns the window height.
func (c Config) GetHeight() int {
	if c.Height <= 0 {
		return 1024
	}
	return c.Height
}

// Surface owns the launched browser and its single app window.
type Surface struct {
	cfg       Config
	sessionID string
	log       *logging.Logger

	mu           sync.RWMutex
	browser      *rod.Browser
	page         *rod.Page
	cancel       context.CancelFunc
	closeBrowser func(ctx context.Context) error
	kill         func()
	wg           sync.WaitGroup

	events    chan bridge.HostEvent
	closeOnce sync.Once
}

// New creates a surface. Call Start to open the window.
func New(cfg Config) *Surface {
	id := uuid.NewString()
	return &Surface{
		cfg:       cfg,
		sessionID: id,
		log:       logging.Get(logging.CategoryBrowser).WithContext(map[string]interface{}{"session": id}),
		events:    make(chan bridge.HostEvent, 1),
	}
}

// Events delivers at most one CloseRequested event.
func (s *Surface) Events() <-chan bridge.HostEvent {
	return s.events
}

// Start launches Chromium in app mode, installs the IPC shim, and begins
// forwarding payloads posted by the page to ingress.
func (s *Surface) Start(ctx context.Context, ingress func(raw string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return nil
	}

	l := s.launcher()
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	browser := rod.New().ControlURL(controlURL).Context(runCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		l.Kill()
		return fmt.Errorf("connect to chromium: %w", err)
	}

	closeBrowser := func(ctx context.Context) error {
		return browser.Context(ctx).Close()
	}

	page, err := s.appPage(runCtx, browser)
	if err != nil {
		_ = s.stop(closeBrowser, l.Kill, cancel)
		return err
	}

	if err := installShim(page, shimSource(s.cfg.GetSubmissionPollEvery())); err != nil {
		_ = s.stop(closeBrowser, l.Kill, cancel)
		return err
	}

	s.browser = browser
	s.page = page
	s.cancel = cancel
	s.closeBrowser = closeBrowser
	s.kill = l.Kill

	s.watch(runCtx, browser, page, ingress)
	s.applyWindowState(browser, page)
	s.log.Info("window ready (target %s)", page.TargetID)
	return nil
}

func (s *Surface) launcher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.cfg.Headless).
		Delete("no-startup-window").
		Set("app", loadingPageURL(s.cfg.Title)).
		Set("window-size", strconv.Itoa(s.cfg.GetWidth())+","+strconv.Itoa(s.cfg.GetHeight()))
	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	if s.cfg.UserDataDir != "" {
		l = l.UserDataDir(s.cfg.UserDataDir)
	}
	if s.cfg.Dark {
		l = l.Set("force-dark-mode")
	}
	if s.cfg.Hidden {
		l = l.Set("start-minimized")
	}
	for _, rawFlag := range s.cfg.Flags {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// appPage waits for the window opened by --app, creating one if the
// browser never shows it.
func (s *Surface) appPage(ctx context.Context, browser *rod.Browser) (*rod.Page, error) {
	deadline := time.Now().Add(s.cfg.GetNavigationTimeout())
	for time.Now().Before(deadline) {
		pages, err := browser.Pages()
		if err == nil && len(pages) > 0 {
			return pages[0], nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	s.log.Warn("app window did not appear, opening a page")
	page, err := browser.Page(proto.TargetCreateTarget{URL: loadingPageURL(s.cfg.Title)})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

func installShim(page *rod.Page, src string) error {
	if err := (proto.RuntimeEnable{}).Call(page); err != nil {
		return fmt.Errorf("enable runtime: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(page); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(src); err != nil {
		return fmt.Errorf("install shim: %w", err)
	}
	// The current document predates the registration above.
	if _, err := (proto.RuntimeEvaluate{Expression: src}).Call(page); err != nil {
		return fmt.Errorf("install shim in current document: %w", err)
	}
	return nil
}

func (s *Surface) watch(ctx context.Context, browser *rod.Browser, page *rod.Page, ingress func(string)) {
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(browser); err != nil {
		s.log.Warn("target discovery unavailable: %v", err)
	}

	waitPage := page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		ingress(e.Payload)
	})
	waitBrowser := browser.Context(ctx).EachEvent(func(e *proto.TargetTargetDestroyed) {
		if e.TargetID == page.TargetID {
			s.requestClose("window destroyed")
		}
	})

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		waitPage()
	}()
	go func() {
		defer s.wg.Done()
		waitBrowser()
	}()
	go func() {
		defer s.wg.Done()
		s.liveness(ctx, browser)
	}()
}

func (s *Surface) liveness(ctx context.Context, browser *rod.Browser) {
	ticker := time.NewTicker(s.cfg.GetLivenessInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := browser.Version(); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.requestClose("browser unreachable: " + err.Error())
				return
			}
		}
	}
}

func (s *Surface) requestClose(reason string) {
	s.closeOnce.Do(func() {
		s.log.Info("close requested: %s", reason)
		s.events <- bridge.HostEvent{Kind: bridge.CloseRequested, Reason: reason}
	})
}

func (s *Surface) applyWindowState(browser *rod.Browser, page *rod.Page) {
	if s.cfg.Headless {
		return
	}
	state := proto.BrowserWindowStateNormal
	switch {
	case s.cfg.Hidden:
		state = proto.BrowserWindowStateMinimized
	case s.cfg.Maximize:
		state = proto.BrowserWindowStateMaximized
	}
	win, err := proto.BrowserGetWindowForTarget{TargetID: page.TargetID}.Call(browser)
	if err != nil {
		s.log.Warn("get window: %v", err)
		return
	}
	err = proto.BrowserSetWindowBounds{
		WindowID: win.WindowID,
		Bounds:   &proto.BrowserBounds{WindowState: state},
	}.Call(browser)
	if err != nil {
		s.log.Warn("set window state %s: %v", state, err)
	}
}

func (s *Surface) currentPage() (*rod.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return nil, ErrNotStarted
	}
	return s.page, nil
}

// Navigate loads target in the window.
func (s *Surface) Navigate(ctx context.Context, target string) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(s.cfg.GetNavigationTimeout()).Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return nil
}

// ShowError renders message in the page's error overlay. The message is
// passed as an argument, never spliced into script source.
func (s *Surface) ShowError(ctx context.Context, message string) error {
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	_, err = page.Context(ctx).Eval(`(m) => window.__shellDisplayError(m)`, message)
	if err != nil {
		return fmt.Errorf("display error: %w", err)
	}
	return nil
}

// SeedCookies installs stored entries as cookies for target's site.
func (s *Surface) SeedCookies(ctx context.Context, target string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	page, err := s.currentPage()
	if err != nil {
		return err
	}
	params, err := cookieParams(target, entries)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// CookieHeader returns the cookies visible to the current page as a
// Cookie header value.
func (s *Surface) CookieHeader(ctx context.Context) (string, error) {
	page, err := s.currentPage()
	if err != nil {
		return "", err
	}
	cookies, err := page.Context(ctx).Cookies(nil)
	if err != nil {
		return "", fmt.Errorf("read cookies: %w", err)
	}
	return cookieHeader(cookies), nil
}

// Shutdown asks the browser to exit, then stops the event goroutines and
// waits for them. The browser is killed only when it does not close cleanly.
func (s *Surface) Shutdown() error {
	s.mu.Lock()
	closeBrowser, kill, cancel := s.closeBrowser, s.kill, s.cancel
	s.browser, s.page, s.cancel, s.closeBrowser, s.kill = nil, nil, nil, nil, nil
	s.mu.Unlock()

	err := s.stop(closeBrowser, kill, cancel)
	s.wg.Wait()
	return err
}

// stop closes the browser on a context of its own, since the run context may
// already be cancelled, and only then cancels the run context.
func (s *Surface) stop(closeBrowser func(context.Context) error, kill func(), cancel context.CancelFunc) error {
	var err error
	if closeBrowser != nil {
		ctx, done := context.WithTimeout(context.Background(), s.cfg.GetCloseTimeout())
		err = closeBrowser(ctx)
		done()
		if err != nil {
			s.log.Warn("browser did not close cleanly, killing it: %v", err)
			if kill != nil {
				kill()
			}
		}
	}
	if cancel != nil {
		cancel()
	}
	return err
}

func loadingPageURL(title string) string {
	page := strings.ReplaceAll(loadingHTML, "{{TITLE}}", html.EscapeString(title))
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(page))
}

func shimSource(pollEvery time.Duration) string {
	return strings.NewReplacer(
		"{{BINDING}}", BindingName,
		"{{SUBMISSION_INTERVAL_MS}}", strconv.FormatInt(pollEvery.Milliseconds(), 10),
	).Replace(shimTemplate)
}

// cookieDomain returns the registrable domain for host with a leading dot,
// so seeded cookies apply to every subdomain of the site.
func cookieDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || host == "localhost" || strings.Trim(host, "0123456789.") == "" || strings.Contains(host, ":") {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return "." + etld1
}

func cookieParams(target string, entries map[string]string) ([]*proto.NetworkCookieParam, error) {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("cookie target %q has no host", target)
	}
	domain := cookieDomain(u.Hostname())
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]*proto.NetworkCookieParam, 0, len(names))
	for _, name := range names {
		params = append(params, &proto.NetworkCookieParam{
			Name:   name,
			Value:  entries[name],
			Domain: domain,
			Path:   "/",
			Secure: u.Scheme == "https",
		})
	}
	return params, nil
}

func cookieHeader(cookies []*proto.NetworkCookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" || c.Value == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
