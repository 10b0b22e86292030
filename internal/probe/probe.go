// Package probe checks outbound connectivity before the shell loads its
// target, and reports the outcome to the control loop as a bridge message.
package probe

import (
	"context"
	"fmt"
	"time"

	"webshell/internal/bridge"
	"webshell/internal/logging"

	"github.com/go-resty/resty/v2"
)

// OfflineDetail is shown in the page when the probe fails.
const OfflineDetail = "No Internet Connection"

// Config holds probe settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Prober performs a single connectivity check.
type Prober struct {
	client *resty.Client
	url    string
}

// New returns a prober with a client that never retries.
func New(cfg Config) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "webshell-probe").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Prober{client: client, url: cfg.URL}
}

// Check issues a HEAD request. Any response below 500 counts as online;
// a transport error or a server error does not.
func (p *Prober) Check(ctx context.Context) error {
	if p.url == "" {
		return fmt.Errorf("probe url is empty")
	}
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode())
	}
	return nil
}

// Run checks connectivity once and sends Navigate(target) on success or
// ConnectionError on failure.
func (p *Prober) Run(ctx context.Context, ch *bridge.Channel, target string) {
	log := logging.Get(logging.CategoryProbe)
	start := time.Now()
	if err := p.Check(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("offline after %v: %v", time.Since(start), err)
		ch.Send(bridge.ConnectionError{Detail: OfflineDetail})
		return
	}
	log.Debug("online (%v)", time.Since(start))
	ch.Send(bridge.Navigate{URL: target})
}
