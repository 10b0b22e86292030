package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieDomain(t *testing.T) {
	cases := map[string]string{
		"youtu.be":         ".youtu.be",
		"www.youtube.com":  ".youtube.com",
		"m.example.co.uk":  ".example.co.uk",
		"WWW.Example.COM.": ".example.com",
		"localhost":        "localhost",
		"127.0.0.1":        "127.0.0.1",
		"::1":              "::1",
		"":                 "",
	}
	for host, want := range cases {
		assert.Equal(t, want, cookieDomain(host), "host %q", host)
	}
}

func TestCookieParams(t *testing.T) {
	params, err := cookieParams("https://youtu.be/watch", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, "1", params[0].Value)
	assert.Equal(t, ".youtu.be", params[0].Domain)
	assert.Equal(t, "/", params[0].Path)
	assert.True(t, params[0].Secure)
	assert.Equal(t, "b", params[1].Name)

	params, err = cookieParams("http://localhost:8080/", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, "localhost", params[0].Domain)
	assert.False(t, params[0].Secure)

	_, err = cookieParams("not a url", map[string]string{"a": "1"})
	assert.Error(t, err)
}

func TestCookieHeader(t *testing.T) {
	cookies := []*proto.NetworkCookie{
		{Name: "b", Value: "2"},
		nil,
		{Name: "a", Value: "1"},
		{Name: "", Value: "x"},
		{Name: "empty", Value: ""},
	}
	assert.Equal(t, "a=1; b=2", cookieHeader(cookies))
	assert.Equal(t, "", cookieHeader(nil))
}

func TestLoadingPageURL(t *testing.T) {
	u := loadingPageURL(`<My "Shell">`)
	require.True(t, strings.HasPrefix(u, "data:text/html;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u, "data:text/html;base64,"))
	require.NoError(t, err)
	page := string(raw)
	assert.Contains(t, page, "<title>&lt;My &#34;Shell&#34;&gt;</title>")
	assert.NotContains(t, page, "{{TITLE}}")
}

func TestShimSource(t *testing.T) {
	src := shimSource(45 * time.Second)
	assert.Contains(t, src, `const binding = "`+BindingName+`"`)
	assert.Contains(t, src, "setInterval(countRows, 45000)")
	assert.Contains(t, src, "window.__shellDisplayError")
	assert.NotContains(t, src, "{{")
}

func TestConfigGetters(t *testing.T) {
	var c Config
	assert.Equal(t, 30*time.Second, c.GetNavigationTimeout())
	assert.Equal(t, 2*time.Second, c.GetLivenessInterval())
	assert.Equal(t, 30*time.Second, c.GetSubmissionPollEvery())
	assert.Equal(t, 1280, c.GetWidth())
	assert.Equal(t, 1024, c.GetHeight())
	assert.Equal(t, 5*time.Second, c.GetCloseTimeout())

	c = DefaultConfig()
	c.Width, c.Height = 800, 600
	assert.Equal(t, 800, c.GetWidth())
	assert.Equal(t, 600, c.GetHeight())
}

func TestSurface_NotStarted(t *testing.T) {
	s := New(DefaultConfig())
	assert.ErrorIs(t, s.Navigate(t.Context(), "https://youtu.be/"), ErrNotStarted)
	assert.ErrorIs(t, s.ShowError(t.Context(), "x"), ErrNotStarted)
	_, err := s.CookieHeader(t.Context())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, s.SeedCookies(t.Context(), "https://youtu.be/", map[string]string{"a": "1"}), ErrNotStarted)
	assert.NoError(t, s.SeedCookies(t.Context(), "https://youtu.be/", nil))
	assert.NoError(t, s.Shutdown())
}

func TestSurface_RequestCloseOnce(t *testing.T) {
	s := New(DefaultConfig())
	s.requestClose("first")
	s.requestClose("second")
	ev := <-s.Events()
	assert.Equal(t, "first", ev.Reason)
	select {
	case <-s.Events():
		t.Fatal("second close event delivered")
	default:
	}
}

func TestSurface_ShutdownClosesBeforeCancelling(t *testing.T) {
	s := New(DefaultConfig())
	runCtx, cancelRun := context.WithCancel(context.Background())

	var order []string
	killed := false
	s.cancel = func() {
		order = append(order, "cancel")
		cancelRun()
	}
	s.closeBrowser = func(ctx context.Context) error {
		order = append(order, "close")
		require.NoError(t, ctx.Err(), "close context already done")
		require.NoError(t, runCtx.Err(), "run context cancelled before close")
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}
	s.kill = func() { killed = true }

	require.NoError(t, s.Shutdown())
	assert.Equal(t, []string{"close", "cancel"}, order)
	assert.False(t, killed, "browser killed after a clean close")

	// Shutdown is idempotent once the browser is gone.
	require.NoError(t, s.Shutdown())
	assert.Len(t, order, 2)
}

func TestSurface_ShutdownKillsOnCloseFailure(t *testing.T) {
	s := New(DefaultConfig())
	cancelled, killed := false, false
	s.cancel = func() { cancelled = true }
	s.closeBrowser = func(context.Context) error { return errors.New("connection reset") }
	s.kill = func() { killed = true }

	err := s.Shutdown()
	assert.ErrorContains(t, err, "connection reset")
	assert.True(t, killed)
	assert.True(t, cancelled)
}
