package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"webshell/internal/bridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_OnlineNavigates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := bridge.NewChannel()
	New(Config{URL: srv.URL, Timeout: time.Second}).Run(context.Background(), ch, "https://youtu.be/")

	m, ok := ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, bridge.Navigate{URL: "https://youtu.be/"}, m)
}

func TestRun_ServerErrorReportsOffline(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := bridge.NewChannel()
	New(Config{URL: srv.URL, Timeout: time.Second}).Run(context.Background(), ch, "https://youtu.be/")

	m, ok := ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, bridge.ConnectionError{Detail: OfflineDetail}, m)
	assert.Equal(t, int32(1), hits.Load(), "probe must not retry")
}

func TestRun_UnreachableReportsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch := bridge.NewChannel()
	New(Config{URL: url, Timeout: time.Second}).Run(context.Background(), ch, "https://youtu.be/")

	m, ok := ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, bridge.KindConnectionError, m.Kind())
}

func TestRun_ClientErrorCountsAsOnline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	assert.NoError(t, New(Config{URL: srv.URL}).Check(context.Background()))
}

func TestRun_CancelledSendsNothing(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := bridge.NewChannel()
	New(Config{URL: srv.URL, Timeout: time.Second}).Run(ctx, ch, "https://youtu.be/")
	assert.Equal(t, 0, ch.Len())
}

func TestCheck_EmptyURL(t *testing.T) {
	assert.Error(t, New(Config{}).Check(context.Background()))
}
