package bridge

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDecode_Notification(t *testing.T) {
	m, ok := Decode(`{"notification":{"title":"T","message":"M"}}`)
	require.True(t, ok)
	assert.Equal(t, Notify{Title: "T", Body: "M"}, m)
	assert.Equal(t, KindNotify, m.Kind())
}

func TestDecode_ExtraFieldsIgnored(t *testing.T) {
	m, ok := Decode(`{"other":1,"notification":{"title":"","message":"body","icon":"x"}}`)
	require.True(t, ok)
	assert.Equal(t, Notify{Title: "", Body: "body"}, m)
}

func TestDecode_Rejects(t *testing.T) {
	inputs := map[string]string{
		"missing message":   `{"notification":{"title":"T"}}`,
		"missing title":     `{"notification":{"message":"M"}}`,
		"other family":      `{"other":1}`,
		"not json":          `not json`,
		"empty":             ``,
		"null":              `null`,
		"array":             `[{"notification":{"title":"T","message":"M"}}]`,
		"string top level":  `"notification"`,
		"null notification": `{"notification":null}`,
		"notification str":  `{"notification":"hi"}`,
		"numeric title":     `{"notification":{"title":1,"message":"M"}}`,
		"null message":      `{"notification":{"title":"T","message":null}}`,
		"object message":    `{"notification":{"title":"T","message":{}}}`,
		"trailing garbage":  `{"notification":{"title":"T","message":"M"}} x`,
		"navigate attempt":  `{"navigate":{"url":"https://evil.example"}}`,
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			m, ok := Decode(raw)
			assert.False(t, ok)
			assert.Nil(t, m)
		})
	}
}

func TestDecode_Oversized(t *testing.T) {
	body := strings.Repeat("a", MaxPayloadBytes)
	_, ok := Decode(`{"notification":{"title":"T","message":"` + body + `"}}`)
	assert.False(t, ok)
}

func TestDecode_ArbitraryBytesNeverPanic(t *testing.T) {
	seeds := []string{
		"\x00\xff\xfe", "{", "}", "{\"notification\":", "\"\\u", "[[[[[[", "{\"notification\":{\"title\":\"\xff\",\"message\":\"\"}}",
	}
	for _, s := range seeds {
		assert.NotPanics(t, func() { Decode(s) })
	}
	for i := 0; i < 256; i++ {
		b := make([]byte, i%17)
		for j := range b {
			b[j] = byte((i*31 + j*7) % 256)
		}
		raw := string(b)
		assert.NotPanics(t, func() { Decode(raw) })
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(`{"notification":{"title":"T","message":"M"}}`)
	f.Add(`{"other":1}`)
	f.Add(`not json`)
	f.Fuzz(func(t *testing.T, raw string) {
		m, ok := Decode(raw)
		if ok != (m != nil) {
			t.Fatalf("ok=%v but message=%v", ok, m)
		}
	})
}

func TestChannel_Order(t *testing.T) {
	ch := NewChannel()
	a := Navigate{URL: "https://a.example"}
	b := ConnectionError{Detail: "b"}
	ch.Send(a)
	ch.Send(b)

	got, ok := ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, a, got)
	got, ok = ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, b, got)

	_, ok = ch.TryReceive()
	assert.False(t, ok)
}

func TestChannel_EmptyDoesNotBlock(t *testing.T) {
	ch := NewChannel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m, ok := ch.TryReceive()
		assert.False(t, ok)
		assert.Nil(t, m)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryReceive blocked on an empty channel")
	}
}

func TestChannel_ReadySignal(t *testing.T) {
	ch := NewChannel()
	select {
	case <-ch.Ready():
		t.Fatal("ready before any send")
	default:
	}

	ch.Send(Notify{Title: "1"})
	ch.Send(Notify{Title: "2"})

	select {
	case <-ch.Ready():
	case <-time.After(time.Second):
		t.Fatal("no ready signal after send")
	}
	assert.Equal(t, 2, ch.Len())
}

func TestChannel_ConcurrentSendersKeepPerSenderOrder(t *testing.T) {
	const senders, perSender = 8, 200
	ch := NewChannel()

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				ch.Send(Notify{Title: string(rune('a' + s)), Body: strings.Repeat("x", i)})
			}
		}(s)
	}
	wg.Wait()

	last := make(map[string]int)
	count := 0
	for {
		m, ok := ch.TryReceive()
		if !ok {
			break
		}
		n := m.(Notify)
		prev, seen := last[n.Title]
		if seen {
			require.Greater(t, len(n.Body), prev, "sender %s delivered out of order", n.Title)
		}
		last[n.Title] = len(n.Body)
		count++
	}
	assert.Equal(t, senders*perSender, count)
}

func TestChannel_CloseDiscards(t *testing.T) {
	ch := NewChannel()
	ch.Send(Notify{Title: "pending"})
	ch.Send(Notify{Title: "pending 2"})

	assert.Equal(t, 2, ch.Close())
	assert.Equal(t, 0, ch.Close())

	assert.NotPanics(t, func() { ch.Send(Notify{Title: "late"}) })
	_, ok := ch.TryReceive()
	assert.False(t, ok)
}

func TestChannel_NilIgnored(t *testing.T) {
	ch := NewChannel()
	ch.Send(nil)
	assert.Equal(t, 0, ch.Len())
}

func TestIngress(t *testing.T) {
	ch := NewChannel()
	post := Ingress(ch)

	post(`garbage`)
	post(`{"notification":{"title":"New Submission","message":"2 new submission(s) received!"}}`)
	post(`{"notification":{"title":"only"}}`)

	require.Equal(t, 1, ch.Len())
	m, ok := ch.TryReceive()
	require.True(t, ok)
	assert.Equal(t, Notify{Title: "New Submission", Body: "2 new submission(s) received!"}, m)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "navigate", KindNavigate.String())
	assert.Equal(t, "connection_error", KindConnectionError.String())
	assert.Equal(t, "notify", KindNotify.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
