package bridge

import (
	"sync"

	"webshell/internal/logging"
)

// Channel is an unbounded FIFO queue with any number of senders and a single
// receiver. Send never blocks; the receiver polls with TryReceive and may wait
// on Ready between polls.
type Channel struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
	ready  chan struct{}
}

// NewChannel returns an open, empty channel.
func NewChannel() *Channel {
	return &Channel{ready: make(chan struct{}, 1)}
}

// Send enqueues m. It never blocks and never fails: after Close the message
// is logged and discarded so a page-side producer is not disturbed by host
// shutdown.
func (c *Channel) Send(m Message) {
	if m == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		logging.Get(logging.CategoryBridge).Debug("receiver gone, dropping %s message", m.Kind())
		return
	}
	c.queue = append(c.queue, m)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// TryReceive returns the oldest pending message without blocking.
func (c *Channel) TryReceive() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	m := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		// Drop the consumed prefix so the backing array does not grow forever.
		c.queue = nil
	}
	return m, true
}

// Ready is signalled at least once after each Send. A receiver should drain
// with TryReceive after every wake-up; a signal may cover several messages.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Len returns the number of pending messages.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close stops accepting messages and discards the pending ones, returning
// how many were dropped. Close is idempotent.
func (c *Channel) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	c.closed = true
	dropped := len(c.queue)
	c.queue = nil
	return dropped
}

// Ingress returns the producer-side entry point for raw page payloads:
// each payload is decoded and, when recognized, sent on ch. Rejected payloads
// are dropped.
func Ingress(ch *Channel) func(raw string) {
	log := logging.Get(logging.CategoryBridge)
	return func(raw string) {
		m, ok := Decode(raw)
		if !ok {
			log.Debug("rejected page payload (%d bytes)", len(raw))
			return
		}
		ch.Send(m)
	}
}
