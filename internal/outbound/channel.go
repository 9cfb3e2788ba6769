package outbound

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wizmarket/wizapp/internal/protocol"
)

var ErrNoPoster = errors.New("outbound: no poster attached")

// Poster hands an encoded envelope to the embedded web content, either by
// script injection or a postMessage primitive.
type Poster interface {
	PostMessage(msg string) error
}

type PosterFunc func(msg string) error

func (f PosterFunc) PostMessage(msg string) error { return f(msg) }

// Sender is what handlers depend on.
type Sender interface {
	Send(msgType string, payload any)
}

// Channel delivers Native→Web events. Sends are serialised, so the events a
// single caller emits reach the poster in program order.
type Channel struct {
	mu     sync.Mutex
	poster Poster
	logger *slog.Logger

	sent   atomic.Int64
	failed atomic.Int64
}

var _ Sender = (*Channel)(nil)

func New(poster Poster, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Channel{poster: poster, logger: logger}
}

// Attach swaps the poster, e.g. when a dev bridge client reconnects.
func (c *Channel) Attach(p Poster) {
	c.mu.Lock()
	c.poster = p
	c.mu.Unlock()
}

// Send encodes and posts one event. Failures are logged and swallowed;
// a broken channel degrades to dropping events.
func (c *Channel) Send(msgType string, payload any) {
	raw, err := protocol.Encode(msgType, payload)
	if err != nil {
		c.failed.Add(1)
		c.logger.Error("outbound encode failed", "type", msgType, "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.failed.Add(1)
			c.logger.Error("outbound post panicked", "type", msgType, "panic", r)
		}
	}()

	if c.poster == nil {
		c.failed.Add(1)
		c.logger.Warn("outbound dropped", "type", msgType, "err", ErrNoPoster)
		return
	}
	if err := c.poster.PostMessage(raw); err != nil {
		c.failed.Add(1)
		c.logger.Error("outbound post failed", "type", msgType, "err", err)
		return
	}
	c.sent.Add(1)
	c.logger.Debug("to web", "type", msgType)
}

// Stats reports delivered and failed sends since creation.
func (c *Channel) Stats() (sent, failed int64) {
	return c.sent.Load(), c.failed.Load()
}
