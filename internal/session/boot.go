package session

import (
	"sync"
	"time"
)

// BootTimer bounds how long the bridge waits for the web content to report
// readiness after a page load starts.
type BootTimer struct {
	mu       sync.Mutex
	timeout  time.Duration
	timer    *time.Timer
	gen      uint64
	onExpire func()
}

func NewBootTimer(timeout time.Duration, onExpire func()) *BootTimer {
	return &BootTimer{timeout: timeout, onExpire: onExpire}
}

// Arm (re)starts the countdown. A timer from an earlier load is dropped.
func (b *BootTimer) Arm() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.timeout, func() {
		b.mu.Lock()
		current := b.gen == gen && b.timer != nil
		if current {
			b.timer = nil
		}
		b.mu.Unlock()
		if current {
			b.onExpire()
		}
	})
}

// Disarm cancels a pending countdown and reports whether one was armed.
func (b *BootTimer) Disarm() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer == nil {
		return false
	}
	b.timer.Stop()
	b.timer = nil
	b.gen++
	return true
}

func (b *BootTimer) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}
