package bridge

import (
	"errors"
	"sync"
)

var ErrNotRegistered = errors.New("bridge: no NativeBridge registered")

var (
	mu       sync.RWMutex
	global   NativeBridge
	location NativeLocation
)

// Register is called once from native (Swift/Kotlin) before Start().
func Register(b NativeBridge) {
	mu.Lock()
	global = b
	mu.Unlock()
}

func RegisterLocation(l NativeLocation) {
	mu.Lock()
	location = l
	mu.Unlock()
}

// Safe returns the bridge and an error instead of panicking.
func Safe() (NativeBridge, error) {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return nil, ErrNotRegistered
	}
	return global, nil
}

// Location returns the registered location module, or nil.
func Location() NativeLocation {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Reset forgets every registration. Stop uses it so a relaunched host
// starts clean.
func Reset() {
	mu.Lock()
	global, location = nil, nil
	mu.Unlock()
}
