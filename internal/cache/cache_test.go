package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_SharesConcurrentFetch(t *testing.T) {
	l := New[string](time.Minute, nil, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "tok", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Go(func() {
			v, err := l.Get(context.Background(), "push", fetch)
			assert.NoError(t, err)
			results[i] = v
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "tok", v)
	}
}

func TestLoader_ErrorNotCached(t *testing.T) {
	l := New[string](time.Minute, nil, nil)

	_, err := l.Get(context.Background(), "push", func(context.Context) (string, error) {
		return "", errors.New("no token yet")
	})
	require.Error(t, err)

	_, ok := l.Peek("push")
	assert.False(t, ok)

	v, err := l.Get(context.Background(), "push", func(context.Context) (string, error) {
		return "tok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestLoader_StaleRefreshesInBackground(t *testing.T) {
	l := New[string](time.Second, nil, nil)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	l.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	l.Store("push", "old")
	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	v, err := l.Get(context.Background(), "push", func(context.Context) (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v, "stale value served immediately")

	require.Eventually(t, func() bool {
		v, _ := l.Peek("push")
		return v == "new"
	}, time.Second, 5*time.Millisecond)
}

func TestLoader_RefreshRunsThroughSpawner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		names []string
	)
	spawn := func(name string, fn func(context.Context) error) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		wg.Go(func() { _ = fn(ctx) })
	}

	l := New[string](time.Second, spawn, nil)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Store("push", "old")
	now = now.Add(2 * time.Second)

	started := make(chan struct{})
	v, err := l.Get(context.Background(), "push", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	<-started
	cancel()
	wg.Wait()

	assert.Equal(t, []string{"refresh:push"}, names)
	got, _ := l.Peek("push")
	assert.Equal(t, "old", got, "a cancelled refresh keeps the cached value")
}
