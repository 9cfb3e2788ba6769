package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Spawner runs a background task. The router's Go satisfies it, which ties
// refreshes to the bridge's lifetime.
type Spawner func(name string, fn func(ctx context.Context) error)

// Loader caches values fetched from slow native collaborators. Concurrent
// misses for one key share a single fetch. A stale value is returned
// immediately while a background fetch refreshes it.
type Loader[T any] struct {
	entries *xsync.Map[string, entry[T]]
	group   singleflight.Group
	ttl     time.Duration
	spawn   Spawner
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a Loader whose stale refreshes run through spawn. A nil
// spawn runs them on plain goroutines.
func New[T any](ttl time.Duration, spawn Spawner, logger *slog.Logger) *Loader[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if spawn == nil {
		spawn = func(_ string, fn func(context.Context) error) {
			go func() { _ = fn(context.Background()) }()
		}
	}
	return &Loader[T]{
		entries: xsync.NewMap[string, entry[T]](),
		ttl:     ttl,
		spawn:   spawn,
		now:     time.Now,
		logger:  logger,
	}
}

func (l *Loader[T]) Get(
	ctx context.Context,
	key string,
	fetch func(context.Context) (T, error),
) (T, error) {
	e, ok := l.entries.Load(key)
	if ok {
		if l.now().Sub(e.fetchedAt) > l.ttl {
			l.spawn("refresh:"+key, func(ctx context.Context) error {
				_, err, _ := l.group.Do(key, func() (any, error) {
					return l.fetch(ctx, key, fetch)
				})
				if err != nil {
					l.logger.Warn("background refresh failed", "key", key, "err", err)
				}
				return nil
			})
		}
		return e.value, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if e, ok := l.entries.Load(key); ok {
			return e, nil
		}
		return l.fetch(ctx, key, fetch)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(entry[T]).value, nil
}

func (l *Loader[T]) fetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (entry[T], error) {
	res, err := fetch(ctx)
	if err != nil {
		return entry[T]{}, err
	}
	e := entry[T]{value: res, fetchedAt: l.now()}
	l.entries.Store(key, e)
	return e, nil
}

// Peek returns the cached value without fetching.
func (l *Loader[T]) Peek(key string) (T, bool) {
	e, ok := l.entries.Load(key)
	return e.value, ok
}

// Store replaces the cached value, e.g. when the native side pushes a
// refreshed token.
func (l *Loader[T]) Store(key string, v T) {
	l.entries.Store(key, entry[T]{value: v, fetchedAt: l.now()})
}
