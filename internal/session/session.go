// Package session holds the per-bridge state every handler shares: the
// outbound channel, navigation tracker, purchase service, boot timer and
// the identifiers attached to push events.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/wizmarket/wizapp/internal/cache"
	"github.com/wizmarket/wizapp/internal/installation"
	"github.com/wizmarket/wizapp/internal/navigation"
	"github.com/wizmarket/wizapp/internal/outbound"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
	"github.com/wizmarket/wizapp/internal/purchase"
)

const (
	DefaultBootTimeout = 8 * time.Second
	pushTokenKey       = "push"
	pushTokenTTL       = 30 * time.Minute
	unknownInstallID   = "unknown"
)

type Options struct {
	Info         platform.Info
	Out          outbound.Sender
	Purchases    *purchase.Service
	Installation *installation.Provider
	Push         platform.PushService
	BootTimeout  time.Duration
	// Spawn runs background refreshes; see cache.Spawner.
	Spawn        cache.Spawner
	Now          func() time.Time
	Logger       *slog.Logger
}

type Session struct {
	Info      platform.Info
	Out       outbound.Sender
	Nav       *navigation.Tracker
	Purchases *purchase.Service
	Boot      *BootTimer
	Logger    *slog.Logger

	install    *installation.Provider
	push       platform.PushService
	pushTokens *cache.Loader[string]
	now        func() time.Time
}

type OfflineFallback struct {
	Reason string `json:"reason"`
	At     int64  `json:"at"`
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BootTimeout <= 0 {
		opts.BootTimeout = DefaultBootTimeout
	}
	if opts.Push == nil {
		opts.Push = platform.Unsupported{}
	}
	if opts.Installation == nil {
		opts.Installation = installation.New(nil, opts.Logger)
	}
	if opts.Purchases == nil {
		opts.Purchases = purchase.NewService(purchase.Options{Out: opts.Out, Logger: opts.Logger})
	}

	s := &Session{
		Info:       opts.Info,
		Out:        opts.Out,
		Nav:        navigation.NewTracker(),
		Purchases:  opts.Purchases,
		Logger:     opts.Logger,
		install:    opts.Installation,
		push:       opts.Push,
		pushTokens: cache.New[string](pushTokenTTL, opts.Spawn, opts.Logger),
		now:        opts.Now,
	}
	s.Boot = NewBootTimer(opts.BootTimeout, func() {
		s.Logger.Warn("web content did not signal readiness", "timeout", opts.BootTimeout)
		s.Out.Send(protocol.EventOfflineFallback, OfflineFallback{Reason: "timeout", At: s.Now()})
	})
	return s
}

// Now returns the event timestamp in unix milliseconds.
func (s *Session) Now() int64 {
	return s.now().UnixMilli()
}

// InstallID returns the installation identifier, or "unknown" if it could
// not be created.
func (s *Session) InstallID() string {
	id, err := s.install.ID()
	if err != nil {
		s.Logger.Error("installation id unavailable", "err", err)
		return unknownInstallID
	}
	return id
}

// PushToken returns the device push token, fetching it on first use.
func (s *Session) PushToken(ctx context.Context) (string, error) {
	return s.pushTokens.Get(ctx, pushTokenKey, s.push.Token)
}

// CachedPushToken returns the last known token without touching the SDK.
func (s *Session) CachedPushToken() string {
	tok, _ := s.pushTokens.Peek(pushTokenKey)
	return tok
}

// SetPushToken records a token the push SDK rotated.
func (s *Session) SetPushToken(token string) {
	s.pushTokens.Store(pushTokenKey, token)
}

func (s *Session) Close() {
	s.Boot.Disarm()
}
