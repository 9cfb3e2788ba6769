// Package app assembles one bridge session from configuration and the
// host's platform collaborators. Both the gomobile entry and the desktop
// shell drive the bridge through App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/wizmarket/wizapp/internal/auth"
	"github.com/wizmarket/wizapp/internal/config"
	"github.com/wizmarket/wizapp/internal/handlers"
	"github.com/wizmarket/wizapp/internal/installation"
	"github.com/wizmarket/wizapp/internal/media"
	"github.com/wizmarket/wizapp/internal/outbound"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/purchase"
	"github.com/wizmarket/wizapp/internal/router"
	"github.com/wizmarket/wizapp/internal/session"
	"github.com/wizmarket/wizapp/internal/share"
	"github.com/wizmarket/wizapp/internal/store"
)

// Collaborators are the native capabilities a host provides. Nil fields
// fall back to platform.Unsupported; Location stays optional.
type Collaborators struct {
	URLs          platform.URLOpener
	Settings      platform.SettingsOpener
	Lifecycle     platform.Lifecycle
	Dialogs       platform.Dialogs
	Notifications platform.Notifications
	Location      platform.Location
	Push          platform.PushService
	Billing       platform.Billing
	Sharer        platform.Sharer
	Clipboard     platform.Clipboard
	Gallery       platform.Gallery
	Auth          map[string]auth.Variant
}

type App struct {
	store    *store.Store
	out      *outbound.Channel
	sess     *session.Session
	handlers *handlers.Handler
	router   *router.Router
	logger   *slog.Logger
}

func New(cfg *config.Config, info platform.Info, c Collaborators, poster outbound.Poster, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if info.AppVersion == "" {
		info.AppVersion = cfg.AppVersion
	}
	if info.CacheDir == "" {
		info.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	if err := os.MkdirAll(info.CacheDir, 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "store"), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	out := outbound.New(poster, logger)
	purchases := purchase.NewService(purchase.Options{
		Guard: purchase.NewGuard(purchase.GuardOptions{
			Debounce:       cfg.PurchaseDebounce.Std(),
			PendingTimeout: cfg.PendingTimeout.Std(),
		}),
		Ledger:  purchase.NewLedger(st, logger),
		Billing: c.Billing,
		Out:     out,
		Dialogs: c.Dialogs,
		Logger:  logger,
	})
	r := router.New(logger)
	sess := session.New(session.Options{
		Info:         info,
		Out:          out,
		Purchases:    purchases,
		Installation: installation.New(st, logger),
		Push:         c.Push,
		BootTimeout:  cfg.BootTimeout.Std(),
		Spawn:        r.Go,
		Logger:       logger,
	})

	fetcher := media.NewFetcher(info.CacheDir, nil, logger)
	h := handlers.New(sess, handlers.Deps{
		URLs:          c.URLs,
		Settings:      c.Settings,
		Lifecycle:     c.Lifecycle,
		Dialogs:       c.Dialogs,
		Notifications: c.Notifications,
		Location:      c.Location,
		Gallery:       c.Gallery,
		Auth:          auth.NewService(c.Auth, logger),
		Share: share.NewRunner(share.Options{
			Sharer:    c.Sharer,
			Clipboard: c.Clipboard,
			Fetcher:   fetcher,
			Out:       out,
			Logger:    logger,
		}),
		Fetcher: fetcher,
	}, logger)

	h.Register(r)

	logger.Info("bridge ready", "os", info.OS, "app_version", info.AppVersion, "types", len(r.Types()))
	return &App{store: st, out: out, sess: sess, handlers: h, router: r, logger: logger}, nil
}

// Start warms the installation id and push token, then announces the
// token to the web. It does not block.
func (a *App) Start() {
	a.router.Go("startup", func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.sess.InstallID()
			return nil
		})
		g.Go(func() error {
			a.handlers.EmitPushToken(ctx)
			return nil
		})
		return g.Wait()
	})
}

// Attach swaps the poster events are delivered to.
func (a *App) Attach(p outbound.Poster) { a.out.Attach(p) }

// OnMessage receives one raw Web→Native string. Messages are handled in
// the order they arrive.
func (a *App) OnMessage(raw string) { a.router.Dispatch(raw) }

// OnLoadStart is called when the web view starts loading a page.
func (a *App) OnLoadStart() {
	a.router.Post("load_start", func(context.Context) error {
		a.handlers.LoadStarted()
		return nil
	})
}

// OnBackPressed handles the hardware back key. The back action is always
// consumed. The decision is queued behind every message already received,
// so it sees the latest NAV_STATE.
func (a *App) OnBackPressed() {
	a.router.Post("back_pressed", func(context.Context) error {
		a.handlers.BeginBack()
		return nil
	})
}

func (a *App) OnPurchaseUpdated(p platform.Purchase) {
	a.router.Go("purchase_updated", func(ctx context.Context) error {
		a.sess.Purchases.HandleUpdate(ctx, p)
		return nil
	})
}

func (a *App) OnPurchaseError(err error) {
	a.router.Go("purchase_error", func(ctx context.Context) error {
		a.sess.Purchases.HandleError(ctx, err)
		return nil
	})
}

func (a *App) OnPushReceived(n platform.PushNotification) { a.handlers.PushReceived(n) }

func (a *App) OnPushOpened(n platform.PushNotification) { a.handlers.PushOpened(n) }

func (a *App) OnTokenRefreshed(token string) { a.handlers.TokenRefreshed(token) }

// Wait blocks until every dispatched message and callback has finished.
func (a *App) Wait() { a.router.Wait() }

func (a *App) Close() error {
	a.router.Close()
	a.sess.Close()
	sent, failed := a.out.Stats()
	a.logger.Info("bridge closed", "sent", sent, "failed", failed)
	return a.store.Close()
}
