package handlers

import (
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wizmarket/wizapp/internal/auth"
	"github.com/wizmarket/wizapp/internal/media"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/protocol"
	"github.com/wizmarket/wizapp/internal/router"
	"github.com/wizmarket/wizapp/internal/session"
	"github.com/wizmarket/wizapp/internal/share"
)

const pushDedupeSize = 256

// Deps are the platform collaborators handlers call. Nil fields are
// replaced by platform.Unsupported, except Location which is optional.
type Deps struct {
	URLs          platform.URLOpener
	Settings      platform.SettingsOpener
	Lifecycle     platform.Lifecycle
	Dialogs       platform.Dialogs
	Notifications platform.Notifications
	Location      platform.Location
	Gallery       platform.Gallery
	Auth          *auth.Service
	Share         *share.Runner
	Fetcher       *media.Fetcher
}

type Handler struct {
	sess          *session.Session
	urls          platform.URLOpener
	settings      platform.SettingsOpener
	lifecycle     platform.Lifecycle
	dialogs       platform.Dialogs
	notifications platform.Notifications
	location      platform.Location
	gallery       platform.Gallery
	auth          *auth.Service
	share         *share.Runner
	fetcher       *media.Fetcher

	// spawn runs collaborator work off the inbound loop.
	spawn func(name string, fn func(ctx context.Context) error)

	pushSeen *lru.Cache[string, struct{}]
	logger   *slog.Logger
}

func New(sess *session.Session, deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var none platform.Unsupported
	h := &Handler{
		sess:          sess,
		urls:          deps.URLs,
		settings:      deps.Settings,
		lifecycle:     deps.Lifecycle,
		dialogs:       deps.Dialogs,
		notifications: deps.Notifications,
		location:      deps.Location,
		gallery:       deps.Gallery,
		auth:          deps.Auth,
		share:         deps.Share,
		fetcher:       deps.Fetcher,
		logger:        logger,
	}
	if h.urls == nil {
		h.urls = none
	}
	if h.settings == nil {
		h.settings = none
	}
	if h.lifecycle == nil {
		h.lifecycle = none
	}
	if h.dialogs == nil {
		h.dialogs = none
	}
	if h.notifications == nil {
		h.notifications = none
	}
	if h.gallery == nil {
		h.gallery = none
	}
	if h.auth == nil {
		h.auth = auth.NewService(nil, logger)
	}
	if h.fetcher == nil {
		h.fetcher = media.NewFetcher(sess.Info.CacheDir, nil, logger)
	}
	if h.share == nil {
		h.share = share.NewRunner(share.Options{Fetcher: h.fetcher, Out: sess.Out, Logger: logger})
	}
	h.pushSeen, _ = lru.New[string, struct{}](pushDedupeSize)
	h.spawn = func(name string, fn func(ctx context.Context) error) {
		if err := fn(context.Background()); err != nil {
			h.logger.Error("task failed", "task", name, "err", err)
		}
	}
	return h
}

// Register binds every inbound message type to its handler. Handlers that
// change navigation, lifecycle or purchase-guard state run on the router's
// ordered loop; the rest only wait on collaborators and run async.
func (h *Handler) Register(r *router.Router) {
	h.spawn = r.Go
	r.HandleOpen(h.handleOpenURL)

	r.Handle(protocol.TypeWebReady, h.handleWebReady)
	r.Handle(protocol.TypeWebError, h.handleWebError)
	r.Handle(protocol.TypeExitApp, h.handleExitApp)
	r.HandleAsync(protocol.TypeOpenSettings, h.handleOpenSettings)

	r.HandleAsync(protocol.TypeCheckPermission, h.handleCheckPermission)
	r.HandleAsync(protocol.TypeRequestPermission, h.handleRequestPermission)
	r.HandleAsync(protocol.TypeGetPushToken, h.handleGetPushToken)
	r.HandleAsync(protocol.TypeGetInstallationID, h.handleGetInstallationID)

	r.HandleAsync(protocol.TypeStartSignin, h.handleStartSignin)
	r.HandleAsync(protocol.TypeStartSignout, h.handleStartSignout)

	r.Handle(protocol.TypeStartSubscription, h.handleStartSubscription)
	r.Handle(protocol.TypeStartOneTimePurchase, h.handleStartOneTimePurchase)
	r.HandleAsync(protocol.TypeRestoreSubscriptions, h.handleRestoreSubscriptions)

	r.HandleAsync(protocol.TypeStartShare, h.handleStartShare)
	r.HandleAsync(protocol.TypeShareToChannel, h.handleShareToChannel)
	r.HandleAsync(protocol.TypeDownloadImage, h.handleDownloadImage)

	r.Handle(protocol.TypeNavState, h.handleNavState)
	r.Handle(protocol.TypeBackPressed, h.handleBackPressed)
}

func (h *Handler) send(msgType string, payload any) {
	h.sess.Out.Send(msgType, payload)
}

func (h *Handler) handleOpenURL(ctx context.Context, url string) error {
	h.logger.Info("opening external url", "url", url)
	return h.urls.OpenURL(ctx, url)
}
