// Package mobile is the gomobile-bound surface of the bridge. The native
// host registers its NativeBridge, calls Start once the web view exists,
// and forwards web messages and SDK callbacks through the On* functions.
package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wizmarket/wizapp/internal/app"
	"github.com/wizmarket/wizapp/internal/auth"
	"github.com/wizmarket/wizapp/internal/bridge"
	"github.com/wizmarket/wizapp/internal/config"
	"github.com/wizmarket/wizapp/internal/logger"
	"github.com/wizmarket/wizapp/internal/platform"
)

var (
	mu      sync.Mutex
	current *app.App
	native  *logger.NativeLogger
	slogger = slog.New(slog.DiscardHandler)
)

func RegisterBridge(b bridge.NativeBridge) {
	bridge.Register(b)
}

func RegisterLocation(l bridge.NativeLocation) {
	bridge.RegisterLocation(l)
}

// Start builds the bridge session. configJSON may be empty; osName is
// "android" or "ios" and osVersion the API level or major version.
func Start(dataDir string, configJSON string, osName string, osVersion int) error {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return fmt.Errorf("bridge already running")
	}

	nb, err := bridge.Safe()
	if err != nil {
		return fmt.Errorf("call RegisterBridge before Start: %w", err)
	}

	cfg, err := config.Parse(configJSON, dataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	slogger = logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: os.Stdout})
	native = logger.NewNative(context.Background(), slogger)

	adapter := bridge.NewAdapter(nb, bridge.Location())
	collabs := app.Collaborators{
		URLs:          adapter,
		Settings:      adapter,
		Lifecycle:     adapter,
		Dialogs:       adapter,
		Notifications: adapter,
		Location:      adapter.Location(),
		Push:          adapter,
		Billing:       adapter,
		Sharer:        adapter,
		Clipboard:     adapter,
		Gallery:       adapter,
		Auth: map[string]auth.Variant{
			"google": auth.Google(adapter.Provider("google")),
			"kakao":  auth.OAuth(adapter.Provider("kakao")),
			"naver":  auth.OAuth(adapter.Provider("naver")),
		},
	}

	info := platform.Info{
		OS:         strings.ToLower(osName),
		OSVersion:  osVersion,
		AppVersion: cfg.AppVersion,
		CacheDir:   filepath.Join(cfg.DataDir, "cache"),
	}
	a, err := app.New(cfg, info, collabs, adapter, slogger)
	if err != nil {
		return err
	}
	a.Start()
	current = a
	return nil
}

func running() *app.App {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		slogger.Warn("bridge call before Start")
	}
	return current
}

// OnMessage forwards a string the web content posted.
func OnMessage(raw string) {
	if a := running(); a != nil {
		a.OnMessage(raw)
	}
}

// OnLoadStart is called from the web view's load-start callback.
func OnLoadStart() {
	if a := running(); a != nil {
		a.OnLoadStart()
	}
}

// OnBackPressed handles the hardware back key. It always returns true:
// the platform back action is consumed and the bridge decides.
func OnBackPressed() bool {
	if a := running(); a != nil {
		a.OnBackPressed()
	}
	return true
}

// OnPurchaseUpdated forwards one purchase-updated callback as JSON.
func OnPurchaseUpdated(purchase string) {
	a := running()
	if a == nil {
		return
	}
	p, err := bridge.ParsePurchase(purchase)
	if err != nil {
		slogger.Error("dropping purchase update", "err", err)
		return
	}
	a.OnPurchaseUpdated(p)
}

// OnPurchaseError forwards a purchase-error callback.
func OnPurchaseError(code string, message string) {
	if a := running(); a != nil {
		a.OnPurchaseError(platform.NewError(code, message))
	}
}

func OnPushReceived(notification string) {
	if a := running(); a != nil {
		if n, ok := decodePush(notification); ok {
			a.OnPushReceived(n)
		}
	}
}

func OnPushOpened(notification string) {
	if a := running(); a != nil {
		if n, ok := decodePush(notification); ok {
			a.OnPushOpened(n)
		}
	}
}

func OnTokenRefreshed(token string) {
	if a := running(); a != nil {
		a.OnTokenRefreshed(token)
	}
}

func decodePush(raw string) (platform.PushNotification, bool) {
	var n platform.PushNotification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		slogger.Error("dropping push notification", "err", err)
		return n, false
	}
	return n, true
}

// Log writes a native log line into the bridge's log stream.
func Log(level string, message string) {
	mu.Lock()
	n := native
	mu.Unlock()
	if n == nil {
		return
	}
	switch strings.ToLower(level) {
	case "trace", "verbose":
		n.Trace(message)
	case "debug":
		n.Debug(message)
	case "warn", "warning":
		n.Warning(message)
	case "error":
		n.Error(message)
	default:
		n.Info(message)
	}
}

func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		if err := current.Close(); err != nil {
			slogger.Error("bridge close failed", "err", err)
		}
		current = nil
	}
	native = nil
	bridge.Reset()
}
