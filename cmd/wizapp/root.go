package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/toqueteos/webbrowser"

	"github.com/wizmarket/wizapp/internal/app"
	"github.com/wizmarket/wizapp/internal/config"
	"github.com/wizmarket/wizapp/internal/devbridge"
	"github.com/wizmarket/wizapp/internal/logger"
	"github.com/wizmarket/wizapp/internal/platform"
	"github.com/wizmarket/wizapp/internal/webview"
)

const windowTitle = "WizMarket"

var rootCmd = &cobra.Command{
	Use:          "wizapp",
	Short:        "Desktop shell for the WizMarket web app",
	SilenceUsage: true,
	RunE:         runShell,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("url", "", "Web app URL to load (overrides start_url)")
	rootCmd.PersistentFlags().Bool("dev", false, "Serve the bridge to a browser tab instead of opening a window")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging and web inspector")
	rootCmd.AddCommand(configCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		cfg.StartURL = u
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func runShell(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	slogger := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(slogger)

	info := platform.Info{OS: runtime.GOOS, AppVersion: version}
	if cfg.AppVersion != "dev" {
		info.AppVersion = cfg.AppVersion
	}

	dev, _ := cmd.Flags().GetBool("dev")
	if dev {
		return runDevBridge(cmd.Context(), cfg, info, slogger)
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return runWindow(cfg, info, debug, slogger)
}

func desktopCollaborators() app.Collaborators {
	clip := webview.SystemClipboard{}
	return app.Collaborators{
		URLs:      webview.BrowserOpener{},
		Clipboard: clip,
		Sharer:    webview.Sharer{Clipboard: clip},
		Gallery:   webview.DefaultGallery(),
	}
}

func runWindow(cfg *config.Config, info platform.Info, debug bool, slogger *slog.Logger) error {
	os.Setenv("WEBKIT_DISABLE_COMPOSITING_MODE", "0")
	os.Setenv("WEBVIEW2_ADDITIONAL_BROWSER_ARGUMENTS", "--enable-gpu")

	w := webview.New(debug)
	defer w.Destroy()

	var a *app.App
	host, err := webview.NewHost(w, func(raw string) { a.OnMessage(raw) }, slogger)
	if err != nil {
		return err
	}

	collabs := desktopCollaborators()
	collabs.Dialogs = host
	collabs.Lifecycle = host
	a, err = app.New(cfg, info, collabs, host, slogger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := host.BindLoadStart(a.OnLoadStart); err != nil {
		return err
	}

	w.SetTitle(windowTitle)
	w.SetSize(420, 860, webview.HintNone)
	w.SetSize(360, 640, webview.HintMin)
	w.Navigate(cfg.StartURL)
	a.Start()

	slogger.Info("window opened", "url", cfg.StartURL)
	w.Run()
	slogger.Info("window closed, shutting down")
	return nil
}

type exitFunc func()

func (f exitFunc) Exit() { f() }

func runDevBridge(ctx context.Context, cfg *config.Config, info platform.Info, slogger *slog.Logger) error {
	if err := cfg.EnsureDevCookieKey(); err != nil {
		slogger.Warn("dev cookie key not persisted, using a session key", "err", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var a *app.App
	srv := devbridge.New(devbridge.Options{
		StartURL:  cfg.StartURL,
		CookieKey: []byte(cfg.DevCookieKey),
		OnMessage: func(raw string) { a.OnMessage(raw) },
		Logger:    slogger,
	})

	collabs := desktopCollaborators()
	collabs.Lifecycle = exitFunc(stop)
	a, err := app.New(cfg, info, collabs, srv, slogger)
	if err != nil {
		return err
	}
	defer a.Close()

	listener, err := net.Listen("tcp", cfg.DevAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.DevAddr, err)
	}
	httpSrv := &http.Server{Handler: srv.Routes()}
	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("dev bridge server error", "err", err)
			stop()
		}
	}()

	addr := fmt.Sprintf("http://%s/", listener.Addr())
	slogger.Info("dev bridge listening", "addr", addr, "start_url", cfg.StartURL)
	a.Start()
	a.OnLoadStart()
	if err := webbrowser.Open(addr); err != nil {
		slogger.Warn("could not open browser, visit the address manually", "addr", addr, "err", err)
	}

	<-ctx.Done()
	slogger.Info("shutting down dev bridge")
	return httpSrv.Close()
}
