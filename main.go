package main

import (
	"embed"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/echo/config"
	"go.aimuz.me/echo/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	overlayWidth  = 120
	overlayHeight = 40
	overlayMargin = 24
)

func setupLogger(levelName string) {
	level := slog.LevelInfo
	if l, ok := parseLevel(levelName); ok {
		level = l
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

func parseLevel(s string) (slog.Level, bool) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, false
	}
	return l, true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	setupLogger(cfg.LogLevel())
	if err != nil {
		slog.Error("load config", "error", err)
	}
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	appService := app.New(version, cfg)

	wailsApp := application.New(application.Options{
		Name:        "Echo",
		Description: "Menubar voice dictation",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
			ActivationPolicy: application.ActivationPolicyAccessory,
		},
	})

	// Status overlay: small, frameless, pinned bottom-centre.
	overlay := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:                       "overlay",
		Title:                      "Echo",
		Width:                      overlayWidth,
		Height:                     overlayHeight,
		URL:                        "/",
		Frameless:                  true,
		AlwaysOnTop:                true,
		DisableResize:              true,
		BackgroundType:             application.BackgroundTypeTransparent,
		IgnoreMouseEvents:          false,
		DefaultContextMenuDisabled: true,
		Mac: application.MacWindow{
			Backdrop:    application.MacBackdropTransparent,
			WindowLevel: application.MacWindowLevelFloating,
		},
	})
	settings := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:   "settings",
		Title:  "Echo Settings",
		Width:  480,
		Height: 420,
		URL:    "/settings.html",
		Hidden: true,
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	settings.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel() // Prevent actual close
		settings.Hide()
	})

	// Initialize service with app and overlay references
	appService.Init(wailsApp, overlay)

	showSettings := func() {
		settings.Show()
		settings.Focus()
	}
	wailsApp.Event.On(app.EventOpenSettings, func(e *application.CustomEvent) {
		showSettings()
	})

	// Setup system tray
	systemTray := wailsApp.SystemTray.New()
	systemTray.SetIcon(trayIconBytes)

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Start/Stop Recording").OnClick(func(ctx *application.Context) {
		appService.ToggleRecording()
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Settings").
		SetAccelerator("CmdOrCtrl+,").
		OnClick(func(ctx *application.Context) {
			showSettings()
		})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			appService.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	wailsApp.Event.OnApplicationEvent(events.Common.ApplicationStarted, func(*application.ApplicationEvent) {
		pinBottomCentre(overlay)
		// Ask for the key on first launch.
		if !appService.HasAPIKey() {
			showSettings()
		}
	})

	// Run application
	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}

// pinBottomCentre moves w to the bottom centre of the primary screen.
func pinBottomCentre(w application.Window) {
	screen, err := w.GetScreen()
	if err != nil || screen == nil {
		slog.Warn("get overlay screen", "error", err)
		return
	}
	area := screen.WorkArea
	x := area.X + (area.Width-overlayWidth)/2
	y := area.Y + area.Height - overlayHeight - overlayMargin
	w.SetPosition(x, y)
}
