package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/koe-app/koe/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	appService := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Koe",
		Description: "Real-time voice chat client",
		Services: []application.Service{
			application.NewService(appService),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
	})

	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Koe",
		Width:  480,
		Height: 720,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar: application.MacTitleBarHiddenInsetUnified,
		},
	})

	appService.Init(wailsApp, mainWindow)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}

	appService.Shutdown()
}
