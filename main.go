package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

// slogBridge routes Wails runtime log lines into the application logger.
type slogBridge struct{}

func (slogBridge) Print(message string)   { slog.Info(message) }
func (slogBridge) Trace(message string)   { slog.Debug(message) }
func (slogBridge) Debug(message string)   { slog.Debug(message) }
func (slogBridge) Info(message string)    { slog.Info(message) }
func (slogBridge) Warning(message string) { slog.Warn(message) }
func (slogBridge) Error(message string)   { slog.Error(message) }
func (slogBridge) Fatal(message string)   { slog.Error(message) }

func main() {
	app := NewApp()

	err := wails.Run(&options.App{
		Title:         "FreeFlow",
		Width:         240,
		Height:        72,
		Frameless:     true,
		AlwaysOnTop:   true,
		DisableResize: true,
		Logger:        slogBridge{},
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 24, G: 24, B: 28, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []any{
			app,
		},
	})
	if err != nil {
		slog.Error("wails run failed", "error", err)
	}
}
