package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"freeflow/internal/bootstrap"
	"freeflow/internal/config"
	"freeflow/internal/domain"
	"freeflow/internal/usecase"
)

const (
	eventStatus       = "freeflow:status"
	eventPartial      = "freeflow:partial"
	eventConfig       = "freeflow:config"
	eventPaste        = "freeflow:paste"
	eventHistory      = "freeflow:history"
	eventProvisioning = "freeflow:provisioning"
	eventSettings     = "freeflow:open-settings"
	eventStartupError = "freeflow:startup-error"
)

// Wails runtime calls go through function seams so window side effects
// stay testable without a live webview.
var (
	emitFn              = runtime.EventsEmit
	windowSetSizeFn     = runtime.WindowSetSize
	windowSetPositionFn = runtime.WindowSetPosition
	windowSetTopmostFn  = runtime.WindowSetAlwaysOnTop
	windowMinimiseFn    = runtime.WindowMinimise
	windowHideFn        = runtime.WindowHide
	windowShowFn        = runtime.WindowShow
	quitFn              = runtime.Quit
	clipboardSetTextFn  = runtime.ClipboardSetText
)

// App is the Wails application root. It binds UI intents, fans coordinator
// events out to the indicator and settings surfaces, and owns the window
// side effects tied to recording status.
type App struct {
	ctx context.Context

	coordinator *usecase.Runtime
	settings    config.Settings
	bootErr     error

	mu          sync.Mutex
	modalOpen   bool
	topmostStop chan struct{}
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{app: a})
	if err != nil {
		a.bootErr = err
		a.emit(eventStartupError, map[string]string{"message": err.Error()})
		return
	}
	a.coordinator = services.Runtime
	a.settings = services.Settings

	// Provisioning can take minutes on first launch; keep the UI thread
	// free and report progress as it streams in.
	go a.bringUp(ctx)
}

func (a *App) bringUp(ctx context.Context) {
	progress := func(message string) {
		a.emit(eventProvisioning, map[string]string{"message": message})
	}

	if err := a.coordinator.Start(ctx, progress); err != nil {
		a.bootErr = err
		a.emit(eventStartupError, map[string]string{"message": err.Error()})
		return
	}

	a.restoreWindowPosition()
	a.startTopmostTimer()
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	if a.topmostStop != nil {
		close(a.topmostStop)
		a.topmostStop = nil
	}
	a.mu.Unlock()

	if a.coordinator != nil {
		a.coordinator.Shutdown()
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.coordinator == nil || !a.coordinator.Started() {
		return usecase.ErrNotStarted
	}
	return nil
}

// === UI intents ===

// GetConfig returns the current dictation configuration snapshot.
func (a *App) GetConfig() (domain.Config, error) {
	if a.coordinator == nil {
		return domain.DefaultConfig(), a.bootErr
	}
	return a.coordinator.Config(), nil
}

// SaveConfig persists the configuration, re-arms the hotkey, and
// broadcasts the update to all surfaces.
func (a *App) SaveConfig(cfg domain.Config) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.coordinator.SaveConfig(cfg)
}

// ListAudioDevices lists the backend's input devices for the settings
// surface.
func (a *App) ListAudioDevices() ([]domain.AudioDevice, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.coordinator.ListAudioDevices()
}

// StartRecording requests recording start. Confirmation arrives as a
// status event.
func (a *App) StartRecording() {
	if a.requireReady() != nil {
		return
	}
	a.coordinator.Recorder().Start()
}

// StopRecording requests recording stop.
func (a *App) StopRecording() {
	if a.requireReady() != nil {
		return
	}
	a.coordinator.Recorder().Stop()
}

// CancelRecording discards the in-progress recording.
func (a *App) CancelRecording() {
	if a.requireReady() != nil {
		return
	}
	a.coordinator.Recorder().Cancel()
}

// StatusSnapshot is the initial state a surface reads when it attaches
// after events have already been flowing.
type StatusSnapshot struct {
	Recording domain.RecordingState `json:"recording"`
	Channel   domain.ChannelState   `json:"channel"`
	Backend   string                `json:"backend"`
	BootError string                `json:"bootError,omitempty"`
}

// GetStatus returns the coordinator's last-known state.
func (a *App) GetStatus() StatusSnapshot {
	snapshot := StatusSnapshot{Recording: domain.RecordingIdle, Channel: domain.ChannelDisconnected}
	if a.bootErr != nil {
		snapshot.BootError = a.bootErr.Error()
	}
	if a.coordinator == nil {
		return snapshot
	}
	snapshot.Recording = a.coordinator.RecordingState()
	snapshot.Channel = a.coordinator.ChannelState()
	state, _ := a.coordinator.BackendState()
	snapshot.Backend = string(state)
	return snapshot
}

// KeyDown forwards a raw key-down from the focused surface, unless a
// modal overlay is capturing input.
func (a *App) KeyDown(key string) {
	if a.coordinator == nil || a.isModalOpen() {
		return
	}
	a.coordinator.KeyDown(key)
}

// KeyUp forwards a raw key-up from the focused surface; this is how
// push-to-talk release is detected.
func (a *App) KeyUp(key string) {
	if a.coordinator == nil || a.isModalOpen() {
		return
	}
	a.coordinator.KeyUp(key)
}

// WindowBlurred signals that the application lost focus. The modal guard
// does not apply: this is the stuck-hold safety net.
func (a *App) WindowBlurred() {
	if a.coordinator == nil {
		return
	}
	a.coordinator.FocusLost()
}

// SetModalOpen toggles the modal-overlay guard that suspends raw key
// monitoring while a text field owns the keyboard.
func (a *App) SetModalOpen(open bool) {
	a.mu.Lock()
	a.modalOpen = open
	a.mu.Unlock()
}

func (a *App) isModalOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.modalOpen
}

// OpenSettings asks the settings surface to present itself.
func (a *App) OpenSettings() {
	a.emit(eventSettings, nil)
}

// SaveWindowPosition persists the indicator position through the config
// round-trip.
func (a *App) SaveWindowPosition(x int, y int) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	cfg := a.coordinator.Config()
	cfg.WindowPosition = []int{x, y}
	return a.coordinator.SaveConfig(cfg)
}

// MinimizeWindow minimizes the active window.
func (a *App) MinimizeWindow() {
	if a.ctx != nil {
		windowMinimiseFn(a.ctx)
	}
}

// HideWindow hides the active window.
func (a *App) HideWindow() {
	if a.ctx != nil {
		windowHideFn(a.ctx)
	}
}

// ShowWindow shows the active window.
func (a *App) ShowWindow() {
	if a.ctx != nil {
		windowShowFn(a.ctx)
	}
}

// Quit exits the application.
func (a *App) Quit() {
	if a.ctx != nil {
		quitFn(a.ctx)
	}
}

// === Event fan-out (ports.EventSink) ===

// StatusChanged broadcasts a status event and applies the window-size
// side effect: recording expands the indicator, ready/error restores it.
func (a *App) StatusChanged(event domain.StatusEvent, state domain.RecordingState) {
	a.applyWindowSize(event.Status)
	a.emit(eventStatus, map[string]any{
		"status":        string(event.Status),
		"modelReady":    event.ModelReady,
		"isRecording":   state == domain.RecordingActive,
		"transcription": event.Transcription,
	})
}

// PartialTranscript forwards live partial text to the indicator surface.
func (a *App) PartialTranscript(text string) {
	a.emit(eventPartial, map[string]string{"text": text})
}

// ConfigUpdated broadcasts the saved configuration to all surfaces.
func (a *App) ConfigUpdated(cfg domain.Config) {
	a.emit(eventConfig, cfg)
}

// PasteText notifies the indicator that transcribed text was delivered.
func (a *App) PasteText(text string) {
	a.emit(eventPaste, map[string]string{"text": text})
}

// HistoryChanged tells the settings/history surface to refresh.
func (a *App) HistoryChanged() {
	a.emit(eventHistory, nil)
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	emitFn(a.ctx, name, payload)
}

func (a *App) applyWindowSize(status domain.BackendStatus) {
	if a.ctx == nil {
		return
	}
	switch status {
	case domain.StatusRecording:
		windowSetSizeFn(a.ctx, a.settings.Window.ExpandedWidth, a.settings.Window.ExpandedHeight)
	case domain.StatusReady, domain.StatusError:
		windowSetSizeFn(a.ctx, a.settings.Window.DefaultWidth, a.settings.Window.DefaultHeight)
	}
}

func (a *App) restoreWindowPosition() {
	if a.ctx == nil {
		return
	}
	pos := a.coordinator.Config().WindowPosition
	if len(pos) == 2 {
		windowSetPositionFn(a.ctx, pos[0], pos[1])
	}
}

// startTopmostTimer periodically re-asserts always-on-top; some window
// managers drop the flag when other topmost windows appear.
func (a *App) startTopmostTimer() {
	stop := make(chan struct{})
	a.mu.Lock()
	a.topmostStop = stop
	a.mu.Unlock()

	period := a.settings.Window.TopmostPeriod
	if period <= 0 {
		period = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if a.ctx != nil {
					windowSetTopmostFn(a.ctx, true)
				}
			}
		}
	}()
}

// wailsClipboard writes through the Wails runtime clipboard using the
// application context.
type wailsClipboard struct {
	app *App
}

func (c *wailsClipboard) SetText(_ context.Context, text string) error {
	if c.app.ctx == nil {
		return errors.New("ui runtime is not ready")
	}
	return clipboardSetTextFn(c.app.ctx, text)
}
