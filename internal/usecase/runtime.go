package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"freeflow/internal/backend"
	"freeflow/internal/domain"
	"freeflow/internal/ports"
)

// ErrNotStarted is returned for operations that need a running backend.
var ErrNotStarted = errors.New("coordinator is not started")

type provisioner interface {
	EnsureReady(ctx context.Context, progress func(string)) (*backend.Handle, error)
}

type statusChannel interface {
	Connect()
	Shutdown()
	State() domain.ChannelState
}

// activation is the slice of the hotkey coordinator the runtime drives.
type activation interface {
	Arm(hotkey []string, mode domain.ActivationMode)
	Disarm()
	SetRecordingState(state domain.RecordingState)
	KeyDown(key string)
	KeyUp(key string)
	FocusLost()
}

// Runtime is the coordinator instance: it owns the backend handle, the
// status channel, the hotkey activation coordinator, and the current
// config snapshot, with an explicit start/shutdown lifecycle
// (provision → arm → run → teardown).
type Runtime struct {
	client     ports.CommandClient
	supervisor provisioner
	channel    statusChannel
	events     ports.EventSink
	clipboard  ports.Clipboard

	commandTimeout time.Duration

	mu        sync.Mutex
	hotkeys   activation
	handle    *backend.Handle
	cfg       domain.Config
	recording domain.RecordingState
	started   bool
}

// NewRuntime assembles a runtime. The activation coordinator is attached
// separately because it needs the runtime as its recorder.
func NewRuntime(
	client ports.CommandClient,
	supervisor provisioner,
	channel statusChannel,
	events ports.EventSink,
	clipboard ports.Clipboard,
	commandTimeout time.Duration,
) *Runtime {
	if commandTimeout <= 0 {
		commandTimeout = 30 * time.Second
	}
	return &Runtime{
		client:         client,
		supervisor:     supervisor,
		channel:        channel,
		events:         events,
		clipboard:      clipboard,
		commandTimeout: commandTimeout,
		cfg:            domain.DefaultConfig(),
		recording:      domain.RecordingIdle,
	}
}

// AttachActivation wires the hotkey coordinator in after construction.
func (r *Runtime) AttachActivation(hotkeys activation) {
	r.mu.Lock()
	r.hotkeys = hotkeys
	r.mu.Unlock()
}

// Start brings the system up: provision and spawn the backend, load the
// dictation config, arm the hotkey, connect the status channel. Any
// provisioning failure is fatal and returned as-is; nothing is armed.
func (r *Runtime) Start(ctx context.Context, progress func(string)) error {
	handle, err := r.supervisor.EnsureReady(ctx, progress)
	if err != nil {
		return err
	}

	cfg, err := r.client.GetConfig(ctx)
	if err != nil {
		// Transport failure after a passing health check: arm with
		// defaults so the session is usable; the UI can re-save later.
		slog.Warn("[runtime] config load failed, using defaults", "error", err)
		cfg = domain.DefaultConfig()
	}

	// Seed the recording state from a status snapshot so surfaces that
	// attach before the first push render the right thing.
	recording := domain.RecordingIdle
	if status, err := r.client.Status(ctx); err == nil {
		recording = status.Status.RecordingState()
	}

	r.mu.Lock()
	r.handle = handle
	r.cfg = cfg
	r.recording = recording
	r.started = true
	hotkeys := r.hotkeys
	r.mu.Unlock()

	if hotkeys != nil {
		hotkeys.Arm(cfg.Hotkey, cfg.ActivationMode)
	}
	r.channel.Connect()
	return nil
}

// Shutdown tears the session down: no more reconnects, hotkeys released,
// backend process stopped.
func (r *Runtime) Shutdown() {
	r.channel.Shutdown()

	r.mu.Lock()
	hotkeys := r.hotkeys
	handle := r.handle
	r.handle = nil
	r.started = false
	r.mu.Unlock()

	if hotkeys != nil {
		hotkeys.Disarm()
	}
	if handle != nil {
		handle.Stop()
	}
}

// HandleEvent processes one status channel message. It runs on the
// channel's read goroutine, so events are handled strictly in arrival
// order.
func (r *Runtime) HandleEvent(event domain.StatusEvent) {
	switch event.Type {
	case domain.EventTypePartialTranscript:
		// Live text for the indicator only; recording state untouched.
		r.events.PartialTranscript(event.Text)
	case domain.EventTypeStatus:
		r.handleStatus(event)
	}
}

func (r *Runtime) handleStatus(event domain.StatusEvent) {
	state := event.Status.RecordingState()

	r.mu.Lock()
	r.recording = state
	hotkeys := r.hotkeys
	r.mu.Unlock()

	if hotkeys != nil {
		hotkeys.SetRecordingState(state)
	}

	// Transcript delivery happens before the status broadcast so the
	// clipboard, paste, and history effects land before the surfaces
	// render the accompanying ready status.
	if event.Transcription != "" {
		r.deliverTranscription(event.Transcription)
	}

	r.events.StatusChanged(event, state)
}

func (r *Runtime) deliverTranscription(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()

	if err := r.clipboard.SetText(ctx, text); err != nil {
		slog.Warn("[runtime] clipboard write failed", "error", err)
	}
	if err := r.client.Paste(ctx); err != nil {
		slog.Warn("[runtime] paste request failed", "error", err)
	}
	r.events.PasteText(text)
	r.events.HistoryChanged()
}

// Started reports whether startup completed successfully.
func (r *Runtime) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Config returns the current configuration snapshot.
func (r *Runtime) Config() domain.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// RecordingState returns the last confirmed recording state.
func (r *Runtime) RecordingState() domain.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// ChannelState returns a snapshot of the status channel state.
func (r *Runtime) ChannelState() domain.ChannelState {
	return r.channel.State()
}

// BackendState returns the supervised process state.
func (r *Runtime) BackendState() (backend.HandleState, int) {
	r.mu.Lock()
	handle := r.handle
	r.mu.Unlock()
	if handle == nil {
		return backend.HandleNotStarted, 0
	}
	return handle.State()
}

// SaveConfig persists the config through the backend, re-arms the hotkey
// with the new combination and mode, and broadcasts the update. On
// failure nothing changes locally.
func (r *Runtime) SaveConfig(cfg domain.Config) error {
	cfg.Normalize()

	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	if err := r.client.SaveConfig(ctx, cfg); err != nil {
		return err
	}

	r.mu.Lock()
	r.cfg = cfg
	hotkeys := r.hotkeys
	r.mu.Unlock()

	if hotkeys != nil {
		hotkeys.Arm(cfg.Hotkey, cfg.ActivationMode)
	}
	r.events.ConfigUpdated(cfg)
	return nil
}

// ListAudioDevices proxies the device listing for the settings surface.
func (r *Runtime) ListAudioDevices() ([]domain.AudioDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	return r.client.ListAudioDevices(ctx)
}

// Recorder returns the command adapter handed to the hotkey coordinator.
func (r *Runtime) Recorder() ports.Recorder {
	return commandRecorder{runtime: r}
}

// commandRecorder issues recording commands on behalf of the activation
// state machine. A failed call means no state change occurred and is only
// logged; the authoritative transition arrives on the status channel.
type commandRecorder struct {
	runtime *Runtime
}

func (c commandRecorder) Start() {
	r := c.runtime
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	if err := r.client.StartRecording(ctx); err != nil {
		slog.Warn("[runtime] start command failed", "error", err)
	}
}

// Stop issues a stop-recording command. The transcription result arrives
// via the status channel; the HTTP response body is ignored beyond logging.
func (c commandRecorder) Stop() {
	r := c.runtime
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	if _, err := r.client.StopRecording(ctx); err != nil {
		slog.Warn("[runtime] stop command failed", "error", err)
	}
}

// Cancel discards the in-progress recording. The next confirming status
// event clears the recording state; no local transition happens.
func (c commandRecorder) Cancel() {
	r := c.runtime
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	if err := r.client.CancelRecording(ctx); err != nil {
		slog.Warn("[runtime] cancel command failed", "error", err)
	}
}

// KeyDown forwards a raw key-down event from the focused UI surface.
func (r *Runtime) KeyDown(key string) {
	if hotkeys := r.activation(); hotkeys != nil {
		hotkeys.KeyDown(key)
	}
}

// KeyUp forwards a raw key-up event from the focused UI surface.
func (r *Runtime) KeyUp(key string) {
	if hotkeys := r.activation(); hotkeys != nil {
		hotkeys.KeyUp(key)
	}
}

// FocusLost forwards a loss-of-focus notification.
func (r *Runtime) FocusLost() {
	if hotkeys := r.activation(); hotkeys != nil {
		hotkeys.FocusLost()
	}
}

func (r *Runtime) activation() activation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hotkeys
}
