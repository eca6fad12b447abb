package ports

import (
	"context"

	"freeflow/internal/domain"
)

// CommandClient issues synchronous control calls against the backend API.
// Every method returns an error on transport failure; callers treat a
// failure as "no state change occurred".
type CommandClient interface {
	Health(ctx context.Context) error
	Status(ctx context.Context) (domain.StatusEvent, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (domain.TranscriptionResult, error)
	CancelRecording(ctx context.Context) error
	GetConfig(ctx context.Context) (domain.Config, error)
	SaveConfig(ctx context.Context, cfg domain.Config) error
	ListAudioDevices(ctx context.Context) ([]domain.AudioDevice, error)
	EnableHotkey(ctx context.Context, hotkey []string, mode domain.ActivationMode) error
	DisableHotkey(ctx context.Context) error
	Paste(ctx context.Context) error
}

// Recorder issues start/stop/cancel commands without blocking the caller.
// The authoritative state transition arrives later on the status channel.
type Recorder interface {
	Start()
	Stop()
	Cancel()
}

// DelegatedHotkey arms and disarms backend-side hotkey detection, used for
// combinations the OS global-shortcut facility cannot represent.
type DelegatedHotkey interface {
	Enable(hotkey []string, mode domain.ActivationMode) error
	Disable() error
}

// Registrar registers one OS-level global hotkey. Register replaces any
// previous registration; the callback fires on key-down only and may
// re-fire while the combination is held.
type Registrar interface {
	Register(hotkey []string, onTrigger func()) error
	Unregister() error
}

// EventSink fans coordinator events out to the UI surfaces. Delivery is
// fire-and-forget; a surface that is not presented misses the event.
type EventSink interface {
	StatusChanged(event domain.StatusEvent, state domain.RecordingState)
	PartialTranscript(text string)
	ConfigUpdated(cfg domain.Config)
	PasteText(text string)
	HistoryChanged()
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}
