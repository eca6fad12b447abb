package domain

// ActivationMode selects how the hotkey translates into start/stop commands.
type ActivationMode string

const (
	ModePushToTalk ActivationMode = "push_to_talk"
	ModeToggle     ActivationMode = "toggle"
)

// Valid reports whether the mode is one of the two supported values.
func (m ActivationMode) Valid() bool {
	return m == ModePushToTalk || m == ModeToggle
}

// Config is the dictation configuration owned by the backend.
// The coordinator holds a read-only snapshot; mutations round-trip
// through an explicit save.
type Config struct {
	Hotkey         []string       `json:"hotkey"`
	ActivationMode ActivationMode `json:"activation_mode"`
	WindowPosition []int          `json:"window_position"`
	AudioDevice    *int           `json:"audio_device"`
	ShowTimestamps bool           `json:"show_timestamps"`
}

// DefaultConfig mirrors the backend's defaults.
func DefaultConfig() Config {
	return Config{
		Hotkey:         []string{"ctrl_l", "shift_l", "space"},
		ActivationMode: ModePushToTalk,
		WindowPosition: []int{100, 100},
	}
}

// Normalize validates and repairs a config snapshot in place.
// Duplicate hotkey identifiers are dropped, keeping first occurrence
// so insertion order still reflects press order.
func (c *Config) Normalize() {
	if !c.ActivationMode.Valid() {
		c.ActivationMode = ModePushToTalk
	}
	if len(c.WindowPosition) != 2 {
		c.WindowPosition = []int{100, 100}
	}
	seen := make(map[string]struct{}, len(c.Hotkey))
	keys := c.Hotkey[:0]
	for _, key := range c.Hotkey {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	c.Hotkey = keys
}

// RecordingState mirrors backend-reported status. Transitions happen only
// on receipt of a status push, never inferred locally.
type RecordingState string

const (
	RecordingIdle         RecordingState = "idle"
	RecordingActive       RecordingState = "recording"
	RecordingTranscribing RecordingState = "transcribing"
)

// ChannelState describes the status channel connection.
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelConnecting   ChannelState = "connecting"
	ChannelConnected    ChannelState = "connected"
)

// BackendStatus is the status field of a backend push or /status response.
type BackendStatus string

const (
	StatusInitializing BackendStatus = "initializing"
	StatusLoading      BackendStatus = "loading"
	StatusReady        BackendStatus = "ready"
	StatusRecording    BackendStatus = "recording"
	StatusTranscribing BackendStatus = "transcribing"
	StatusError        BackendStatus = "error"
)

// RecordingState maps a backend status onto the coordinator's recording state.
func (s BackendStatus) RecordingState() RecordingState {
	switch s {
	case StatusRecording:
		return RecordingActive
	case StatusTranscribing:
		return RecordingTranscribing
	default:
		return RecordingIdle
	}
}

// Push message type tags.
const (
	EventTypeStatus            = "status"
	EventTypePartialTranscript = "partial_transcript"
)

// StatusEvent is a single message received on the push channel.
// Type "status" carries Status/IsRecording/Transcription; type
// "partial_transcript" carries Text only.
type StatusEvent struct {
	Type          string        `json:"type"`
	Status        BackendStatus `json:"status,omitempty"`
	ModelReady    bool          `json:"model_ready,omitempty"`
	IsRecording   *bool         `json:"is_recording,omitempty"`
	Transcription string        `json:"transcription,omitempty"`
	Text          string        `json:"text,omitempty"`
}

// AudioDevice is one entry from the backend's input device listing.
type AudioDevice struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Channels int    `json:"channels"`
}

// TranscriptionResult is the backend's response to a stop command.
type TranscriptionResult struct {
	Text            string   `json:"text"`
	OriginalText    string   `json:"original_text"`
	Success         bool     `json:"success"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}
