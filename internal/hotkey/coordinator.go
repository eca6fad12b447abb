package hotkey

import (
	"log/slog"
	"sync"

	"freeflow/internal/domain"
	"freeflow/internal/ports"
)

type pendingCommand int

const (
	pendingNone pendingCommand = iota
	pendingStart
	pendingStop
)

// Coordinator owns the hotkey activation state machine. It translates OS
// hotkey callbacks and UI-delivered key events into start/stop commands,
// falling back to backend-side (delegated) detection for combinations the
// OS global-shortcut facility cannot register.
//
// The OS facility reports key-down only, so push-to-talk release is
// detected from raw key events forwarded by the focused UI surface.
type Coordinator struct {
	registrar ports.Registrar
	delegated ports.DelegatedHotkey
	recorder  ports.Recorder

	mu              sync.Mutex
	hotkey          []string
	keySet          map[string]struct{}
	mode            domain.ActivationMode
	armed           bool
	delegatedActive bool

	// pressed is the activation state: true only between a confirmed
	// press and its confirmed release.
	pressed bool
	// keysDown tracks combination keys physically held, independent of
	// pressed, for the loss-of-focus safety net.
	keysDown map[string]struct{}

	recording domain.RecordingState
	pending   pendingCommand
}

// NewCoordinator creates an unarmed coordinator.
func NewCoordinator(registrar ports.Registrar, delegated ports.DelegatedHotkey, recorder ports.Recorder) *Coordinator {
	return &Coordinator{
		registrar: registrar,
		delegated: delegated,
		recorder:  recorder,
		keysDown:  make(map[string]struct{}),
		recording: domain.RecordingIdle,
	}
}

// Arm (re)configures the hotkey. Any previous registration is dropped
// first. An empty combination disables both OS registration and delegated
// detection. Registration failures are recovered by the delegated
// fallback and never surface to the caller.
func (c *Coordinator) Arm(hotkey []string, mode domain.ActivationMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registrar.Unregister(); err != nil {
		slog.Warn("[hotkey] unregister failed", "error", err)
	}
	if c.delegatedActive {
		c.delegatedActive = false
		if err := c.delegated.Disable(); err != nil {
			slog.Warn("[hotkey] delegated disable failed", "error", err)
		}
	}

	c.hotkey = append([]string(nil), hotkey...)
	c.keySet = KeySet(hotkey)
	c.mode = mode
	c.pressed = false
	c.pending = pendingNone
	c.keysDown = make(map[string]struct{})
	c.armed = len(hotkey) > 0

	if !c.armed {
		slog.Info("[hotkey] empty combination, activation disabled")
		return
	}

	if ModifierOnly(hotkey) {
		c.enableDelegatedLocked("modifier-only combination")
		return
	}

	if err := c.registrar.Register(hotkey, c.handleTrigger); err != nil {
		slog.Warn("[hotkey] OS registration failed, using delegated detection",
			"hotkey", hotkey, "error", err)
		c.enableDelegatedLocked("registration failure")
		return
	}
	slog.Info("[hotkey] registered", "hotkey", hotkey, "mode", mode)
}

// Disarm drops any registration and resets activation state.
func (c *Coordinator) Disarm() {
	c.Arm(nil, c.Mode())
}

func (c *Coordinator) enableDelegatedLocked(cause string) {
	c.delegatedActive = true
	if err := c.delegated.Enable(c.hotkey, c.mode); err != nil {
		// The backend retries its own detection state independently;
		// an enable failure must not leave the hotkey disarmed here.
		slog.Warn("[hotkey] delegated enable failed", "cause", cause, "error", err)
		return
	}
	slog.Info("[hotkey] delegated detection enabled", "cause", cause, "hotkey", c.hotkey, "mode", c.mode)
}

// handleTrigger is the OS-level callback. It fires on key-down only and
// may re-fire while the combination is held.
func (c *Coordinator) handleTrigger() {
	c.mu.Lock()
	action := c.triggerActionLocked()
	c.mu.Unlock()

	c.dispatch(action)
}

func (c *Coordinator) triggerActionLocked() pendingCommand {
	if !c.armed || c.delegatedActive {
		return pendingNone
	}

	switch c.mode {
	case domain.ModeToggle:
		if c.pending != pendingNone {
			// A command is already outstanding; never reissue speculatively.
			return pendingNone
		}
		if c.recording == domain.RecordingActive {
			c.pending = pendingStop
			return pendingStop
		}
		c.pending = pendingStart
		return pendingStart
	default: // push-to-talk
		if c.pressed {
			// Key repeat while held: start stays idempotent per hold.
			return pendingNone
		}
		c.pressed = true
		c.pending = pendingStart
		return pendingStart
	}
}

// KeyDown records a combination key reported held by the focused UI
// surface. Non-member keys are ignored.
func (c *Coordinator) KeyDown(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return
	}
	normalized := Normalize(key)
	if _, member := c.keySet[normalized]; member {
		c.keysDown[normalized] = struct{}{}
	}
}

// KeyUp handles a key release from the focused UI surface. Releasing any
// member of the active combination in push-to-talk mode issues exactly
// one stop command per hold.
func (c *Coordinator) KeyUp(key string) {
	c.mu.Lock()
	action := pendingNone
	if c.armed {
		normalized := Normalize(key)
		delete(c.keysDown, normalized)
		if _, member := c.keySet[normalized]; member {
			action = c.releaseLocked()
		}
	}
	c.mu.Unlock()

	c.dispatch(action)
}

// FocusLost is the safety net: losing application focus while any
// combination key is tracked as held counts as an implicit release, so a
// hold can never leave recording stuck after an alt-tab.
func (c *Coordinator) FocusLost() {
	c.mu.Lock()
	action := pendingNone
	if len(c.keysDown) > 0 {
		c.keysDown = make(map[string]struct{})
		action = c.releaseLocked()
	}
	c.mu.Unlock()

	c.dispatch(action)
}

func (c *Coordinator) releaseLocked() pendingCommand {
	if c.mode != domain.ModePushToTalk || !c.pressed {
		return pendingNone
	}
	c.pressed = false
	c.pending = pendingStop
	return pendingStop
}

// SetRecordingState reconciles local optimism with an authoritative
// backend status push. Any pending command is considered answered.
func (c *Coordinator) SetRecordingState(state domain.RecordingState) {
	c.mu.Lock()
	c.recording = state
	c.pending = pendingNone
	c.mu.Unlock()
}

// Pressed reports the activation state (push-to-talk hold in progress).
func (c *Coordinator) Pressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pressed
}

// Delegated reports whether backend-side detection is active for the
// current combination.
func (c *Coordinator) Delegated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegatedActive
}

// Mode returns the configured activation mode.
func (c *Coordinator) Mode() domain.ActivationMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Coordinator) dispatch(action pendingCommand) {
	switch action {
	case pendingStart:
		c.recorder.Start()
	case pendingStop:
		c.recorder.Stop()
	}
}
