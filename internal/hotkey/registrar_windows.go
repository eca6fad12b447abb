//go:build windows

package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPeekMessageW       = user32.NewProc("PeekMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	pmNoRemove = 0x0000

	// maxHotkeyID is the upper bound for application-defined hotkey IDs.
	maxHotkeyID int32 = 0xBFFF
)

var nextHotkeyID int32 = 0x4000

type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct. Field order and types must match
// the binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

type loopReady struct {
	threadID uint32
	err      error
}

type activeRegistration struct {
	hotkeyID int32
	threadID uint32
	doneCh   chan struct{}
}

// OSRegistrar registers one global hotkey through Win32 RegisterHotKey.
// The hotkey is serviced by a dedicated message-loop goroutine pinned to
// its OS thread; WM_HOTKEY arrives on key-down only, which is why release
// detection lives elsewhere.
type OSRegistrar struct {
	mu     sync.Mutex
	active *activeRegistration
}

// NewOSRegistrar creates an idle registrar.
func NewOSRegistrar() *OSRegistrar {
	return &OSRegistrar{}
}

// Register replaces any previous registration with the given combination.
func (r *OSRegistrar) Register(hotkey []string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("onTrigger callback is required")
	}
	if err := user32.Load(); err != nil {
		return fmt.Errorf("user32.dll is unavailable: %w", err)
	}

	b, err := translateBinding(hotkey)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.unregisterLocked(); err != nil {
		return err
	}

	hotkeyID := atomic.AddInt32(&nextHotkeyID, 1)
	if hotkeyID > maxHotkeyID {
		return fmt.Errorf("hotkey ID range exhausted (ID=%d)", hotkeyID)
	}

	readyCh := make(chan loopReady, 1)
	doneCh := make(chan struct{})
	go runMessageLoop(hotkeyID, b, onTrigger, readyCh, doneCh)

	ready := <-readyCh
	if ready.err != nil {
		return fmt.Errorf("RegisterHotKey failed for %v: %w", hotkey, ready.err)
	}
	if ready.threadID == 0 {
		return errors.New("hotkey loop reported thread ID 0")
	}

	r.active = &activeRegistration{hotkeyID: hotkeyID, threadID: ready.threadID, doneCh: doneCh}
	return nil
}

// Unregister drops the active registration, if any.
func (r *OSRegistrar) Unregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked()
}

func (r *OSRegistrar) unregisterLocked() error {
	if r.active == nil {
		return nil
	}
	active := r.active
	r.active = nil

	if err := postQuit(active.threadID); err != nil {
		// Cross-thread unregister is a fallback; it may be rejected.
		if unregErr := callUnregisterHotKey(active.hotkeyID); unregErr != nil {
			slog.Warn("[hotkey] unregister fallback failed", "error", unregErr, "hotkey_id", active.hotkeyID)
		}
	}

	select {
	case <-active.doneCh:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("hotkey message loop did not exit (ID=%d)", active.hotkeyID)
	}
}

func runMessageLoop(hotkeyID int32, b binding, onTrigger func(), readyCh chan<- loopReady, doneCh chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(doneCh)

	threadID := windows.GetCurrentThreadId()
	if threadID == 0 {
		readyCh <- loopReady{err: errors.New("GetCurrentThreadId returned 0")}
		return
	}

	// PeekMessageW forces creation of the thread message queue so that
	// PostThreadMessageW can deliver WM_QUIT later.
	var qmsg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)

	if err := callRegisterHotKey(hotkeyID, b.modifiers, b.key); err != nil {
		readyCh <- loopReady{err: err}
		return
	}
	defer func() {
		if err := callUnregisterHotKey(hotkeyID); err != nil {
			slog.Warn("[hotkey] unregister on loop exit failed", "error", err, "hotkey_id", hotkeyID)
		}
	}()

	readyCh <- loopReady{threadID: threadID}

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[hotkey] GetMessageW failed, exiting loop", "error", lastErr, "hotkey_id", hotkeyID)
			return
		case 0:
			// WM_QUIT: normal shutdown.
			return
		}

		if msg.message == wmHotkey && int32(msg.wParam) == hotkeyID {
			go onTrigger()
		}
	}
}

func callRegisterHotKey(hotkeyID int32, modifiers uint32, key uint32) error {
	res, _, err := procRegisterHotKey.Call(0, uintptr(hotkeyID), uintptr(modifiers), uintptr(key))
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func callUnregisterHotKey(hotkeyID int32) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(hotkeyID))
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func postQuit(threadID uint32) error {
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), wmQuit, 0, 0)
	if res != 0 {
		return nil
	}
	if err == windows.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
