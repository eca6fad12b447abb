//go:build !windows

package hotkey

import "errors"

// ErrUnsupportedPlatform is returned on targets without an OS-level
// global-shortcut facility; the coordinator then falls back to delegated
// detection so the hotkey stays functional.
var ErrUnsupportedPlatform = errors.New("OS-level hotkey registration is not supported on this platform")

// OSRegistrar is the non-Windows stub. Register always fails so that the
// coordinator routes every combination through delegated detection.
type OSRegistrar struct{}

// NewOSRegistrar creates the stub registrar.
func NewOSRegistrar() *OSRegistrar {
	return &OSRegistrar{}
}

func (r *OSRegistrar) Register(hotkey []string, onTrigger func()) error {
	if onTrigger == nil {
		return errors.New("onTrigger callback is required")
	}
	return ErrUnsupportedPlatform
}

func (r *OSRegistrar) Unregister() error { return nil }
