//go:build windows

package hotkey

import (
	"fmt"
	"strings"
)

const (
	modAlt     uint32 = 0x0001
	modControl uint32 = 0x0002
	modShift   uint32 = 0x0004
	modWin     uint32 = 0x0008
)

// binding is a key combination translated to Win32 RegisterHotKey terms:
// a modifier bitmask plus exactly one virtual-key code.
type binding struct {
	modifiers uint32
	key       uint32
}

var win32Modifiers = map[string]uint32{
	"ctrl":  modControl,
	"shift": modShift,
	"alt":   modAlt,
	"win":   modWin,
}

var win32Keys = map[string]uint32{
	"space":     0x20,
	"tab":       0x09,
	"enter":     0x0D,
	"esc":       0x1B,
	"escape":    0x1B,
	"backspace": 0x08,
	"delete":    0x2E,
	"insert":    0x2D,
	"home":      0x24,
	"end":       0x23,
	"page_up":   0x21,
	"page_down": 0x22,
	"left":      0x25,
	"up":        0x26,
	"right":     0x27,
	"down":      0x28,
	"f1":        0x70,
	"f2":        0x71,
	"f3":        0x72,
	"f4":        0x73,
	"f5":        0x74,
	"f6":        0x75,
	"f7":        0x76,
	"f8":        0x77,
	"f9":        0x78,
	"f10":       0x79,
	"f11":       0x7A,
	"f12":       0x7B,
}

// translateBinding converts backend key identifiers to a Win32 binding.
// RegisterHotKey needs exactly one non-modifier key; anything else fails
// and the caller falls back to delegated detection.
func translateBinding(hotkey []string) (binding, error) {
	var b binding
	haveKey := false

	for _, raw := range hotkey {
		name := Normalize(raw)
		if mod, ok := win32Modifiers[name]; ok {
			b.modifiers |= mod
			continue
		}
		if haveKey {
			return binding{}, fmt.Errorf("combination has more than one non-modifier key: %v", hotkey)
		}
		vk, err := virtualKey(name)
		if err != nil {
			return binding{}, err
		}
		b.key = vk
		haveKey = true
	}

	if !haveKey {
		return binding{}, fmt.Errorf("combination has no non-modifier key: %v", hotkey)
	}
	return b, nil
}

func virtualKey(name string) (uint32, error) {
	if vk, ok := win32Keys[name]; ok {
		return vk, nil
	}
	// Letters and digits map onto their uppercase ASCII code.
	if len(name) == 1 {
		ch := name[0]
		if ch >= 'a' && ch <= 'z' {
			return uint32(strings.ToUpper(name)[0]), nil
		}
		if ch >= '0' && ch <= '9' {
			return uint32(ch), nil
		}
	}
	return 0, fmt.Errorf("key %q has no virtual-key mapping", name)
}
