package hotkey

import "strings"

// Key identifiers are the backend's string names (hotkey_manager KEY_MAP):
// lowercase, with left/right modifier variants like "ctrl_l". Matching is
// case-insensitive everywhere.

// modifierClass maps every modifier-class identifier to its canonical form.
// Left/right variants fold together so releasing either side counts.
var modifierClass = map[string]string{
	"ctrl":    "ctrl",
	"ctrl_l":  "ctrl",
	"ctrl_r":  "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"shift_l": "shift",
	"shift_r": "shift",
	"alt":     "alt",
	"alt_l":   "alt",
	"alt_r":   "alt",
	"alt_gr":  "alt",
	"cmd":     "win",
	"win":     "win",
	"super":   "win",
}

// Normalize lowers a key identifier and folds left/right modifier
// variants into one canonical name.
func Normalize(key string) string {
	lowered := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := modifierClass[lowered]; ok {
		return canonical
	}
	return lowered
}

// IsModifier reports whether the identifier names a modifier-class key.
func IsModifier(key string) bool {
	_, ok := modifierClass[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// ModifierOnly reports whether every key of a non-empty combination is a
// modifier. Such combinations cannot be represented by the OS
// global-shortcut facility and require delegated detection.
func ModifierOnly(hotkey []string) bool {
	if len(hotkey) == 0 {
		return false
	}
	for _, key := range hotkey {
		if !IsModifier(key) {
			return false
		}
	}
	return true
}

// KeySet builds the normalized membership set for a combination.
func KeySet(hotkey []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hotkey))
	for _, key := range hotkey {
		set[Normalize(key)] = struct{}{}
	}
	return set
}
