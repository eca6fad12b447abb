package hotkey

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ctrl_l":  "ctrl",
		"Ctrl_R":  "ctrl",
		"control": "ctrl",
		"SHIFT_L": "shift",
		"alt_gr":  "alt",
		"cmd":     "win",
		"super":   "win",
		"space":   "space",
		" F9 ":    "f9",
		"a":       "a",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsModifier(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"ctrl_l", "shift_r", "alt", "win", "CMD"} {
		if !IsModifier(key) {
			t.Errorf("expected %q to be a modifier", key)
		}
	}
	for _, key := range []string{"space", "a", "f9", ""} {
		if IsModifier(key) {
			t.Errorf("expected %q to not be a modifier", key)
		}
	}
}

func TestModifierOnly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		hotkey []string
		want   bool
	}{
		{"single modifier", []string{"ctrl_r"}, true},
		{"two modifiers", []string{"ctrl_l", "shift_l"}, true},
		{"modifiers plus regular", []string{"ctrl_l", "shift_l", "space"}, false},
		{"single regular", []string{"f9"}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ModifierOnly(tc.hotkey); got != tc.want {
				t.Fatalf("ModifierOnly(%v) = %v, want %v", tc.hotkey, got, tc.want)
			}
		})
	}
}

func TestKeySetFoldsVariants(t *testing.T) {
	t.Parallel()

	set := KeySet([]string{"ctrl_l", "shift_r", "space"})
	for _, key := range []string{"ctrl", "shift", "space"} {
		if _, ok := set[key]; !ok {
			t.Errorf("expected %q in key set %v", key, set)
		}
	}
	if len(set) != 3 {
		t.Fatalf("unexpected set size: %v", set)
	}
}
