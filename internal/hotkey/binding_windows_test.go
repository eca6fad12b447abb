//go:build windows

package hotkey

import "testing"

func TestTranslateBinding(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		hotkey    []string
		modifiers uint32
		key       uint32
		wantErr   bool
	}{
		"ctrl shift space": {
			hotkey:    []string{"ctrl_l", "shift_l", "space"},
			modifiers: modControl | modShift,
			key:       0x20,
		},
		"function key": {
			hotkey: []string{"f9"},
			key:    0x78,
		},
		"alt letter": {
			hotkey:    []string{"alt_l", "d"},
			modifiers: modAlt,
			key:       'D',
		},
		"win digit": {
			hotkey:    []string{"win", "3"},
			modifiers: modWin,
			key:       '3',
		},
		"modifier only": {
			hotkey:  []string{"ctrl_l", "shift_l"},
			wantErr: true,
		},
		"two regular keys": {
			hotkey:  []string{"space", "f9"},
			wantErr: true,
		},
		"unknown key": {
			hotkey:  []string{"ctrl_l", "volume_up"},
			wantErr: true,
		},
		"empty": {
			hotkey:  nil,
			wantErr: true,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			b, err := translateBinding(tc.hotkey)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %v", tc.hotkey)
				}
				return
			}
			if err != nil {
				t.Fatalf("translate failed: %v", err)
			}
			if b.modifiers != tc.modifiers || b.key != tc.key {
				t.Fatalf("translateBinding(%v) = %+v, want modifiers=%#x key=%#x", tc.hotkey, b, tc.modifiers, tc.key)
			}
		})
	}
}
