package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombination(t *testing.T) {
	tests := []struct {
		name             string
		key              string
		shift, ctrl, alt bool
		want             string
	}{
		{"ctrl c", "C", false, true, false, "Ctrl+C"},
		{"shift release", "Shift", false, false, false, "Shift"},
		{"shift ctrl esc", "Esc", true, true, false, "Shift+Ctrl+Esc"},
		{"plain key", "A", false, false, false, "A"},
		{"all modifiers", "Delete", true, true, true, "Shift+Ctrl+Alt+Delete"},
		{"ctrl release while shift held", "Ctrl", true, false, false, "Shift+Ctrl"},
		{"alt press", "Alt", false, false, true, "Alt"},
		{"meta is not a modifier here", "Meta", false, true, false, "Ctrl+Meta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Combination(tt.key, tt.shift, tt.ctrl, tt.alt))
		})
	}
}

func TestCombinationNeverRepeatsModifier(t *testing.T) {
	for _, key := range []string{"Shift", "Ctrl", "Alt"} {
		assert.Equal(t, key, Combination(key, key == "Shift", key == "Ctrl", key == "Alt"), key)
	}
}
