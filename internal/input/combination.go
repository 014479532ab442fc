package input

import (
	"strings"

	"globalmkh/internal/hook"
)

// Combination builds the "Shift+Ctrl+Alt+Key" string for a key event. A
// modifier is listed when it is held, or when the event is that modifier's
// own release. Modifiers always come first in the fixed order Shift, Ctrl,
// Alt and a modifier key is never repeated as the trailing key.
func Combination(keyName string, shift, ctrl, alt bool) string {
	keys := make([]string, 0, 4)

	if shift || keyName == hook.KeyShift {
		keys = append(keys, hook.KeyShift)
	}
	if ctrl || keyName == hook.KeyCtrl {
		keys = append(keys, hook.KeyCtrl)
	}
	if alt || keyName == hook.KeyAlt {
		keys = append(keys, hook.KeyAlt)
	}
	if !hook.IsModifier(keyName) {
		keys = append(keys, keyName)
	}

	return strings.Join(keys, "+")
}
