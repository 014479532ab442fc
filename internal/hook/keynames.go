package hook

import (
	"fmt"
	"strings"
	"sync"
)

// Virtual-key codes used by the key name table.
const (
	vkBack     = 0x08
	vkTab      = 0x09
	vkReturn   = 0x0D
	vkShift    = 0x10
	vkControl  = 0x11
	vkMenu     = 0x12
	vkPause    = 0x13
	vkCapital  = 0x14
	vkEscape   = 0x1B
	vkSpace    = 0x20
	vkPrior    = 0x21
	vkNext     = 0x22
	vkEnd      = 0x23
	vkHome     = 0x24
	vkLeft     = 0x25
	vkUp       = 0x26
	vkRight    = 0x27
	vkDown     = 0x28
	vkSnapshot = 0x2C
	vkInsert   = 0x2D
	vkDelete   = 0x2E
	vkLWin     = 0x5B
	vkRWin     = 0x5C
	vkApps     = 0x5D
	vkNumpad0  = 0x60
	vkNumpad9  = 0x69
	vkMultiply = 0x6A
	vkAdd      = 0x6B
	vkSubtract = 0x6D
	vkDecimal  = 0x6E
	vkDivide   = 0x6F
	vkF1       = 0x70
	vkF24      = 0x87
	vkNumLock  = 0x90
	vkScroll   = 0x91
	vkLShift   = 0xA0
	vkRShift   = 0xA1
	vkLControl = 0xA2
	vkRControl = 0xA3
	vkLMenu    = 0xA4
	vkRMenu    = 0xA5
)

// Key names shared with the combination tracker.
const (
	KeyShift = "Shift"
	KeyCtrl  = "Ctrl"
	KeyAlt   = "Alt"
	KeyMeta  = "Meta"
)

var keyNames = map[uint32]string{
	vkBack:     "Backspace",
	vkTab:      "Tab",
	vkReturn:   "Enter",
	vkPause:    "Pause",
	vkCapital:  "CapsLock",
	vkEscape:   "Esc",
	vkSpace:    "Space",
	vkPrior:    "PageUp",
	vkNext:     "PageDown",
	vkEnd:      "End",
	vkHome:     "Home",
	vkLeft:     "Left",
	vkUp:       "Up",
	vkRight:    "Right",
	vkDown:     "Down",
	vkSnapshot: "PrintScreen",
	vkInsert:   "Insert",
	vkDelete:   "Delete",
	vkApps:     "Menu",
	vkMultiply: "NumMultiply",
	vkAdd:      "NumAdd",
	vkSubtract: "NumSubtract",
	vkDecimal:  "NumDecimal",
	vkDivide:   "NumDivide",
	vkNumLock:  "NumLock",
	vkScroll:   "ScrollLock",
	0xBA:       ";",
	0xBB:       "=",
	0xBC:       ",",
	0xBD:       "-",
	0xBE:       ".",
	0xBF:       "/",
	0xC0:       "`",
	0xDB:       "[",
	0xDC:       "\\",
	0xDD:       "]",
	0xDE:       "'",
}

// VKName returns the stable key name for a virtual-key code, or "" when the
// code has no fixed name. Left/right modifier variants collapse to one name.
func VKName(vk uint32) string {
	switch vk {
	case vkShift, vkLShift, vkRShift:
		return KeyShift
	case vkControl, vkLControl, vkRControl:
		return KeyCtrl
	case vkMenu, vkLMenu, vkRMenu:
		return KeyAlt
	case vkLWin, vkRWin:
		return KeyMeta
	}

	if name, ok := keyNames[vk]; ok {
		return name
	}

	// Letters A-Z and digits 0-9 share their ASCII codes.
	if (vk >= 'A' && vk <= 'Z') || (vk >= '0' && vk <= '9') {
		return string(rune(vk))
	}
	if vk >= vkNumpad0 && vk <= vkNumpad9 {
		return fmt.Sprintf("Num%d", vk-vkNumpad0)
	}
	if vk >= vkF1 && vk <= vkF24 {
		return fmt.Sprintf("F%d", vk-vkF1+1)
	}
	return ""
}

var (
	vkByNameOnce sync.Once
	vkByName     map[string]uint32
)

// VKCode is the inverse of VKName. Matching ignores case; modifiers map to
// their generic codes.
func VKCode(name string) (uint32, bool) {
	vkByNameOnce.Do(func() {
		vkByName = make(map[string]uint32)
		for vk := uint32(0xFE); vk > 0; vk-- {
			if n := VKName(vk); n != "" {
				vkByName[strings.ToLower(n)] = vk
			}
		}
	})
	vk, ok := vkByName[strings.ToLower(strings.TrimSpace(name))]
	return vk, ok
}

// IsModifier reports whether the key name is one of Shift, Ctrl or Alt.
func IsModifier(name string) bool {
	return name == KeyShift || name == KeyCtrl || name == KeyAlt
}

// keyTracker remembers held non-modifier keys so a key-up can report whether
// it ended a multi-key chord.
type keyTracker struct {
	held map[uint32]bool
}

func newKeyTracker() *keyTracker {
	return &keyTracker{held: make(map[uint32]bool)}
}

// down records a press of vk.
func (k *keyTracker) down(vk uint32, name string) {
	if IsModifier(name) || name == KeyMeta {
		return
	}
	k.held[vk] = true
}

// up records a release of vk and reports whether another non-modifier key
// was still held at that moment.
func (k *keyTracker) up(vk uint32, name string) bool {
	if IsModifier(name) || name == KeyMeta {
		return false
	}
	delete(k.held, vk)
	return len(k.held) > 0
}
