// Package hotkey registers the global pause/resume shortcut. It uses the OS
// hotkey facility rather than the low-level keyboard hook, so binding a
// shortcut never installs keyboard capture.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"globalmkh/internal/hook"
)

// ErrUnsupported is returned by New on platforms without hotkey support.
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Hotkey is a registered global shortcut.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Spec is a parsed shortcut such as "Ctrl+Alt+P".
type Spec struct {
	Ctrl, Shift, Alt, Win bool

	Key string // canonical key name
	VK  uint32 // virtual-key code of Key
}

// String formats the spec in canonical order.
func (s Spec) String() string {
	var parts []string
	if s.Shift {
		parts = append(parts, "Shift")
	}
	if s.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if s.Alt {
		parts = append(parts, "Alt")
	}
	if s.Win {
		parts = append(parts, "Win")
	}
	return strings.Join(append(parts, s.Key), "+")
}

// Parse parses a shortcut string. Exactly one non-modifier key and at least
// one modifier are required.
func Parse(str string) (Spec, error) {
	var spec Spec
	if strings.TrimSpace(str) == "" {
		return spec, fmt.Errorf("empty hotkey")
	}

	for _, raw := range strings.Split(str, "+") {
		part := strings.TrimSpace(raw)
		switch strings.ToUpper(part) {
		case "CTRL", "CONTROL":
			spec.Ctrl = true
		case "SHIFT":
			spec.Shift = true
		case "ALT", "OPTION":
			spec.Alt = true
		case "WIN", "META", "SUPER", "CMD":
			spec.Win = true
		case "":
			return Spec{}, fmt.Errorf("hotkey %q: empty key", str)
		default:
			if spec.Key != "" {
				return Spec{}, fmt.Errorf("hotkey %q: more than one key", str)
			}
			vk, ok := hook.VKCode(part)
			if !ok {
				return Spec{}, fmt.Errorf("hotkey %q: unknown key %q", str, part)
			}
			spec.Key = hook.VKName(vk)
			spec.VK = vk
		}
	}

	if spec.Key == "" {
		return Spec{}, fmt.Errorf("hotkey %q: missing key", str)
	}
	if !spec.Ctrl && !spec.Shift && !spec.Alt && !spec.Win {
		return Spec{}, fmt.Errorf("hotkey %q: at least one modifier is required", str)
	}
	return spec, nil
}

// Listen registers hk and calls fn on every key-down until ctx is done.
func Listen(ctx context.Context, hk Hotkey, fn func()) error {
	if err := hk.Register(); err != nil {
		return err
	}
	go func() {
		defer hk.Unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				fn()
			}
		}
	}()
	return nil
}
