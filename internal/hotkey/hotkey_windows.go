//go:build windows

package hotkey

import (
	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

// New creates a hotkey using RegisterHotKey.
func New(spec Spec) (Hotkey, error) {
	var mods []hotkey.Modifier
	if spec.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if spec.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if spec.Alt {
		mods = append(mods, hotkey.ModAlt)
	}
	if spec.Win {
		mods = append(mods, hotkey.ModWin)
	}

	return &xHotkey{
		// Win32 hotkey keys are virtual-key codes.
		hk:      hotkey.New(mods, hotkey.Key(spec.VK)),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go h.pump(h.hk.Keydown(), h.keydown)
	go h.pump(h.hk.Keyup(), h.keyup)
	return nil
}

func (h *xHotkey) pump(in <-chan hotkey.Event, out chan struct{}) {
	for {
		select {
		case <-h.stop:
			return
		case <-in:
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

func (h *xHotkey) Unregister() {
	close(h.stop)
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}
