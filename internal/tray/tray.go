// Package tray provides the pause/resume menu using getlantern/systray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"globalmkh/internal/input"
)

// Controller is the part of the emitter the tray drives.
type Controller interface {
	Toggle(cat input.Category) (bool, error)
	IsPaused(cat input.Category) bool
	Watch(fn func(input.Category, input.CategoryState))
}

// Tray manages the system tray icon and menu
type Tray struct {
	ctrl   Controller
	log    zerolog.Logger
	onQuit func()

	mu     sync.Mutex
	items  map[input.Category]*systray.MenuItem
	quitCh chan struct{}
}

// New creates a tray for ctrl. onQuit runs when the user picks Quit.
func New(ctrl Controller, onQuit func(), log zerolog.Logger) *Tray {
	return &Tray{
		ctrl:   ctrl,
		log:    log,
		onQuit: onQuit,
		items:  make(map[input.Category]*systray.MenuItem),
		quitCh: make(chan struct{}),
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("globalmkh")
	systray.SetTooltip("Global mouse and keyboard hooks")

	for _, cat := range input.Categories {
		item := systray.AddMenuItem(menuTitle(cat, t.ctrl.IsPaused(cat)), "")
		t.mu.Lock()
		t.items[cat] = item
		t.mu.Unlock()

		go func(cat input.Category, item *systray.MenuItem) {
			for {
				select {
				case <-item.ClickedCh:
					if _, err := t.ctrl.Toggle(cat); err != nil {
						t.log.Warn().Err(err).Str("category", string(cat)).Msg("toggle from tray failed")
					}
				case <-t.quitCh:
					return
				}
			}
		}(cat, item)
	}

	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Stop capturing and exit")
	go func() {
		select {
		case <-quit.ClickedCh:
			if t.onQuit != nil {
				t.onQuit()
			}
		case <-t.quitCh:
		}
	}()

	t.ctrl.Watch(func(cat input.Category, st input.CategoryState) {
		t.mu.Lock()
		item := t.items[cat]
		t.mu.Unlock()
		if item != nil {
			item.SetTitle(menuTitle(cat, st.Paused))
		}
		t.refreshIcon()
	})
	t.refreshIcon()
}

func (t *Tray) refreshIcon() {
	paused := true
	for _, cat := range input.Categories {
		paused = paused && t.ctrl.IsPaused(cat)
	}
	if paused {
		systray.SetIcon(pausedIcon)
	} else {
		systray.SetIcon(activeIcon)
	}
}

// menuTitle names the action the item performs for the current state.
func menuTitle(cat input.Category, paused bool) string {
	if paused {
		return fmt.Sprintf("Resume %s", cat)
	}
	return fmt.Sprintf("Pause %s", cat)
}

var (
	activeIcon = solidIcon(0x2e, 0xa0, 0x43)
	pausedIcon = solidIcon(0x80, 0x80, 0x80)
)

// solidIcon returns a 16x16 32-bit ICO filled with one colour.
func solidIcon(r, g, b byte) []byte {
	const (
		headerSize = 6 + 16
		dibSize    = 40
		pixelBytes = 16 * 16 * 4
		maskBytes  = 16 * 4
	)
	icon := make([]byte, headerSize+dibSize+pixelBytes+maskBytes)

	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x68, 0x04, 0x00, 0x00, // dibSize + pixelBytes + maskBytes
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
	})

	// BGRA pixels; the AND mask stays zero.
	px := icon[headerSize+dibSize : headerSize+dibSize+pixelBytes]
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = b, g, r, 0xff
	}
	return icon
}
