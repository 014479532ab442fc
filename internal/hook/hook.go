// Package hook provides the platform hook provider: the component that
// installs system-wide low-level mouse and keyboard hooks and delivers raw
// callback parameters.
//
// Installing a hook starts a dedicated capture thread that lives for the rest
// of the process. Hooks are installed at most once per category and are never
// uninstalled; pause and resume only detach and reattach the OS hook on that
// thread.
package hook

// Raw event kinds passed to the callbacks.
const (
	KindMouseMove  = "mousemove"
	KindMouseDown  = "mousedown"
	KindMouseUp    = "mouseup"
	KindMouseWheel = "mousewheel"
	KindKeyDown    = "keydown"
	KindKeyUp      = "keyup"
)

// Wheel axes reported in the button field of a mousewheel callback.
const (
	AxisVertical   = 0
	AxisHorizontal = 1
)

// MouseFunc receives raw mouse hook data. For wheel events button carries the
// axis and rawDelta the untouched 32-bit mouseData word.
type MouseFunc func(kind string, x, y, button int, rawDelta int64)

// KeyboardFunc receives raw keyboard hook data. Modifier flags describe the
// key state at the instant of the event.
type KeyboardFunc func(kind, keyName string, shift, ctrl, alt, meta, crazy bool)

// Provider is the platform hook capability consumed by the input core.
type Provider interface {
	InstallMouseHook(fn MouseFunc) bool
	InstallKeyboardHook(fn KeyboardFunc) bool

	// EnableMouseMove and DisableMouseMove toggle WM_MOUSEMOVE delivery
	// without touching button and wheel events.
	EnableMouseMove()
	DisableMouseMove()

	PauseMouse() bool
	ResumeMouse() bool
	PauseKeyboard() bool
	ResumeKeyboard() bool
}
