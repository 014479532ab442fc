//go:build windows

package hook

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPeekMessage         = user32.NewProc("PeekMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procGetKeyNameText      = user32.NewProc("GetKeyNameTextW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	WH_KEYBOARD_LL = 13
	WH_MOUSE_LL    = 14
	HC_ACTION      = 0
	PM_NOREMOVE    = 0x0000
	WM_USER        = 0x0400

	WM_KEYDOWN    = 0x0100
	WM_KEYUP      = 0x0101
	WM_SYSKEYDOWN = 0x0104
	WM_SYSKEYUP   = 0x0105

	WM_MOUSEMOVE   = 0x0200
	WM_LBUTTONDOWN = 0x0201
	WM_LBUTTONUP   = 0x0202
	WM_RBUTTONDOWN = 0x0204
	WM_RBUTTONUP   = 0x0205
	WM_MBUTTONDOWN = 0x0207
	WM_MBUTTONUP   = 0x0208
	WM_MOUSEWHEEL  = 0x020A
	WM_XBUTTONDOWN = 0x020B
	WM_XBUTTONUP   = 0x020C
	WM_MOUSEHWHEEL = 0x020E

	LLKHF_EXTENDED = 0x01
)

type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSLLHOOKSTRUCT struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type MSG struct {
	Hwnd    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Windows installs WH_MOUSE_LL and WH_KEYBOARD_LL hooks, each on its own
// locked OS thread running a message loop.
type Windows struct {
	log zerolog.Logger

	mu       sync.Mutex
	mouse    *hookThread
	keyboard *hookThread

	// Callback slots are a finite process resource; one per proc.
	mouseCB    uintptr
	keyboardCB uintptr

	mouseMove atomic.Bool
	mouseFn   MouseFunc
	keyFn     KeyboardFunc
	keys      *keyTracker // touched only from the keyboard hook thread
}

// New returns the Windows hook provider.
func New(log zerolog.Logger) Provider {
	w := &Windows{
		log:  log.With().Str("component", "hook").Logger(),
		keys: newKeyTracker(),
	}
	w.mouseCB = windows.NewCallback(w.mouseProc)
	w.keyboardCB = windows.NewCallback(w.keyboardProc)
	return w
}

// newThread prepares a capture thread for idHook. Retries after a failed
// install reuse the callbacks created in New.
func (w *Windows) newThread(idHook uintptr) *hookThread {
	t := &hookThread{idHook: idHook, log: w.log}
	if idHook == WH_MOUSE_LL {
		t.name, t.proc = "mouse", w.mouseCB
	} else {
		t.name, t.proc = "keyboard", w.keyboardCB
	}
	return t
}

func (w *Windows) InstallMouseHook(fn MouseFunc) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mouse != nil {
		return false
	}
	w.mouseFn = fn
	t := w.newThread(WH_MOUSE_LL)
	if !t.start() {
		return false
	}
	w.mouse = t
	return true
}

func (w *Windows) InstallKeyboardHook(fn KeyboardFunc) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keyboard != nil {
		return false
	}
	w.keyFn = fn
	t := w.newThread(WH_KEYBOARD_LL)
	if !t.start() {
		return false
	}
	w.keyboard = t
	return true
}

func (w *Windows) EnableMouseMove()  { w.mouseMove.Store(true) }
func (w *Windows) DisableMouseMove() { w.mouseMove.Store(false) }

func (w *Windows) PauseMouse() bool     { return w.thread(&w.mouse).post(false) }
func (w *Windows) ResumeMouse() bool    { return w.thread(&w.mouse).post(true) }
func (w *Windows) PauseKeyboard() bool  { return w.thread(&w.keyboard).post(false) }
func (w *Windows) ResumeKeyboard() bool { return w.thread(&w.keyboard).post(true) }

func (w *Windows) thread(t **hookThread) *hookThread {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *t
}

func (w *Windows) mouseProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == HC_ACTION {
		ms := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))
		x, y := int(ms.Pt.X), int(ms.Pt.Y)

		switch wParam {
		case WM_MOUSEMOVE:
			if w.mouseMove.Load() {
				w.mouseFn(KindMouseMove, x, y, 0, 0)
			}
		case WM_LBUTTONDOWN:
			w.mouseFn(KindMouseDown, x, y, 1, 0)
		case WM_LBUTTONUP:
			w.mouseFn(KindMouseUp, x, y, 1, 0)
		case WM_RBUTTONDOWN:
			w.mouseFn(KindMouseDown, x, y, 2, 0)
		case WM_RBUTTONUP:
			w.mouseFn(KindMouseUp, x, y, 2, 0)
		case WM_MBUTTONDOWN:
			w.mouseFn(KindMouseDown, x, y, 3, 0)
		case WM_MBUTTONUP:
			w.mouseFn(KindMouseUp, x, y, 3, 0)
		case WM_XBUTTONDOWN:
			w.mouseFn(KindMouseDown, x, y, xButton(ms.MouseData), 0)
		case WM_XBUTTONUP:
			w.mouseFn(KindMouseUp, x, y, xButton(ms.MouseData), 0)
		case WM_MOUSEWHEEL:
			w.mouseFn(KindMouseWheel, x, y, AxisVertical, int64(ms.MouseData))
		case WM_MOUSEHWHEEL:
			w.mouseFn(KindMouseWheel, x, y, AxisHorizontal, int64(ms.MouseData))
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

// xButton maps XBUTTON1/XBUTTON2 in the high word of mouseData to 4 and 5.
func xButton(mouseData uint32) int {
	if mouseData>>16 == 1 {
		return 4
	}
	return 5
}

func (w *Windows) keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == HC_ACTION {
		kbd := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))

		var kind string
		switch wParam {
		case WM_KEYDOWN, WM_SYSKEYDOWN:
			kind = KindKeyDown
		case WM_KEYUP, WM_SYSKEYUP:
			kind = KindKeyUp
		}

		name := VKName(kbd.VkCode)
		if name == "" {
			name = scanCodeName(kbd)
		}

		if kind != "" && name != "" {
			down := kind == KindKeyDown
			shift := asyncKeyDown(vkShift)
			ctrl := asyncKeyDown(vkControl)
			alt := asyncKeyDown(vkMenu)
			meta := asyncKeyDown(vkLWin) || asyncKeyDown(vkRWin)

			// The async state does not include the event being processed.
			switch name {
			case KeyShift:
				shift = down
			case KeyCtrl:
				ctrl = down
			case KeyAlt:
				alt = down
			case KeyMeta:
				meta = down
			}

			crazy := false
			if down {
				w.keys.down(kbd.VkCode, name)
			} else {
				crazy = w.keys.up(kbd.VkCode, name)
			}
			w.keyFn(kind, name, shift, ctrl, alt, meta, crazy)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func asyncKeyDown(vk uintptr) bool {
	r, _, _ := procGetAsyncKeyState.Call(vk)
	return r&0x8000 != 0
}

func scanCodeName(kbd *KBDLLHOOKSTRUCT) string {
	lParam := uintptr(kbd.ScanCode) << 16
	if kbd.Flags&LLKHF_EXTENDED != 0 {
		lParam |= 1 << 24
	}
	var buf [64]uint16
	n, _, _ := procGetKeyNameText.Call(lParam, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// hookThread owns one low-level hook. The OS hook is attached while want is
// true; pause and resume flip want and wake the thread with WM_USER.
type hookThread struct {
	name     string
	idHook   uintptr
	proc     uintptr
	log      zerolog.Logger
	threadID atomic.Uint32
	want     atomic.Bool
}

// start launches the capture thread and waits for the first
// SetWindowsHookEx attempt. The thread is never torn down once started.
func (t *hookThread) start() bool {
	result := make(chan bool, 1)
	go t.run(result)
	return <-result
}

func (t *hookThread) run(result chan<- bool) {
	runtime.LockOSThread()

	// Create the message queue before the thread id is published, otherwise
	// an early PostThreadMessage is rejected.
	var msg MSG
	procPeekMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, WM_USER, WM_USER, PM_NOREMOVE)

	hMod, _, _ := procGetModuleHandle.Call(0)
	hook, _, err := procSetWindowsHookEx.Call(t.idHook, t.proc, hMod, 0)
	if hook == 0 {
		t.log.Error().Err(err).Str("hook", t.name).Msg("SetWindowsHookEx failed")
		runtime.UnlockOSThread()
		result <- false
		return
	}
	if !t.want.Load() {
		procUnhookWindowsHookEx.Call(hook)
		hook = 0
	}

	t.threadID.Store(windows.GetCurrentThreadId())
	t.log.Info().Str("hook", t.name).Uint32("thread", t.threadID.Load()).Msg("hook thread started")
	result <- true

	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		if msg.Message != WM_USER {
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
			continue
		}

		switch want := t.want.Load(); {
		case !want && hook != 0:
			if r, _, err := procUnhookWindowsHookEx.Call(hook); r == 0 {
				t.log.Error().Err(err).Str("hook", t.name).Msg("UnhookWindowsHookEx failed")
				continue
			}
			hook = 0
			t.log.Debug().Str("hook", t.name).Msg("hook detached")
		case want && hook == 0:
			hook, _, err = procSetWindowsHookEx.Call(t.idHook, t.proc, hMod, 0)
			if hook == 0 {
				t.log.Error().Err(err).Str("hook", t.name).Msg("SetWindowsHookEx failed on resume")
				continue
			}
			t.log.Debug().Str("hook", t.name).Msg("hook attached")
		}
	}

	if hook != 0 {
		procUnhookWindowsHookEx.Call(hook)
	}
	t.log.Warn().Str("hook", t.name).Msg("hook thread exiting")
}

// post records the wanted state and wakes the thread. It reports false when
// the hook was never installed or the message could not be posted.
func (t *hookThread) post(want bool) bool {
	if t == nil {
		return false
	}
	id := t.threadID.Load()
	if id == 0 {
		return false
	}
	t.want.Store(want)
	r, _, _ := procPostThreadMessage.Call(uintptr(id), WM_USER, 0, 0)
	return r != 0
}
