package hook

import "sync"

// Fake is an in-memory Provider for tests. Install results are configurable
// and every call is counted.
type Fake struct {
	mu sync.Mutex

	FailMouseInstall    bool
	FailKeyboardInstall bool
	RejectPause         bool
	RejectResume        bool

	MouseInstalls    int
	KeyboardInstalls int

	calls Transitions

	mouseMove bool
	mouseFn   MouseFunc
	keyFn     KeyboardFunc
}

// NewFake returns a Fake that accepts every install.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) InstallMouseHook(fn MouseFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MouseInstalls++
	if f.FailMouseInstall {
		return false
	}
	f.mouseFn = fn
	return true
}

func (f *Fake) InstallKeyboardHook(fn KeyboardFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KeyboardInstalls++
	if f.FailKeyboardInstall {
		return false
	}
	f.keyFn = fn
	return true
}

func (f *Fake) EnableMouseMove() {
	f.mu.Lock()
	f.mouseMove = true
	f.mu.Unlock()
}

func (f *Fake) DisableMouseMove() {
	f.mu.Lock()
	f.mouseMove = false
	f.mu.Unlock()
}

// MouseMoveEnabled reports the current mouse-move capture flag.
func (f *Fake) MouseMoveEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mouseMove
}

// Transitions counts pause and resume calls per category.
type Transitions struct {
	MousePause     int
	MouseResume    int
	KeyboardPause  int
	KeyboardResume int
}

func (f *Fake) PauseMouse() bool     { return f.transition(&f.calls.MousePause, &f.RejectPause) }
func (f *Fake) PauseKeyboard() bool  { return f.transition(&f.calls.KeyboardPause, &f.RejectPause) }
func (f *Fake) ResumeMouse() bool    { return f.transition(&f.calls.MouseResume, &f.RejectResume) }
func (f *Fake) ResumeKeyboard() bool { return f.transition(&f.calls.KeyboardResume, &f.RejectResume) }

func (f *Fake) transition(counter *int, reject *bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	*counter++
	return !*reject
}

// Transitions returns the pause and resume call counts.
func (f *Fake) Transitions() Transitions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Counts returns install counts under the lock.
func (f *Fake) Counts() (mouse, keyboard int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.MouseInstalls, f.KeyboardInstalls
}

// SimMouse fires the installed mouse callback. It reports false when no
// mouse hook is installed.
func (f *Fake) SimMouse(kind string, x, y, button int, rawDelta int64) bool {
	f.mu.Lock()
	fn := f.mouseFn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(kind, x, y, button, rawDelta)
	return true
}

// SimKey fires the installed keyboard callback.
func (f *Fake) SimKey(kind, keyName string, shift, ctrl, alt, meta, crazy bool) bool {
	f.mu.Lock()
	fn := f.keyFn
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(kind, keyName, shift, ctrl, alt, meta, crazy)
	return true
}
