package input

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"globalmkh/internal/hook"
)

// CategoryState is the hook bookkeeping for one category.
type CategoryState struct {
	Installed        bool `json:"installed"`
	Paused           bool `json:"paused"`
	MouseMoveEnabled bool `json:"mouseMoveEnabled,omitempty"`
}

// listenerCounter reports the live subscriber count of an event name.
type listenerCounter interface {
	ListenerCount(name EventName) int
}

// Lifecycle installs hooks when the first subscriber of a category arrives
// and drives the per-category pause state. All transitions are serialised
// by mu; the provider is only called with mu held.
//
// A hook is installed at most once per category. Each installation keeps a
// provider capture thread alive for the rest of the process; unsubscribing
// only updates bookkeeping and the mouse-move capture flag.
type Lifecycle struct {
	mu         sync.Mutex
	provider   hook.Provider
	counter    listenerCounter
	onMouse    hook.MouseFunc
	onKeyboard hook.KeyboardFunc
	state      map[Category]*CategoryState
	subscribed map[EventName]bool
	watchers   []func(Category, CategoryState)
	log        zerolog.Logger
}

func newLifecycle(p hook.Provider, counter listenerCounter, onMouse hook.MouseFunc, onKeyboard hook.KeyboardFunc, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		provider:   p,
		counter:    counter,
		onMouse:    onMouse,
		onKeyboard: onKeyboard,
		state: map[Category]*CategoryState{
			Mouse:    {Paused: true},
			Keyboard: {Paused: true},
		},
		subscribed: make(map[EventName]bool),
		log:        log,
	}
}

// OnSubscribe records that name has a subscriber, installing the category's
// hook first if needed. It returns false when the hook could not be
// installed; the name is then not recorded and the next call retries.
func (l *Lifecycle) OnSubscribe(name EventName) bool {
	cat, ok := CategoryOf(name)
	if !ok {
		return false
	}

	l.mu.Lock()
	var changed bool
	defer func() {
		snap := *l.state[cat]
		l.mu.Unlock()
		if changed {
			l.notify(cat, snap)
		}
	}()

	if l.subscribed[name] {
		return true
	}

	st := l.state[cat]
	if name == MouseMove && !st.MouseMoveEnabled {
		l.provider.EnableMouseMove()
		st.MouseMoveEnabled = true
	}

	if !st.Installed {
		if !l.install(cat) {
			l.log.Warn().Str("category", string(cat)).Str("event", string(name)).Msg("hook installation failed")
			if name == MouseMove {
				l.provider.DisableMouseMove()
				st.MouseMoveEnabled = false
			}
			return false
		}
		st.Installed = true
		l.log.Info().Str("category", string(cat)).Msg("hook installed")

		// The first real subscriber starts capture.
		st.Paused = false
		if !l.providerResume(cat) {
			l.log.Warn().Str("category", string(cat)).Msg("provider did not resume freshly installed hook")
		}
		changed = true
	}

	l.subscribed[name] = true
	l.log.Debug().Str("event", string(name)).Msg("subscribed")
	return true
}

// OnUnsubscribe drops name once it has no subscribers left. Hooks stay
// installed; only mouse-move capture is switched off.
func (l *Lifecycle) OnUnsubscribe(name EventName) {
	cat, ok := CategoryOf(name)
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counter.ListenerCount(name) > 0 {
		return
	}

	if l.subscribed[name] {
		delete(l.subscribed, name)
		l.log.Debug().Str("event", string(name)).Msg("unsubscribed")
	}

	if st := l.state[cat]; name == MouseMove && st.MouseMoveEnabled {
		l.provider.DisableMouseMove()
		st.MouseMoveEnabled = false
	}
}

func (l *Lifecycle) install(cat Category) bool {
	switch cat {
	case Mouse:
		return l.provider.InstallMouseHook(l.onMouse)
	case Keyboard:
		return l.provider.InstallKeyboardHook(l.onKeyboard)
	}
	return false
}

func (l *Lifecycle) providerPause(cat Category) bool {
	if cat == Mouse {
		return l.provider.PauseMouse()
	}
	return l.provider.PauseKeyboard()
}

func (l *Lifecycle) providerResume(cat Category) bool {
	if cat == Mouse {
		return l.provider.ResumeMouse()
	}
	return l.provider.ResumeKeyboard()
}

// Pause suspends capture for cat. It returns false, nil when cat is already
// paused and false, ErrProviderRejected when the provider refused.
func (l *Lifecycle) Pause(cat Category) (bool, error) {
	return l.transition(cat, true)
}

// Resume restarts capture for cat with the same result convention as Pause.
func (l *Lifecycle) Resume(cat Category) (bool, error) {
	return l.transition(cat, false)
}

// Toggle resumes a paused category and pauses an active one.
func (l *Lifecycle) Toggle(cat Category) (bool, error) {
	l.mu.Lock()
	st, ok := l.state[cat]
	if !ok {
		l.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	paused := st.Paused
	l.mu.Unlock()

	return l.transition(cat, !paused)
}

func (l *Lifecycle) transition(cat Category, pause bool) (bool, error) {
	l.mu.Lock()
	st, ok := l.state[cat]
	if !ok {
		l.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	if st.Paused == pause {
		l.mu.Unlock()
		return false, nil
	}

	st.Paused = pause
	var accepted bool
	if pause {
		accepted = l.providerPause(cat)
	} else {
		accepted = l.providerResume(cat)
	}
	snap := *st
	l.mu.Unlock()

	l.notify(cat, snap)
	l.log.Info().Str("category", string(cat)).Bool("paused", pause).Bool("accepted", accepted).Msg("capture state changed")

	if !accepted {
		op := "resume"
		if pause {
			op = "pause"
		}
		return false, fmt.Errorf("%s %s: %w", op, cat, ErrProviderRejected)
	}
	return true, nil
}

// IsPaused reports whether capture for cat is paused. Unknown categories
// report true.
func (l *Lifecycle) IsPaused(cat Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.state[cat]
	return !ok || st.Paused
}

// State returns a copy of the bookkeeping for cat.
func (l *Lifecycle) State(cat Category) CategoryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.state[cat]; ok {
		return *st
	}
	return CategoryState{}
}

// Subscribed returns the subscribed event names in sorted order.
func (l *Lifecycle) Subscribed() []EventName {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]EventName, 0, len(l.subscribed))
	for n := range l.subscribed {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// IsSubscribed reports whether name is in the subscription set.
func (l *Lifecycle) IsSubscribed(name EventName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.subscribed[name]
}

// Watch registers fn to run after every pause state change.
func (l *Lifecycle) Watch(fn func(Category, CategoryState)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
}

func (l *Lifecycle) notify(cat Category, st CategoryState) {
	l.mu.Lock()
	watchers := slices.Clone(l.watchers)
	l.mu.Unlock()
	for _, fn := range watchers {
		fn(cat, st)
	}
}
