package input

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmkh/internal/hook"
)

// fixedCounter lets lifecycle tests control the listener count directly.
type fixedCounter map[EventName]int

func (c fixedCounter) ListenerCount(name EventName) int { return c[name] }

func newTestLifecycle(p hook.Provider) (*Lifecycle, fixedCounter) {
	counter := fixedCounter{}
	l := newLifecycle(p, counter,
		func(string, int, int, int, int64) {},
		func(string, string, bool, bool, bool, bool, bool) {},
		zerolog.Nop())
	return l, counter
}

func TestLifecycleStartsPaused(t *testing.T) {
	l, _ := newTestLifecycle(hook.NewFake())
	for _, c := range Categories {
		assert.True(t, l.IsPaused(c), c)
		assert.False(t, l.State(c).Installed, c)
	}
	assert.Empty(t, l.Subscribed())
}

func TestLifecycleSubscribeThenUnsubscribe(t *testing.T) {
	for _, name := range EventNames {
		t.Run(string(name), func(t *testing.T) {
			fake := hook.NewFake()
			l, _ := newTestLifecycle(fake)
			cat, _ := CategoryOf(name)

			require.True(t, l.OnSubscribe(name))
			assert.True(t, l.IsSubscribed(name))
			assert.False(t, l.IsPaused(cat), "first subscriber resumes capture")

			l.OnUnsubscribe(name)
			st := l.State(cat)
			assert.True(t, st.Installed)
			assert.False(t, l.IsSubscribed(name))
			assert.False(t, st.MouseMoveEnabled)
			assert.False(t, fake.MouseMoveEnabled())
		})
	}
}

func TestLifecycleUnsubscribeKeepsNameWhileListenersRemain(t *testing.T) {
	fake := hook.NewFake()
	l, counter := newTestLifecycle(fake)

	require.True(t, l.OnSubscribe(MouseMove))
	counter[MouseMove] = 1
	l.OnUnsubscribe(MouseMove)

	assert.True(t, l.IsSubscribed(MouseMove))
	assert.True(t, fake.MouseMoveEnabled())
}

func TestLifecycleMouseMoveIndependentOfOtherMouseEvents(t *testing.T) {
	fake := hook.NewFake()
	l, _ := newTestLifecycle(fake)

	require.True(t, l.OnSubscribe(MouseDown))
	assert.False(t, fake.MouseMoveEnabled())

	require.True(t, l.OnSubscribe(MouseMove))
	assert.True(t, fake.MouseMoveEnabled())
	assert.True(t, l.State(Mouse).MouseMoveEnabled)

	l.OnUnsubscribe(MouseMove)
	assert.False(t, fake.MouseMoveEnabled())
	assert.True(t, l.IsSubscribed(MouseDown))
}

func TestLifecycleInstallsOncePerCategory(t *testing.T) {
	fake := hook.NewFake()
	l, _ := newTestLifecycle(fake)

	require.True(t, l.OnSubscribe(MouseDown))
	require.True(t, l.OnSubscribe(MouseUp))
	require.True(t, l.OnSubscribe(MouseDown))

	mouse, keyboard := fake.Counts()
	assert.Equal(t, 1, mouse)
	assert.Equal(t, 0, keyboard)

	l.OnUnsubscribe(MouseDown)
	l.OnUnsubscribe(MouseUp)
	require.True(t, l.OnSubscribe(MouseWheel))

	mouse, _ = fake.Counts()
	assert.Equal(t, 1, mouse, "hooks are never reinstalled")
}

func TestLifecycleFailedInstall(t *testing.T) {
	fake := hook.NewFake()
	fake.FailMouseInstall = true
	l, _ := newTestLifecycle(fake)

	assert.False(t, l.OnSubscribe(MouseMove))
	assert.True(t, l.IsPaused(Mouse))
	assert.False(t, l.IsSubscribed(MouseMove))
	assert.False(t, l.State(Mouse).Installed)
	assert.False(t, fake.MouseMoveEnabled(), "mouse-move capture is rolled back")

	fake.FailMouseInstall = false
	assert.True(t, l.OnSubscribe(MouseMove))

	mouse, _ := fake.Counts()
	assert.Equal(t, 2, mouse, "second subscribe retries installation")
	assert.False(t, l.IsPaused(Mouse))
	assert.True(t, fake.MouseMoveEnabled())
}

func TestLifecyclePauseResumeIdempotence(t *testing.T) {
	for _, cat := range Categories {
		t.Run(string(cat), func(t *testing.T) {
			fake := hook.NewFake()
			l, _ := newTestLifecycle(fake)
			name := KeyDown
			if cat == Mouse {
				name = MouseDown
			}
			require.True(t, l.OnSubscribe(name))
			assert.Equal(t, transitions(cat, 0, 1), fake.Transitions(), "install resumes its own category")

			ok, err := l.Pause(cat)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = l.Pause(cat)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.True(t, l.IsPaused(cat))

			ok, err = l.Resume(cat)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = l.Resume(cat)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.False(t, l.IsPaused(cat))

			assert.Equal(t, transitions(cat, 1, 2), fake.Transitions(), "only %s provider calls", cat)
		})
	}
}

func TestLifecycleCategoriesAreIndependent(t *testing.T) {
	fake := hook.NewFake()
	l, _ := newTestLifecycle(fake)
	require.True(t, l.OnSubscribe(KeyUp))
	require.True(t, l.OnSubscribe(MouseUp))

	_, err := l.Pause(Keyboard)
	require.NoError(t, err)
	assert.True(t, l.IsPaused(Keyboard))
	assert.False(t, l.IsPaused(Mouse))

	_, err = l.Resume(Keyboard)
	require.NoError(t, err)
	assert.Equal(t, hook.Transitions{
		MouseResume:    1,
		KeyboardPause:  1,
		KeyboardResume: 2,
	}, fake.Transitions(), "keyboard transitions never reach the mouse hook")
}

// transitions builds the expected provider calls when only cat moved.
func transitions(cat Category, pauses, resumes int) hook.Transitions {
	if cat == Mouse {
		return hook.Transitions{MousePause: pauses, MouseResume: resumes}
	}
	return hook.Transitions{KeyboardPause: pauses, KeyboardResume: resumes}
}

func TestLifecycleProviderRejection(t *testing.T) {
	fake := hook.NewFake()
	l, _ := newTestLifecycle(fake)
	require.True(t, l.OnSubscribe(KeyDown))

	fake.RejectPause = true
	ok, err := l.Pause(Keyboard)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrProviderRejected))
	assert.True(t, l.IsPaused(Keyboard), "state follows the request")

	ok, err = l.Pause(Keyboard)
	assert.False(t, ok)
	assert.NoError(t, err, "already paused is not a provider failure")
}

func TestLifecycleToggle(t *testing.T) {
	l, _ := newTestLifecycle(hook.NewFake())
	require.True(t, l.OnSubscribe(MouseWheel))

	ok, err := l.Toggle(Mouse)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.IsPaused(Mouse))

	ok, err = l.Toggle(Mouse)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, l.IsPaused(Mouse))
}

func TestLifecycleUnknownCategory(t *testing.T) {
	l, _ := newTestLifecycle(hook.NewFake())
	for _, op := range []func(Category) (bool, error){l.Pause, l.Resume, l.Toggle} {
		_, err := op("gamepad")
		assert.ErrorIs(t, err, ErrUnknownCategory)
	}
	assert.True(t, l.IsPaused("gamepad"))
	assert.False(t, l.OnSubscribe("gamepad"))
}

func TestLifecycleWatchersSeeTransitions(t *testing.T) {
	l, _ := newTestLifecycle(hook.NewFake())

	var seen []CategoryState
	l.Watch(func(c Category, st CategoryState) {
		if c == Keyboard {
			seen = append(seen, st)
		}
	})

	require.True(t, l.OnSubscribe(KeyDown))
	_, _ = l.Pause(Keyboard)
	_, _ = l.Pause(Keyboard)

	require.Len(t, seen, 2)
	assert.Equal(t, CategoryState{Installed: true, Paused: false}, seen[0])
	assert.Equal(t, CategoryState{Installed: true, Paused: true}, seen[1])
}

func TestLifecycleWatcherMayRegisterWatcher(t *testing.T) {
	l, _ := newTestLifecycle(hook.NewFake())

	var calls []string
	l.Watch(func(Category, CategoryState) {
		calls = append(calls, "outer")
		l.Watch(func(Category, CategoryState) { calls = append(calls, "inner") })
	})

	require.True(t, l.OnSubscribe(KeyDown))
	assert.Equal(t, []string{"outer"}, calls, "watchers added during a notification wait for the next one")
}
