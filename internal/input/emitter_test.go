package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmkh/internal/hook"
)

func startEmitter(t *testing.T, p hook.Provider, opts ...Option) *Emitter {
	t.Helper()
	e := NewEmitter(p, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestEmitterDeliversDecodedEvents(t *testing.T) {
	fake := hook.NewFake()
	e := startEmitter(t, fake)

	got := make(chan Event, 4)
	_, err := e.On(KeyUp, func(ev Event) error {
		got <- ev
		return nil
	})
	require.NoError(t, err)

	require.True(t, fake.SimKey(hook.KindKeyUp, "Shift", false, false, false, false, false))

	ev := receive(t, got)
	assert.Equal(t, KeyUp, ev.Name)
	require.NotNil(t, ev.Keyboard)
	assert.Equal(t, "Shift", ev.Keyboard.Combination)
	require.NotNil(t, ev.Keyboard.CrazyCombination)
	assert.False(t, *ev.Keyboard.CrazyCombination)
}

func TestEmitterRoutesByName(t *testing.T) {
	fake := hook.NewFake()
	e := startEmitter(t, fake)

	downs := make(chan Event, 4)
	wheels := make(chan Event, 4)
	_, err := e.On(MouseDown, func(ev Event) error { downs <- ev; return nil })
	require.NoError(t, err)
	_, err = e.On(MouseWheel, func(ev Event) error { wheels <- ev; return nil })
	require.NoError(t, err)

	fake.SimMouse(hook.KindMouseWheel, 1, 1, hook.AxisVertical, 7864320)
	fake.SimMouse(hook.KindMouseDown, 2, 2, 1, 0)

	w := receive(t, wheels)
	require.NotNil(t, w.Mouse.Delta)
	assert.Equal(t, 1.0, *w.Mouse.Delta)

	d := receive(t, downs)
	require.NotNil(t, d.Mouse.Button)
	assert.Equal(t, 1, *d.Mouse.Button)

	assert.Empty(t, downs)
	assert.Empty(t, wheels)
}

func TestEmitterSingleInstallForManySubscribers(t *testing.T) {
	fake := hook.NewFake()
	e := NewEmitter(fake)

	for _, name := range []EventName{MouseDown, MouseUp, MouseDown, MouseMove} {
		_, err := e.On(name, func(Event) error { return nil })
		require.NoError(t, err)
	}
	mouse, keyboard := fake.Counts()
	assert.Equal(t, 1, mouse)
	assert.Equal(t, 0, keyboard)
	assert.Equal(t, 2, e.ListenerCount(MouseDown))
}

func TestEmitterInstallFailure(t *testing.T) {
	fake := hook.NewFake()
	fake.FailKeyboardInstall = true
	e := NewEmitter(fake)

	sub, err := e.On(KeyDown, func(Event) error { return nil })
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.Equal(t, 0, e.ListenerCount(KeyDown), "listener is dropped on failure")
	assert.True(t, e.IsPaused(Keyboard))
	assert.NotContains(t, e.Status().Subscribed, KeyDown)

	fake.FailKeyboardInstall = false
	sub, err = e.On(KeyDown, func(Event) error { return nil })
	require.NoError(t, err)
	require.NotNil(t, sub)
	_, keyboard := fake.Counts()
	assert.Equal(t, 2, keyboard)
	assert.False(t, e.IsPaused(Keyboard))
}

func TestEmitterUnknownEvent(t *testing.T) {
	e := NewEmitter(hook.NewFake())
	_, err := e.On("click", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEmitterLastUnsubscribeDisablesMouseMove(t *testing.T) {
	fake := hook.NewFake()
	e := NewEmitter(fake)

	a, err := e.On(MouseMove, func(Event) error { return nil })
	require.NoError(t, err)
	b, err := e.On(MouseMove, func(Event) error { return nil })
	require.NoError(t, err)

	a.Close()
	assert.True(t, fake.MouseMoveEnabled())
	assert.Contains(t, e.Status().Subscribed, MouseMove)

	e.Off(b)
	b.Close()
	assert.False(t, fake.MouseMoveEnabled())
	assert.NotContains(t, e.Status().Subscribed, MouseMove)
	assert.True(t, e.Status().Categories[Mouse].Installed)
}

func TestEmitterHandlerFailuresDoNotStopDelivery(t *testing.T) {
	fake := hook.NewFake()
	e := startEmitter(t, fake)

	var mu sync.Mutex
	var calls []string
	record := func(s string) {
		mu.Lock()
		calls = append(calls, s)
		mu.Unlock()
	}
	done := make(chan Event, 1)

	_, err := e.On(KeyDown, func(Event) error { record("panic"); panic("boom") })
	require.NoError(t, err)
	_, err = e.On(KeyDown, func(Event) error { record("error"); return errors.New("nope") })
	require.NoError(t, err)
	_, err = e.On(KeyDown, func(ev Event) error { record("ok"); done <- ev; return nil })
	require.NoError(t, err)

	fake.SimKey(hook.KindKeyDown, "A", false, true, false, false, false)
	ev := receive(t, done)
	assert.Equal(t, "Ctrl+A", ev.Keyboard.Combination)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"panic", "error", "ok"}, calls)
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	fake := hook.NewFake()
	e := NewEmitter(fake, WithQueueSize(2))
	_, err := e.On(MouseUp, func(Event) error { return nil })
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		fake.SimMouse(hook.KindMouseUp, i, i, 1, 0)
	}
	assert.Equal(t, uint64(3), e.Status().Dropped)
}

func TestEmitterCountsMalformedEvents(t *testing.T) {
	fake := hook.NewFake()
	e := startEmitter(t, fake)

	got := make(chan Event, 1)
	_, err := e.On(MouseUp, func(ev Event) error { got <- ev; return nil })
	require.NoError(t, err)

	fake.SimMouse("mousehover", 0, 0, 0, 0)
	fake.SimMouse(hook.KindMouseUp, 0, 0, 2, 0)
	receive(t, got)

	assert.Equal(t, uint64(1), e.Status().Malformed)
}

func TestEmitterUsesClock(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := hook.NewFake()
	e := startEmitter(t, fake, WithClock(func() time.Time { return at }))

	got := make(chan Event, 1)
	_, err := e.On(KeyDown, func(ev Event) error { got <- ev; return nil })
	require.NoError(t, err)
	fake.SimKey(hook.KindKeyDown, "B", false, false, false, false, false)

	assert.Equal(t, at, receive(t, got).Time)
}

func TestEmitterToggleAll(t *testing.T) {
	e := NewEmitter(hook.NewFake())

	paused, err := e.ToggleAll()
	require.NoError(t, err)
	assert.True(t, paused, "nothing installed reports paused")

	_, err = e.On(KeyDown, func(Event) error { return nil })
	require.NoError(t, err)
	_, err = e.On(MouseUp, func(Event) error { return nil })
	require.NoError(t, err)

	paused, err = e.ToggleAll()
	require.NoError(t, err)
	assert.True(t, paused)
	assert.True(t, e.IsPaused(Mouse))
	assert.True(t, e.IsPaused(Keyboard))

	paused, err = e.ToggleAll()
	require.NoError(t, err)
	assert.False(t, paused)
	assert.False(t, e.IsPaused(Mouse))
	assert.False(t, e.IsPaused(Keyboard))

	_, err = e.Pause(Mouse)
	require.NoError(t, err)
	paused, err = e.ToggleAll()
	require.NoError(t, err)
	assert.True(t, paused, "any active category pauses all")
	assert.True(t, e.IsPaused(Keyboard))
}

func TestEmitterStatus(t *testing.T) {
	e := NewEmitter(hook.NewFake())
	_, err := e.On(MouseMove, func(Event) error { return nil })
	require.NoError(t, err)

	st := e.Status()
	assert.Equal(t, []EventName{MouseMove}, st.Subscribed)
	assert.Equal(t, 1, st.Listeners[MouseMove])
	assert.Equal(t, CategoryState{Installed: true, MouseMoveEnabled: true}, st.Categories[Mouse])
	assert.Equal(t, CategoryState{Paused: true}, st.Categories[Keyboard])
}
