package network

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmkh/internal/api"
	"globalmkh/internal/hook"
	"globalmkh/internal/input"
	"globalmkh/internal/protocol"
)

func startDaemon(t *testing.T, token string) (*hook.Fake, *input.Emitter, string) {
	t.Helper()
	fake := hook.NewFake()
	em := input.NewEmitter(fake)
	ctx, cancel := context.WithCancel(context.Background())
	go em.Run(ctx)

	srv := api.NewServer(em, token, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
		cancel()
	})
	return fake, em, strings.TrimPrefix(ts.URL, "http://")
}

func TestWSClientReceivesEvents(t *testing.T) {
	fake, em, addr := startDaemon(t, "tok")

	events := make(chan input.Event, 4)
	acks := make(chan protocol.AckPayload, 4)
	c := NewWSClient(addr, "tok", []string{"mousewheel"}, zerolog.Nop())
	c.OnEvent = func(ev input.Event) { events <- ev }
	c.OnAck = func(a protocol.AckPayload) { acks <- a }
	c.Start()
	t.Cleanup(c.Close)

	select {
	case a := <-acks:
		assert.Equal(t, protocol.TypeSubscribe, a.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("no subscribe ack")
	}
	assert.True(t, c.IsConnected())
	assert.Equal(t, 1, em.ListenerCount(input.MouseWheel))

	require.True(t, fake.SimMouse(hook.KindMouseWheel, 3, 4, hook.AxisVertical, -7864320))

	select {
	case ev := <-events:
		assert.Equal(t, input.MouseWheel, ev.Name)
		require.NotNil(t, ev.Mouse)
		require.NotNil(t, ev.Mouse.Delta)
		assert.Equal(t, -1.0, *ev.Mouse.Delta)
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}
}

func TestWSClientToggle(t *testing.T) {
	_, em, addr := startDaemon(t, "")
	_, err := em.On(input.KeyUp, func(input.Event) error { return nil })
	require.NoError(t, err)

	var mu sync.Mutex
	var last protocol.StatePayload
	c := NewWSClient(addr, "", nil, zerolog.Nop())
	c.OnState = func(st protocol.StatePayload) {
		mu.Lock()
		last = st
		mu.Unlock()
	}
	c.Start()
	t.Cleanup(c.Close)

	require.Eventually(t, c.IsConnected, 3*time.Second, 10*time.Millisecond)
	require.True(t, c.SendToggle("keyboard"))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Categories["keyboard"].Paused
	}, 3*time.Second, 10*time.Millisecond)
	assert.True(t, em.IsPaused(input.Keyboard))
}

func TestWSClientReportsErrors(t *testing.T) {
	_, _, addr := startDaemon(t, "")

	errs := make(chan protocol.ErrorPayload, 1)
	c := NewWSClient(addr, "", []string{"doubleclick"}, zerolog.Nop())
	c.OnError = func(e protocol.ErrorPayload) { errs <- e }
	c.Start()
	t.Cleanup(c.Close)

	select {
	case e := <-errs:
		assert.Equal(t, protocol.TypeSubscribe, e.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("no error reply")
	}
}

func TestFetchStatus(t *testing.T) {
	_, em, addr := startDaemon(t, "tok")
	_, err := em.On(input.MouseMove, func(input.Event) error { return nil })
	require.NoError(t, err)

	st, err := FetchStatus(context.Background(), addr, "tok")
	require.NoError(t, err)
	assert.True(t, st.Categories[input.Mouse].MouseMoveEnabled)
	assert.Equal(t, 1, st.Listeners[input.MouseMove])

	_, err = FetchStatus(context.Background(), addr, "")
	assert.Error(t, err)
}
