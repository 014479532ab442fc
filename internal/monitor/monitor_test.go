package monitor

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmkh/internal/input"
	"globalmkh/internal/protocol"
)

type recordingToggler struct {
	sent []string
	ok   bool
}

func (r *recordingToggler) SendToggle(category string) bool {
	r.sent = append(r.sent, category)
	return r.ok
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	mm, ok := next.(model)
	require.True(t, ok)
	return mm
}

func TestToggleKeys(t *testing.T) {
	tog := &recordingToggler{ok: true}
	m := NewModel("localhost:18080", tog)

	m = update(t, m, key("p"))
	m = update(t, m, key("m"))
	mm := update(t, m, key("k"))

	assert.Equal(t, []string{"all", "mouse", "keyboard"}, tog.sent)
	assert.Empty(t, mm.lastErr)
}

func TestToggleFailureShown(t *testing.T) {
	m := update(t, NewModel("x", &recordingToggler{}), key("p"))
	assert.Equal(t, "toggle not sent", m.lastErr)
	assert.Contains(t, m.View(), "toggle not sent")
}

func TestQuit(t *testing.T) {
	_, cmd := NewModel("x", nil).Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestEventsAreCappedAndCounted(t *testing.T) {
	var m tea.Model = NewModel("x", nil)
	for i := 0; i < maxEvents+5; i++ {
		m = update(t, m, EventMsg{Event: input.Event{Name: input.MouseMove, Mouse: &input.MouseEvent{X: i}}})
	}
	mm := m.(model)
	assert.Len(t, mm.events, maxEvents)
	assert.Equal(t, maxEvents+5, mm.counts[input.MouseMove])
	assert.Equal(t, maxEvents+4, mm.events[len(mm.events)-1].Mouse.X)

	mm = update(t, mm, key("c"))
	assert.Empty(t, mm.events)
	assert.Empty(t, mm.counts)
}

func TestViewShowsState(t *testing.T) {
	var m tea.Model = NewModel("host:1", nil)
	m = update(t, m, ConnMsg{Connected: true})
	m = update(t, m, StateMsg{State: protocol.StatePayload{Categories: map[string]protocol.CategoryState{
		"mouse":    {Installed: true, Paused: true},
		"keyboard": {Installed: false, Paused: true},
	}}})

	view := m.View()
	assert.Contains(t, view, "connected")
	assert.NotContains(t, view, "disconnected")
	assert.Contains(t, view, "paused")
	assert.Contains(t, view, "not installed")
}

func TestDescribe(t *testing.T) {
	crazy := true
	kb := Describe(input.Event{Name: input.KeyUp, Time: time.Now(), Keyboard: &input.KeyboardEvent{
		KeyName: "A", Combination: "Ctrl+A", CtrlKey: true, CrazyCombination: &crazy,
	}})
	assert.Contains(t, kb, "Ctrl+A")
	assert.Contains(t, kb, "(chord)")

	delta, axis := -1.0, 1
	wheel := Describe(input.Event{Name: input.MouseWheel, Mouse: &input.MouseEvent{X: 3, Y: 4, Delta: &delta, Axis: &axis}})
	assert.Contains(t, wheel, "(3,4)")
	assert.Contains(t, wheel, "delta=-1")
	assert.Contains(t, wheel, "horizontal")
}
