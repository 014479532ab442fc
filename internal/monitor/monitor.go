// Package monitor is a terminal view of a remote daemon's event stream.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"globalmkh/internal/input"
	"globalmkh/internal/network"
	"globalmkh/internal/protocol"
)

const maxEvents = 200

// TUI message types
type EventMsg struct{ Event input.Event }
type StateMsg struct{ State protocol.StatePayload }
type ConnMsg struct{ Connected bool }
type ErrMsg struct{ Text string }

// Toggler sends pause toggles to the daemon.
type Toggler interface {
	SendToggle(category string) bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("219"))
	mouseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	sectionStyle = lipgloss.NewStyle().MarginTop(1)
)

type model struct {
	addr      string
	toggler   Toggler
	connected bool
	state     protocol.StatePayload
	events    []input.Event // newest last
	counts    map[input.EventName]int
	lastErr   string
	width     int
	height    int
}

// NewModel returns the monitor model for the daemon at addr.
func NewModel(addr string, t Toggler) tea.Model {
	return model{
		addr:    addr,
		toggler: t,
		counts:  make(map[input.EventName]int),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "p":
			m.toggle("all")
		case "m":
			m.toggle(string(input.Mouse))
		case "k":
			m.toggle(string(input.Keyboard))
		case "c":
			m.events = nil
			m.counts = make(map[input.EventName]int)
		}

	case EventMsg:
		m.events = append(m.events, msg.Event)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		m.counts[msg.Event.Name]++

	case StateMsg:
		m.state = msg.State

	case ConnMsg:
		m.connected = msg.Connected
		if msg.Connected {
			m.lastErr = ""
		}

	case ErrMsg:
		m.lastErr = msg.Text
	}
	return m, nil
}

func (m *model) toggle(category string) {
	if m.toggler == nil || !m.toggler.SendToggle(category) {
		m.lastErr = "toggle not sent"
	}
}

func (m model) View() string {
	var b strings.Builder

	conn := offStyle.Render("disconnected")
	if m.connected {
		conn = activeStyle.Render("connected")
	}
	fmt.Fprintf(&b, "%s %s %s\n", titleStyle.Render("globalmkh"), m.addr, conn)

	for _, cat := range input.Categories {
		fmt.Fprintf(&b, "  %-9s %s\n", cat, renderState(m.state.Categories[string(cat)]))
	}

	if len(m.counts) > 0 {
		names := make([]string, 0, len(m.counts))
		for name := range m.counts {
			names = append(names, string(name))
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, m.counts[input.EventName(name)]))
		}
		b.WriteString(sectionStyle.Render("  " + strings.Join(parts, "  ")))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString(errStyle.Render("  " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, ev := range m.visibleEvents() {
		fmt.Fprintf(&b, "  %s %s\n", timeStyle.Render(ev.Time.Format("15:04:05.000")), Describe(ev))
	}

	b.WriteString(helpStyle.Render("\n  p pause/resume all · m mouse · k keyboard · c clear · q quit"))
	return b.String()
}

// visibleEvents returns the newest events that fit the window, newest first.
func (m model) visibleEvents() []input.Event {
	rows := 20
	if m.height > 0 {
		rows = m.height - 10
	}
	if rows < 1 {
		rows = 1
	}
	n := min(rows, len(m.events))
	out := make([]input.Event, 0, n)
	for i := len(m.events) - 1; i >= len(m.events)-n; i-- {
		out = append(out, m.events[i])
	}
	return out
}

func renderState(st protocol.CategoryState) string {
	switch {
	case !st.Installed:
		return offStyle.Render("not installed")
	case st.Paused:
		return pausedStyle.Render("paused")
	}
	s := activeStyle.Render("capturing")
	if st.MouseMoveEnabled {
		s += offStyle.Render(" (+move)")
	}
	return s
}

// Describe renders one event as a single line.
func Describe(ev input.Event) string {
	name := fmt.Sprintf("%-10s", ev.Name)
	switch {
	case ev.Keyboard != nil:
		k := ev.Keyboard
		s := keyStyle.Render(name) + " " + k.Combination
		if k.MetaKey {
			s += " +meta"
		}
		if k.CrazyCombination != nil && *k.CrazyCombination {
			s += " (chord)"
		}
		return s
	case ev.Mouse != nil:
		mo := ev.Mouse
		s := mouseStyle.Render(name) + fmt.Sprintf(" (%d,%d)", mo.X, mo.Y)
		if mo.Button != nil {
			s += fmt.Sprintf(" button=%d", *mo.Button)
		}
		if mo.Delta != nil {
			s += fmt.Sprintf(" delta=%g", *mo.Delta)
		}
		if mo.Axis != nil && *mo.Axis == 1 {
			s += " horizontal"
		}
		return s
	}
	return name
}

// Run shows the monitor for client until the user quits or ctx ends. The
// client's callbacks are replaced.
func Run(ctx context.Context, client *network.WSClient, addr string) error {
	p := tea.NewProgram(NewModel(addr, client), tea.WithAltScreen(), tea.WithContext(ctx))

	client.OnEvent = func(ev input.Event) { p.Send(EventMsg{Event: ev}) }
	client.OnState = func(st protocol.StatePayload) { p.Send(StateMsg{State: st}) }
	client.OnConnection = func(c bool) { p.Send(ConnMsg{Connected: c}) }
	client.OnError = func(e protocol.ErrorPayload) {
		p.Send(ErrMsg{Text: fmt.Sprintf("%s: %s", e.Op, e.Message)})
	}
	client.Start()
	defer client.Close()

	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
