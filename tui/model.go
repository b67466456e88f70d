// Package tui implements the live inspector: a bubbletea program that
// renders mock-server activity published on a broker.Event channel as
// a scrolling list with a payload preview pane.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/atendeindustries/tstorage-clients/broker"
	"github.com/atendeindustries/tstorage-clients/highlight"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Model is the Bubble Tea model for the live inspector.
type Model struct {
	events <-chan broker.Event
	seen   []broker.Event
	cursor int
	width  int
	height int
	err    error
}

// New constructs a Model that renders events arriving on events.
func New(events <-chan broker.Event) Model {
	return Model{events: events}
}

type eventMsg broker.Event
type closedMsg struct{}

func waitForEvent(events <-chan broker.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.seen = append(m.seen, broker.Event(msg))
		m.cursor = len(m.seen) - 1
		return m, waitForEvent(m.events)

	case closedMsg:
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.seen)-1 {
				m.cursor++
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if len(m.seen) == 0 {
		return "waiting for activity...\n\n" + dimStyle.Render("q: quit")
	}

	listWidth := m.width / 2
	list := headerStyle.Render(ansi.Truncate("VERB        STATUS  RECORDS  CONN", listWidth, "")) + "\n"
	for i, ev := range m.seen {
		line := formatRow(ev)
		line = ansi.Truncate(line, listWidth, "…")
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		list += line + "\n"
	}

	detail := renderDetail(m.seen[m.cursor])

	var out strings.Builder
	out.WriteString(list)
	out.WriteString("\n")
	out.WriteString(detail)
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("q: quit  ↑/k ↓/j: navigate"))
	return out.String()
}

func formatRow(ev broker.Event) string {
	status := okStyle.Render(fmt.Sprintf("%d", ev.Status))
	if ev.Status != 0 {
		status = errStyle.Render(fmt.Sprintf("%d", ev.Status))
	}
	return fmt.Sprintf("%-10s  %-6s  %7d  %s", ev.Verb, status, ev.RecordCount, shortConnID(ev.ConnID))
}

func shortConnID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderDetail(ev broker.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "request %s on conn %s\n", ev.ID, ev.ConnID)
	fmt.Fprintf(&b, "verb=%s status=%d acq=%d records=%d duration=%s\n", ev.Verb, ev.Status, ev.Acq, ev.RecordCount, ev.Duration)
	if ev.KeyMin != nil && ev.KeyMax != nil {
		fmt.Fprintf(&b, "range: %+v .. %+v\n", *ev.KeyMin, *ev.KeyMax)
	}
	if ev.Err != "" {
		fmt.Fprintf(&b, "%s\n", errStyle.Render(ev.Err))
	}
	if len(ev.LastPayload) > 0 {
		b.WriteString("last payload:\n")
		b.WriteString(highlight.Preview(ev.LastPayload))
		b.WriteString("\n")
	}
	return b.String()
}

// Run blocks serving the live inspector until ctx is cancelled or the
// user quits.
func Run(ctx context.Context, events <-chan broker.Event) error {
	p := tea.NewProgram(New(events), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
