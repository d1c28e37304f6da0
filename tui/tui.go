// Package tui is a terminal front end with the same inputs as the web form.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/mempirate/brochure/brochure"
)

const (
	focusName = iota
	focusURL
	focusButton
)

// Lines taken by everything above the output.
const headerHeight = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Faint(true)
	buttonStyle  = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.NormalBorder())
	focusedStyle = buttonStyle.BorderForeground(lipgloss.Color("12")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// Generator starts brochure generations.
type Generator interface {
	Generate(ctx context.Context, company, url string) <-chan brochure.Event
}

type eventMsg struct {
	event  brochure.Event
	closed bool
}

func waitForEvent(events <-chan brochure.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventMsg{closed: true}
		}
		return eventMsg{event: ev}
	}
}

type model struct {
	generator Generator

	inputs []textinput.Model
	focus  int

	output viewport.Model
	width  int
	text   string
	err    error

	running bool
	events  <-chan brochure.Event
	cancel  context.CancelFunc
}

func newModel(generator Generator) model {
	name := textinput.New()
	name.Placeholder = "Example"
	name.Width = 40
	name.Focus()

	url := textinput.New()
	url.Placeholder = "https://example.com"
	url.Width = 40

	return model{
		generator: generator,
		inputs:    []textinput.Model{name, url},
		output:    viewport.New(80, 20),
		width:     80,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-headerHeight, 3)
		m.setOutput(m.text)
		return m, nil

	case eventMsg:
		return m.onEvent(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stop()
			return m, tea.Quit
		case "esc":
			m.stop()
			return m, nil
		case "tab":
			return m, m.setFocus((m.focus + 1) % 3)
		case "shift+tab":
			return m, m.setFocus((m.focus + 2) % 3)
		case "enter":
			if m.focus == focusName {
				return m, m.setFocus(focusURL)
			}
			return m.start()
		}
	}

	var cmd tea.Cmd
	if m.focus < len(m.inputs) && !m.running {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	} else {
		m.output, cmd = m.output.Update(msg)
	}

	return m, cmd
}

func (m *model) setFocus(focus int) tea.Cmd {
	m.focus = focus

	var cmd tea.Cmd
	for i := range m.inputs {
		if i == focus {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}

	return cmd
}

func (m model) start() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}

	company := strings.TrimSpace(m.inputs[focusName].Value())
	url := strings.TrimSpace(m.inputs[focusURL].Value())
	if url == "" {
		m.err = errors.New("url is required")
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.events = m.generator.Generate(ctx, company, url)
	m.running = true
	m.err = nil
	m.setOutput("")

	return m, waitForEvent(m.events)
}

func (m *model) stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m model) onEvent(msg eventMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		m.stop()
		m.running = false
		m.events = nil
		m.cancel = nil
		return m, nil
	}

	switch msg.event.Kind {
	case brochure.EventError:
		m.err = msg.event.Err
	default:
		m.setOutput(msg.event.Text)
	}

	return m, waitForEvent(m.events)
}

func (m *model) setOutput(text string) {
	m.text = text
	m.output.SetContent(lipgloss.NewStyle().Width(m.width).Render(text))
	m.output.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌐 Website to Brochure Generator"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Enter Website Name") + "\n" + m.inputs[focusName].View() + "\n")
	b.WriteString(labelStyle.Render("Enter Website URL") + "\n" + m.inputs[focusURL].View() + "\n")

	button := buttonStyle
	if m.focus == focusButton {
		button = focusedStyle
	}
	b.WriteString(button.Render("Generate Brochure") + "\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString(m.output.View() + "\n")
	b.WriteString(helpStyle.Render("tab: next field • enter: generate • esc: stop • ctrl+c: quit"))

	return b.String()
}

// Run starts the terminal UI and blocks until it exits.
func Run(generator Generator) error {
	p := tea.NewProgram(newModel(generator), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "terminal UI failed")
	}

	return nil
}
