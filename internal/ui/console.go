package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxConsoleLines bounds the scrollback
const maxConsoleLines = 1000

type inboundMsg []byte

type closedMsg struct{ reason string }

// ConsoleConfig configures an interactive console session.
type ConsoleConfig struct {
	// Title is shown above the scrollback (e.g., the device address)
	Title string

	// Send queues one line typed by the user. It reports whether the line
	// was accepted.
	Send func(line string) bool
}

// consoleModel is a scrollback of sent and received lines over a one-line
// input. Enter sends the line; Ctrl+C or Esc quits.
type consoleModel struct {
	config   ConsoleConfig
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	closed   bool
}

func newConsoleModel(config ConsoleConfig) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "command (framing added automatically)"
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()

	width, height := GetTerminalSize()
	vp := viewport.New(width, consoleViewportHeight(height))

	return consoleModel{config: config, viewport: vp, input: ti}
}

func consoleViewportHeight(termHeight int) int {
	// title, divider, divider, input
	if h := termHeight - 4; h > 3 {
		return h
	}
	return 3
}

// Init implements tea.Model
func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = consoleViewportHeight(msg.Height)
		m.input.Width = msg.Width - 4
		m.refresh()

	case inboundMsg:
		m.appendLine(InboundStyle.Render(InboundMarker + " " + FormatChunk(msg)))

	case closedMsg:
		m.closed = true
		m.input.Blur()
		m.appendLine(StatusStyle.Render("connection closed: " + msg.reason + " (Esc to exit)"))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	// Letters belong to the input; only paging keys scroll.
	if key, ok := msg.(tea.KeyMsg); !ok || isScrollKey(key) {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func isScrollKey(k tea.KeyMsg) bool {
	switch k.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		return true
	}
	return false
}

func (m *consoleModel) submit() {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return
	}
	if m.closed || m.config.Send == nil || !m.config.Send(line) {
		m.appendLine(ErrorMessageStyle.Render(FailureMarker + " not sent (disconnected): " + line))
		return
	}
	m.appendLine(OutboundStyle.Render(OutboundMarker + " " + line))
}

func (m *consoleModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxConsoleLines {
		m.lines = m.lines[len(m.lines)-maxConsoleLines:]
	}
	m.refresh()
}

func (m *consoleModel) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View implements tea.Model
func (m consoleModel) View() string {
	divider := RenderHorizontalDivider(m.viewport.Width, "─")
	title := lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Render(m.config.Title)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		divider,
		m.viewport.View(),
		divider,
		m.input.View(),
	)
}

// Console is a running interactive session.
type Console struct {
	program *tea.Program
}

// NewConsole creates a full-screen console. Call Run to start it.
func NewConsole(config ConsoleConfig) *Console {
	return &Console{
		program: tea.NewProgram(newConsoleModel(config), tea.WithAltScreen()),
	}
}

// Deliver shows an inbound chunk. Safe to call from any goroutine; chunks
// appear in call order.
func (c *Console) Deliver(chunk []byte) {
	c.program.Send(inboundMsg(chunk))
}

// Closed tells the console the device connection ended.
func (c *Console) Closed(reason string) {
	c.program.Send(closedMsg{reason: reason})
}

// Run blocks until the user quits.
func (c *Console) Run() error {
	_, err := c.program.Run()
	return err
}

// FormatChunk renders device output for display: CR and LF are dropped and
// other control bytes are shown as \xNN.
func FormatChunk(chunk []byte) string {
	var b strings.Builder
	for _, c := range chunk {
		switch {
		case c == '\r' || c == '\n':
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
