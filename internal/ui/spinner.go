package ui

import (
	"context"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type workDoneMsg struct{}

// spinnerModel shows a spinner and label until the work finishes or the user
// presses Ctrl+C.
type spinnerModel struct {
	spinner     spinner.Model
	label       string
	interrupted bool
}

func newSpinnerModel(label string) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return spinnerModel{spinner: s, label: label}
}

// Init implements tea.Model
func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.interrupted = true
			return m, tea.Quit
		}
	case workDoneMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m spinnerModel) View() string {
	return "  " + m.spinner.View() + " " + m.label + "\n"
}

// RunWithSpinner runs work while showing a spinner on stderr. Pressing Ctrl+C
// cancels work's context; RunWithSpinner still waits for work to return.
// Without a terminal, work simply runs.
func RunWithSpinner(ctx context.Context, label string, work func(ctx context.Context) error) error {
	if !IsTerminal() {
		return work(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(label), tea.WithOutput(os.Stderr))

	result := make(chan error, 1)
	go func() {
		err := work(ctx)
		result <- err
		p.Send(workDoneMsg{})
	}()

	final, runErr := p.Run()
	if m, ok := final.(spinnerModel); ok && m.interrupted {
		cancel()
	}
	err := <-result
	if err == nil && runErr != nil {
		return runErr
	}
	return err
}
