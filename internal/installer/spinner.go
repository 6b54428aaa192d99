package installer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"hsetup/internal/theme"
)

type taskDoneMsg struct{ err error }

// taskModel shows a spinner next to a label until the task reports back
type taskModel struct {
	spinner   spinner.Model
	interrupt func()
	label     string
	done      bool
	err       error
}

func newTaskModel(label string, interrupt func()) taskModel {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(theme.InfoStyle))
	return taskModel{spinner: s, interrupt: interrupt, label: label}
}

func (m taskModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done, m.err = true, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupt()
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m taskModel) View() string {
	if m.done {
		return ""
	}
	return "  " + m.spinner.View() + " " + m.label + "\n"
}

// WithSpinner runs fn and returns its error, animating label meanwhile when
// interactive. Ctrl-C cancels the context handed to fn and makes WithSpinner
// fail once fn has returned.
func WithSpinner(ctx context.Context, interactive bool, label string, fn func(context.Context) error) error {
	if !interactive {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTaskModel(label, cancel))
	result := make(chan error, 1)

	go func() {
		err := fn(ctx)
		result <- err
		p.Send(taskDoneMsg{err: err})
	}()

	// A UI failure is ignored; the task decides the outcome
	_, _ = p.Run()

	err := <-result
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("interrupted: %w", ctx.Err())
	}
	return err
}
