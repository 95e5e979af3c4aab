package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// loadTimeout bounds a single check-mode drain.
const loadTimeout = 5 * time.Minute

var errCancelled = errors.New("cancelled")

type loadDoneMsg[T any] struct {
	result T
	err    error
}

type loaderModel[T any] struct {
	label   string
	loadFn  func(ctx context.Context) (T, error)
	cancel  context.CancelFunc
	ctx     context.Context
	spinner spinner.Model
	result  T
	err     error
	done    bool
}

func (m loaderModel[T]) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m loaderModel[T]) load() tea.Cmd {
	ctx, loadFn := m.ctx, m.loadFn
	return func() tea.Msg {
		result, err := loadFn(ctx)
		return loadDoneMsg[T]{result: result, err: err}
	}
}

func (m loaderModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDoneMsg[T]:
		m.result = msg.result
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.done = true
			m.err = errCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel[T]) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Harvesting %s...\n", m.spinner.View(), m.label)
}

// RunLoader shows a spinner while loadFn runs. It renders inline (no alt
// screen); ctrl+c cancels loadFn's context.
func RunLoader[T any](label string, loadFn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	m := loaderModel[T]{
		label:  label,
		loadFn: loadFn,
		ctx:    ctx,
		cancel: cancel,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("33"))),
		),
	}

	var zero T
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return zero, err
	}
	final := result.(loaderModel[T])
	return final.result, final.err
}
