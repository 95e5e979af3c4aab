package audit

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// Target is one worklist entry that check mode can drain on its own: a
// company on an ATS, or a job bank keyword.
type Target struct {
	Source string
	Entity string
	Label  string
}

func (t Target) String() string {
	if t.Label != "" && t.Label != t.Entity {
		return fmt.Sprintf("%s (%s: %s)", t.Label, t.Source, t.Entity)
	}
	return fmt.Sprintf("%s (%s)", t.Entity, t.Source)
}

type pickerModel struct {
	targets []Target
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.targets)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Check a source: select a worklist entry")
	s += "\n"

	for i, t := range m.targets {
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+t.String()) + "\n"
		} else {
			s += pickerItemStyle.Render(t.String()) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunPicker shows an interactive target selector. It returns the index of
// the chosen target, or -1 if the user quit.
func RunPicker(targets []Target) (int, error) {
	m := pickerModel{
		targets: targets,
		chosen:  -1,
	}

	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
